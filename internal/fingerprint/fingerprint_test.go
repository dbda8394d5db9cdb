package fingerprint

import (
	"bytes"
	"strings"
	"testing"
)

func TestComputeMatchesComputeBytes(t *testing.T) {
	data := bytes.Repeat([]byte("scanned-page-"), 10000)

	fp, err := Compute(bytes.NewReader(data), 65536)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if fp != ComputeBytes(data) {
		t.Errorf("streamed fingerprint %s != in-memory fingerprint %s", fp, ComputeBytes(data))
	}
}

func TestComputeBlockSizeIndependence(t *testing.T) {
	data := bytes.Repeat([]byte{0x89, 0x50, 0x4E, 0x47}, 50000)

	var fingerprints []string
	for _, blockSize := range []int64{0, 1024, 65536, 1048576} {
		fp, err := Compute(bytes.NewReader(data), blockSize)
		if err != nil {
			t.Fatalf("Compute(blockSize=%d): %v", blockSize, err)
		}
		fingerprints = append(fingerprints, fp)
	}

	for i := 1; i < len(fingerprints); i++ {
		if fingerprints[i] != fingerprints[0] {
			t.Errorf("fingerprint differs by block size: %s vs %s", fingerprints[i], fingerprints[0])
		}
	}
}

func TestComputeDistinguishesContent(t *testing.T) {
	a := ComputeBytes([]byte("image-a"))
	b := ComputeBytes([]byte("image-b"))

	if a == b {
		t.Errorf("distinct content produced identical fingerprint %s", a)
	}
}

func TestComputeEmptyInput(t *testing.T) {
	fp, err := Compute(strings.NewReader(""), 4096)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if fp != ComputeBytes(nil) {
		t.Errorf("empty stream fingerprint %s != empty bytes fingerprint %s", fp, ComputeBytes(nil))
	}
	if len(fp) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fp))
	}
}
