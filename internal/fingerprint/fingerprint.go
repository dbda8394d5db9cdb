/**
 * Content fingerprinting for the result cache
 *
 * A fingerprint is the SHA-256 digest of the full image byte stream, read in
 * fixed-size blocks so memory stays bounded regardless of file size. Two
 * byte-identical uploads fingerprint identically no matter their filenames.
 */

package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// DefaultBlockSize is used when the caller passes a non-positive block size.
const DefaultBlockSize = 65536

// Compute digests r block by block and returns the hex-encoded fingerprint.
func Compute(r io.Reader, blockSize int64) (string, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	h := sha256.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeBytes fingerprints an in-memory buffer.
func ComputeBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
