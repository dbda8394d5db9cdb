package annotate

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/textscan/ocr-server/internal/ocr"
)

func TestDrawBoxesProducesDecodablePNGOfSameSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))

	detections := []ocr.PlacedDetection{
		{Text: "hello", Confidence: 95.0, Polygon: [4][2]int{{10, 10}, {80, 10}, {80, 30}, {10, 30}}},
		{Text: "world", Confidence: 12.5, Polygon: [4][2]int{{10, 50}, {90, 52}, {88, 70}, {9, 68}}},
	}

	out, err := DrawBoxes(img, detections)
	if err != nil {
		t.Fatalf("DrawBoxes: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("annotated bounds = %v, want %v", decoded.Bounds(), img.Bounds())
	}
}

func TestDrawBoxesNoDetections(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))

	out, err := DrawBoxes(img, nil)
	if err != nil {
		t.Fatalf("DrawBoxes: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("output is not valid PNG: %v", err)
	}
}
