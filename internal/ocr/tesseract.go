/**
 * Tesseract recognition engine adapter
 *
 * Wraps gosseract behind the Engine contract. A fresh client is created per
 * call, so concurrent requests never share engine state and recognition never
 * holds a process-wide lock.
 */

package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine performs recognition using a local Tesseract install.
type TesseractEngine struct {
	languages []string
}

// NewTesseractEngine creates a Tesseract-backed engine. languages is a
// "+"-separated list of trained data codes (e.g. "eng+fra").
func NewTesseractEngine(languages string) *TesseractEngine {
	langs := strings.Split(languages, "+")
	if len(langs) == 0 || langs[0] == "" {
		langs = []string{"eng"}
	}
	return &TesseractEngine{languages: langs}
}

// Name identifies the engine in logs and history records.
func (t *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs word-level OCR on the image and returns unordered detections.
// The call is bounded by ctx; on expiry the in-flight recognition is abandoned
// and a timeout failure is returned.
func (t *TesseractEngine) Recognize(ctx context.Context, image []byte, profile Profile) ([]Detection, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	type recOut struct {
		detections []Detection
		err        error
	}
	done := make(chan recOut, 1)

	start := time.Now()
	go func() {
		detections, err := t.recognize(image, profile)
		done <- recOut{detections, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("tesseract recognition cancelled after %v: %w", time.Since(start), ctx.Err())
	case out := <-done:
		return out.detections, out.err
	}
}

func (t *TesseractEngine) recognize(image []byte, profile Profile) ([]Detection, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set languages: %w", err)
	}

	// The quick profile favors throughput: sparse segmentation skips the full
	// page layout pass. The accurate profile runs automatic segmentation.
	mode := gosseract.PSM_AUTO
	if profile.Name == "quick" {
		mode = gosseract.PSM_SPARSE_TEXT
	}
	if err := client.SetPageSegMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set segmentation mode: %w", err)
	}

	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}

	detections := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		// Profile minimum text size: spans shorter than the threshold are
		// treated as detector noise.
		if box.Box.Dy() < profile.MinTextSize {
			continue
		}
		detections = append(detections, Detection{
			Polygon:    RectPolygon(box.Box.Min.X, box.Box.Min.Y, box.Box.Max.X, box.Box.Max.Y),
			Text:       word,
			Confidence: box.Confidence / 100,
		})
	}

	return detections, nil
}

// RectPolygon builds the 4-point clockwise polygon of an axis-aligned box.
func RectPolygon(x1, y1, x2, y2 int) [4]Point {
	return [4]Point{
		{X: float64(x1), Y: float64(y1)},
		{X: float64(x2), Y: float64(y1)},
		{X: float64(x2), Y: float64(y2)},
		{X: float64(x1), Y: float64(y2)},
	}
}
