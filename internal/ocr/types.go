/**
 * OCR Types - Shared data structures for recognition and reconstruction
 *
 * Common types used by the recognition engine adapter, the spatial text
 * reconstructor, and the result cache.
 */

package ocr

import (
	"math"
)

// Point is one polygon vertex in image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection represents one recognized text span as reported by the engine.
// The polygon always has exactly 4 points and is not required to be
// axis-aligned. Confidence is engine-reported, in [0,1], never renormalized.
type Detection struct {
	Polygon    [4]Point `json:"polygon"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
}

// TopY returns the minimum Y coordinate of the detection polygon.
func (d Detection) TopY() float64 {
	top := d.Polygon[0].Y
	for _, p := range d.Polygon[1:] {
		if p.Y < top {
			top = p.Y
		}
	}
	return top
}

// CenterX returns the mean X coordinate of the detection polygon.
func (d Detection) CenterX() float64 {
	sum := 0.0
	for _, p := range d.Polygon {
		sum += p.X
	}
	return sum / 4
}

// PlacedDetection is the display form of a detection that passed the
// confidence filter: integer-rounded polygon, confidence as a 0-100
// percentage rounded to 1 decimal.
type PlacedDetection struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Polygon    [4][2]int `json:"bbox"`
}

// Stats holds aggregate statistics for one reconstructed document.
type Stats struct {
	CharCount      int     `json:"char_count"`
	WordCount      int     `json:"word_count"`
	LineCount      int     `json:"line_count"`
	DetectionCount int     `json:"detection_count"`
	AvgConfidence  float64 `json:"avg_confidence"` // 0-100, rounded to 1 decimal; 0 when empty
}

// DocumentResult is the output of reconstruction for one image.
type DocumentResult struct {
	Text       string            `json:"text"`
	Detections []PlacedDetection `json:"details"`
	Stats      Stats             `json:"stats"`
}

// Placed converts a raw detection to its display form.
func Placed(d Detection) PlacedDetection {
	var poly [4][2]int
	for i, p := range d.Polygon {
		poly[i] = [2]int{int(math.Round(p.X)), int(math.Round(p.Y))}
	}
	return PlacedDetection{
		Text:       d.Text,
		Confidence: RoundPercent(d.Confidence),
		Polygon:    poly,
	}
}

// RoundPercent converts a [0,1] confidence to a 0-100 percentage rounded to
// 1 decimal place.
func RoundPercent(confidence float64) float64 {
	return math.Round(confidence*1000) / 10
}
