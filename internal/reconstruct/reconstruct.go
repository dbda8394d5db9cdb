/**
 * Spatial Text Reconstructor
 *
 * Converts an unordered set of detections into a document in natural reading
 * order: lines grouped top-to-bottom by a vertical tolerance band, members
 * ordered left-to-right, low-confidence spans filtered per detection.
 */

package reconstruct

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/textscan/ocr-server/internal/ocr"
)

// Options control reconstruction.
type Options struct {
	// LineThreshold is the vertical tolerance, in image pixels, for grouping
	// detections onto one visual line.
	LineThreshold float64

	// MinConfidence filters detections from the output. Filtering is applied
	// per detection after grouping, so one weak member never drops its line.
	MinConfidence float64
}

// line is a derived grouping that exists only during reconstruction.
type line []ocr.Detection

// Build reconstructs the reading-order document for one image.
//
// Detections are sorted by the top edge of their polygon, then grouped
// greedily: a detection joins the current line when its top edge is within
// LineThreshold of the line's first member. Comparing against the first
// admitted member, not a running average, keeps grouping stable and
// order-independent within the tolerance band. Each line is then ordered by
// polygon center X.
func Build(detections []ocr.Detection, opts Options) ocr.DocumentResult {
	if len(detections) == 0 {
		return ocr.DocumentResult{Detections: []ocr.PlacedDetection{}}
	}

	sorted := make([]ocr.Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TopY() < sorted[j].TopY()
	})

	lines := groupLines(sorted, opts.LineThreshold)

	var outputLines []string
	placed := []ocr.PlacedDetection{}
	confidenceSum := 0.0

	for _, ln := range lines {
		sort.SliceStable(ln, func(i, j int) bool {
			return ln[i].CenterX() < ln[j].CenterX()
		})

		var texts []string
		for _, d := range ln {
			if d.Confidence < opts.MinConfidence {
				continue
			}
			texts = append(texts, d.Text)
			p := ocr.Placed(d)
			placed = append(placed, p)
			confidenceSum += p.Confidence
		}

		// A fully filtered line contributes no output line at all.
		if len(texts) > 0 {
			outputLines = append(outputLines, strings.Join(texts, " "))
		}
	}

	text := strings.Join(outputLines, "\n")

	return ocr.DocumentResult{
		Text:       text,
		Detections: placed,
		Stats:      buildStats(text, placed, confidenceSum),
	}
}

// groupLines partitions top-Y-sorted detections into visual lines. Membership
// is always tested against the first detection admitted to the line.
func groupLines(sorted []ocr.Detection, threshold float64) []line {
	lines := []line{{sorted[0]}}
	anchor := sorted[0].TopY()

	for _, d := range sorted[1:] {
		// Sorted input means d.TopY() >= anchor, so the band test is one-sided.
		if d.TopY()-anchor < threshold {
			last := len(lines) - 1
			lines[last] = append(lines[last], d)
		} else {
			lines = append(lines, line{d})
			anchor = d.TopY()
		}
	}

	return lines
}

func buildStats(text string, placed []ocr.PlacedDetection, confidenceSum float64) ocr.Stats {
	if len(placed) == 0 {
		return ocr.Stats{}
	}

	lineCount := 0
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lineCount++
		}
	}

	// Placed confidences are already 0-100 with 1 decimal; the mean is rounded
	// back to 1 decimal so the stat matches what the per-detection display shows.
	avg := confidenceSum / float64(len(placed))

	return ocr.Stats{
		CharCount:      utf8.RuneCountInString(text),
		WordCount:      len(strings.Fields(text)),
		LineCount:      lineCount,
		DetectionCount: len(placed),
		AvgConfidence:  roundTenth(avg),
	}
}

func roundTenth(v float64) float64 {
	scaled := v * 10
	if scaled >= 0 {
		return float64(int64(scaled+0.5)) / 10
	}
	return float64(int64(scaled-0.5)) / 10
}
