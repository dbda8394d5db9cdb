/**
 * Detection box annotation
 *
 * Draws each detection polygon onto the image that was fed to the recognition
 * engine, colored by confidence (green high, red low), with a confidence
 * percentage label at the first vertex.
 */

package annotate

import (
	"bytes"
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/textscan/ocr-server/internal/ocr"
)

// DrawBoxes renders detection polygons onto img and returns the result as PNG.
// Detections carry display-form polygons, so annotation works from cached
// geometry without ever re-invoking the engine.
func DrawBoxes(img image.Image, detections []ocr.PlacedDetection) ([]byte, error) {
	dc := gg.NewContextForImage(img)
	dc.SetLineWidth(2)

	for _, d := range detections {
		// Confidence is 0-100; map to a red→green ramp.
		frac := d.Confidence / 100
		if frac < 0 {
			frac = 0
		} else if frac > 1 {
			frac = 1
		}
		dc.SetRGB(1-frac, frac, 0)

		dc.MoveTo(float64(d.Polygon[0][0]), float64(d.Polygon[0][1]))
		for _, p := range d.Polygon[1:] {
			dc.LineTo(float64(p[0]), float64(p[1]))
		}
		dc.ClosePath()
		dc.Stroke()

		label := fmt.Sprintf("%d%%", int(d.Confidence))
		dc.DrawString(label, float64(d.Polygon[0][0]), float64(d.Polygon[0][1])-5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}
