/**
 * Image enhancement for OCR input
 *
 * Pure image-library preprocessing: bounded downscale, contrast and sharpness
 * boost, median denoise. Output geometry is whatever buffer the recognition
 * engine is fed; detection coordinates are always relative to it.
 */

package enhance

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// DefaultMaxWidth bounds the processing canvas; wider inputs are downscaled.
const DefaultMaxWidth = 2000

// Options tune the enhancement chain.
type Options struct {
	MaxWidth   int     // 0 means DefaultMaxWidth
	Contrast   float64 // percentage passed to contrast adjustment
	Sharpen    float64 // gaussian sigma for sharpening
	MedianSize int     // median filter window for denoising; 0 disables
}

// DefaultOptions mirrors the preprocessing chain tuned for scanned documents.
func DefaultOptions() Options {
	return Options{
		MaxWidth:   DefaultMaxWidth,
		Contrast:   30,
		Sharpen:    1.5,
		MedianSize: 3,
	}
}

// Apply decodes data, runs the enhancement chain, and returns the enhanced
// image re-encoded as PNG. An undecodable input is an error; validation
// against supported upload types happens earlier in the pipeline.
func Apply(data []byte, opts Options) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	enhanced := ApplyImage(img, opts)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, enhanced, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode enhanced image: %w", err)
	}
	return buf.Bytes(), nil
}

// ApplyImage runs the enhancement chain on a decoded image.
func ApplyImage(img image.Image, opts Options) image.Image {
	maxWidth := opts.MaxWidth
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}

	out := img
	if out.Bounds().Dx() > maxWidth {
		out = imaging.Resize(out, maxWidth, 0, imaging.Lanczos)
	}

	if opts.Contrast != 0 {
		out = imaging.AdjustContrast(out, opts.Contrast)
	}
	if opts.Sharpen > 0 {
		out = imaging.Sharpen(out, opts.Sharpen)
	}
	if opts.MedianSize > 0 {
		out = effect.Median(out, float64(opts.MedianSize))
	}

	return out
}

// Decode decodes image bytes using the registered formats.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
