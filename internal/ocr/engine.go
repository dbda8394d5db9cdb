package ocr

import (
	"context"
)

// Profile selects a speed/accuracy trade-off for the recognition engine.
// The numeric knobs mirror the detector parameters of the upstream models;
// adapters map them onto whatever their engine understands.
type Profile struct {
	Name          string
	MinTextSize   int     // minimum glyph height in pixels; smaller spans are dropped
	TextThreshold float64 // detection score threshold
	LinkThreshold float64 // span-linking threshold
	CanvasSize    int     // maximum processing canvas dimension
	MagRatio      float64 // magnification applied before detection
}

// QuickProfile returns parameters optimized for speed.
func QuickProfile() Profile {
	return Profile{
		Name:          "quick",
		MinTextSize:   20,
		TextThreshold: 0.6,
		LinkThreshold: 0.3,
		CanvasSize:    1280,
		MagRatio:      1.0,
	}
}

// AccurateProfile returns parameters optimized for recognition quality.
func AccurateProfile() Profile {
	return Profile{
		Name:          "accurate",
		MinTextSize:   10,
		TextThreshold: 0.7,
		LinkThreshold: 0.4,
		CanvasSize:    2560,
		MagRatio:      1.5,
	}
}

// ProfileByName resolves "quick"/"accurate"; unknown names fall back to accurate.
func ProfileByName(name string) Profile {
	if name == "quick" {
		return QuickProfile()
	}
	return AccurateProfile()
}

// Engine is the recognition engine contract: image bytes in, unordered
// detections out. Implementations must be safe for concurrent invocation and
// must honor ctx cancellation. An unavailable engine or undecodable image
// yields a typed failure, never a partial result.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, profile Profile) ([]Detection, error)
}
