/**
 * Processing pipeline for the textscan OCR server
 *
 * Orchestrates one image through: validate → fingerprint → cache probe →
 * [enhance → recognize → reconstruct] → persist → annotate. Cache hits never
 * invoke the recognition engine; stored detection geometry also serves visual
 * annotation.
 */

package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/textscan/ocr-server/internal/annotate"
	"github.com/textscan/ocr-server/internal/artifact"
	"github.com/textscan/ocr-server/internal/enhance"
	txerrors "github.com/textscan/ocr-server/internal/errors"
	"github.com/textscan/ocr-server/internal/fingerprint"
	"github.com/textscan/ocr-server/internal/logging"
	"github.com/textscan/ocr-server/internal/ocr"
	"github.com/textscan/ocr-server/internal/reconstruct"
	"github.com/textscan/ocr-server/internal/storage"
)

// ResultCache is the cache surface the pipeline needs.
type ResultCache interface {
	Lookup(ctx context.Context, fp string) (*ocr.DocumentResult, error)
	Store(ctx context.Context, fp string, result *ocr.DocumentResult) error
}

// HistoryLog is the history surface the pipeline needs.
type HistoryLog interface {
	Append(ctx context.Context, entry *storage.HistoryEntry) error
}

// Config holds pipeline configuration
type Config struct {
	Engine        ocr.Engine
	Cache         ResultCache
	History       HistoryLog
	Artifacts     *artifact.Store
	LineThreshold float64
	MinConfidence float64 // default; requests may override
	Profile       string  // default recognition profile
	OCRTimeout    time.Duration
	ChunkSize     int64 // fingerprint block size
}

// Request describes one image to process.
type Request struct {
	Filename      string
	Data          []byte
	MinConfidence float64 // negative means "use the configured default"
	Preprocess    bool
	Quick         bool // quick profile: skip preprocessing, fast engine parameters
	Annotate      bool
}

// Result is the outcome of one processing request. DocumentResult is embedded
// so text, details, and stats sit at the top level of the wire form.
type Result struct {
	ocr.DocumentResult
	Cached         bool     `json:"cached"`
	Fingerprint    string   `json:"fingerprint"`
	HistoryID      string   `json:"history_id,omitempty"`
	UploadedImage  string   `json:"uploaded_image,omitempty"`
	ProcessedImage string   `json:"processed_image,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Processor runs the processing pipeline.
type Processor struct {
	cfg    *Config
	logger *logging.Logger
}

// NewProcessor creates a new pipeline processor
func NewProcessor(cfg *Config) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("recognition engine is required")
	}
	if cfg.Cache == nil || cfg.History == nil {
		return nil, fmt.Errorf("cache and history stores are required")
	}
	if cfg.Artifacts == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if cfg.LineThreshold <= 0 {
		cfg.LineThreshold = 15
	}
	if cfg.OCRTimeout <= 0 {
		cfg.OCRTimeout = 60 * time.Second
	}

	return &Processor{
		cfg:    cfg,
		logger: logging.NewLogger("processor"),
	}, nil
}

// Process runs one image through the full pipeline.
func (p *Processor) Process(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Data) == 0 {
		return nil, txerrors.NewInvalidInputError(req.Filename, "empty upload")
	}
	if kind := sniffImageType(req.Data); kind == "" {
		return nil, txerrors.NewInvalidInputError(req.Filename, "unsupported or undecodable image type")
	}

	var fp string
	if p.cfg.ChunkSize > 0 {
		// Fingerprinted in fixed-size blocks to keep memory use bounded.
		fp, _ = fingerprint.Compute(bytes.NewReader(req.Data), p.cfg.ChunkSize)
	}
	if fp == "" {
		fp = fingerprint.ComputeBytes(req.Data)
	}

	minConfidence := req.MinConfidence
	if minConfidence < 0 {
		minConfidence = p.cfg.MinConfidence
	}

	profile := ocr.ProfileByName(p.cfg.Profile)
	if req.Quick {
		profile = ocr.QuickProfile()
	}

	result := &Result{Fingerprint: fp}

	storedName, _, err := p.cfg.Artifacts.SaveUpload(req.Filename, req.Data)
	if err != nil {
		// The upload artifact is display plumbing; recognition can proceed.
		p.logger.Warn("failed to save upload artifact", "filename", req.Filename, "error", err)
		result.Warnings = append(result.Warnings, "upload artifact not saved")
	}
	result.UploadedImage = storedName

	cached, err := p.cfg.Cache.Lookup(ctx, fp)
	if err != nil {
		p.logger.Warn("cache lookup failed, treating as miss", "fingerprint", fp, "error", err)
		result.Warnings = append(result.Warnings, "cache unavailable")
	}

	var document ocr.DocumentResult
	var engineBuffer []byte

	if cached != nil {
		p.logger.Info("cache hit", "fingerprint", fp, "filename", req.Filename)
		document = *cached
		result.Cached = true
		// Only rebuild the buffer when annotation needs a canvas to draw on.
		engineBuffer = req.Data
		if req.Annotate {
			engineBuffer = p.engineBuffer(req, result)
		}
	} else {
		engineBuffer = p.engineBuffer(req, result)

		recognizeCtx, cancel := context.WithTimeout(ctx, p.cfg.OCRTimeout)
		detections, err := p.cfg.Engine.Recognize(recognizeCtx, engineBuffer, profile)
		cancel()
		if err != nil {
			// No cache/history mutation on engine failure; artifacts already on
			// disk are left for the retention sweeper to reclaim.
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, txerrors.NewEngineTimeoutError(req.Filename, p.cfg.OCRTimeout, err)
			}
			return nil, txerrors.NewEngineFailureError(req.Filename, err)
		}

		document = reconstruct.Build(detections, reconstruct.Options{
			LineThreshold: p.cfg.LineThreshold,
			MinConfidence: minConfidence,
		})

		// Cache population happens-before the history append for this event.
		if err := p.cfg.Cache.Store(ctx, fp, &document); err != nil {
			p.logger.Warn("cache store failed, identical uploads will recompute", "fingerprint", fp, "error", err)
			result.Warnings = append(result.Warnings, "result not cached")
		}
	}

	result.DocumentResult = document

	entry := &storage.HistoryEntry{
		Filename:         storedName,
		OriginalFilename: req.Filename,
		Text:             document.Text,
		Confidence:       document.Stats.AvgConfidence,
		WordCount:        document.Stats.WordCount,
		CharCount:        document.Stats.CharCount,
		ArtifactPath:     storedName,
		Fingerprint:      fp,
	}
	if err := p.cfg.History.Append(ctx, entry); err != nil {
		// The document was still processed successfully; surface as a warning.
		p.logger.Warn("history append failed", "fingerprint", fp, "error", err)
		result.Warnings = append(result.Warnings, "history not recorded")
	} else {
		result.HistoryID = entry.ID
	}

	if req.Annotate && len(engineBuffer) > 0 {
		if name, err := p.annotateBuffer(engineBuffer, storedName, document.Detections); err != nil {
			p.logger.Warn("annotation failed", "filename", req.Filename, "error", err)
			result.Warnings = append(result.Warnings, "annotated image not produced")
		} else {
			result.ProcessedImage = name
		}
	}

	return result, nil
}

// engineBuffer returns the bytes the engine (and the annotator) work on: the
// raw upload, or the enhanced variant when preprocessing applies. The quick
// profile always skips preprocessing.
func (p *Processor) engineBuffer(req *Request, result *Result) []byte {
	if !req.Preprocess || req.Quick {
		return req.Data
	}

	enhanced, err := enhance.Apply(req.Data, enhance.DefaultOptions())
	if err != nil {
		p.logger.Warn("enhancement failed, using raw image", "filename", req.Filename, "error", err)
		result.Warnings = append(result.Warnings, "preprocessing skipped")
		return req.Data
	}

	if result.UploadedImage != "" {
		if _, _, err := p.cfg.Artifacts.SaveProcessed(artifact.PrefixPreprocessed, result.UploadedImage, enhanced); err != nil {
			p.logger.Warn("failed to save preprocessed artifact", "error", err)
		}
	}

	return enhanced
}

// annotateBuffer draws detection boxes on the engine buffer and stores the
// boxed artifact.
func (p *Processor) annotateBuffer(buffer []byte, storedName string, detections []ocr.PlacedDetection) (string, error) {
	img, err := enhance.Decode(buffer)
	if err != nil {
		return "", err
	}

	boxed, err := annotate.DrawBoxes(img, detections)
	if err != nil {
		return "", err
	}

	if storedName == "" {
		storedName = artifact.UniqueName("annotated.png")
	}
	name, _, err := p.cfg.Artifacts.SaveProcessed(artifact.PrefixBoxed, storedName, boxed)
	if err != nil {
		return "", err
	}
	return name, nil
}

// sniffImageType identifies the accepted upload formats from magic bytes; the
// user-controlled filename is never trusted. Returns "" for anything else.
func sniffImageType(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	// TIFF: little-endian "II*\0" or big-endian "MM\0*"
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// WebP: "RIFF" .... "WEBP"
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	return ""
}
