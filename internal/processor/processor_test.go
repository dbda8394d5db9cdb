package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/textscan/ocr-server/internal/artifact"
	txerrors "github.com/textscan/ocr-server/internal/errors"
	"github.com/textscan/ocr-server/internal/ocr"
	"github.com/textscan/ocr-server/internal/storage"
)

type fakeEngine struct {
	detections []ocr.Detection
	err        error
	block      bool
	calls      int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, image []byte, profile ocr.Profile) ([]ocr.Detection, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.detections, nil
}

type fakeCache struct {
	entries   map[string]*ocr.DocumentResult
	lookupErr error
	storeErr  error
	stores    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*ocr.DocumentResult)}
}

func (f *fakeCache) Lookup(ctx context.Context, fp string) (*ocr.DocumentResult, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.entries[fp], nil
}

func (f *fakeCache) Store(ctx context.Context, fp string, result *ocr.DocumentResult) error {
	f.stores++
	if f.storeErr != nil {
		return f.storeErr
	}
	f.entries[fp] = result
	return nil
}

type fakeHistory struct {
	entries   []*storage.HistoryEntry
	appendErr error
}

func (f *fakeHistory) Append(ctx context.Context, entry *storage.HistoryEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	entry.ID = fmt.Sprintf("entry-%d", len(f.entries)+1)
	f.entries = append(f.entries, entry)
	return nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func testSetup(t *testing.T, engine *fakeEngine, cache *fakeCache, history *fakeHistory) *Processor {
	t.Helper()
	dir := t.TempDir()
	artifacts, err := artifact.NewStore(filepath.Join(dir, "uploads"), filepath.Join(dir, "processed"))
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}

	p, err := NewProcessor(&Config{
		Engine:        engine,
		Cache:         cache,
		History:       history,
		Artifacts:     artifacts,
		LineThreshold: 15,
		MinConfidence: 0,
		Profile:       "accurate",
		OCRTimeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

func wordDetection(text string, y int, confidence float64) ocr.Detection {
	return ocr.Detection{
		Polygon:    ocr.RectPolygon(10, y, 60, y+20),
		Text:       text,
		Confidence: confidence,
	}
}

func TestProcessRejectsEmptyUpload(t *testing.T) {
	p := testSetup(t, &fakeEngine{}, newFakeCache(), &fakeHistory{})

	_, err := p.Process(context.Background(), &Request{Filename: "empty.png"})
	if txerrors.CodeOf(err) != txerrors.ErrorInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestProcessRejectsNonImagePayload(t *testing.T) {
	engine := &fakeEngine{}
	p := testSetup(t, engine, newFakeCache(), &fakeHistory{})

	_, err := p.Process(context.Background(), &Request{
		Filename: "notes.txt",
		Data:     []byte("plain text pretending to be an image"),
	})
	if txerrors.CodeOf(err) != txerrors.ErrorInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if engine.calls != 0 {
		t.Fatalf("engine must not run for rejected input")
	}
}

func TestProcessMissRunsEngineAndPersists(t *testing.T) {
	engine := &fakeEngine{detections: []ocr.Detection{
		wordDetection("hello", 10, 0.9),
		wordDetection("world", 12, 0.8),
	}}
	cache := newFakeCache()
	history := &fakeHistory{}
	p := testSetup(t, engine, cache, history)

	result, err := p.Process(context.Background(), &Request{
		Filename:      "scan.png",
		Data:          testPNG(t),
		MinConfidence: -1,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Cached {
		t.Fatalf("first processing must be a cache miss")
	}
	if !strings.Contains(result.Text, "hello") {
		t.Fatalf("expected recognized text, got %q", result.Text)
	}
	if engine.calls != 1 {
		t.Fatalf("expected one engine invocation, got %d", engine.calls)
	}
	if cache.stores != 1 {
		t.Fatalf("expected result to be cached")
	}
	if len(history.entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(history.entries))
	}
	if history.entries[0].Fingerprint != result.Fingerprint {
		t.Fatalf("history entry must carry the content fingerprint")
	}
	if result.HistoryID == "" {
		t.Fatalf("expected history id on result")
	}
	if result.UploadedImage == "" {
		t.Fatalf("expected upload artifact name on result")
	}
}

func TestProcessHitSkipsEngine(t *testing.T) {
	engine := &fakeEngine{detections: []ocr.Detection{wordDetection("once", 10, 0.95)}}
	cache := newFakeCache()
	history := &fakeHistory{}
	p := testSetup(t, engine, cache, history)

	data := testPNG(t)

	first, err := p.Process(context.Background(), &Request{Filename: "a.png", Data: data, MinConfidence: -1})
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}

	second, err := p.Process(context.Background(), &Request{Filename: "b.png", Data: data, MinConfidence: -1})
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}

	if !second.Cached {
		t.Fatalf("identical bytes must hit the cache")
	}
	if engine.calls != 1 {
		t.Fatalf("cache hit must not re-run the engine, got %d calls", engine.calls)
	}
	if second.Text != first.Text {
		t.Fatalf("cached document differs: %q vs %q", second.Text, first.Text)
	}
	if len(history.entries) != 2 {
		t.Fatalf("every processing event must land in history, got %d", len(history.entries))
	}
}

func TestProcessEngineFailureLeavesStoresUntouched(t *testing.T) {
	engine := &fakeEngine{err: fmt.Errorf("tesseract exploded")}
	cache := newFakeCache()
	history := &fakeHistory{}
	p := testSetup(t, engine, cache, history)

	_, err := p.Process(context.Background(), &Request{Filename: "bad.png", Data: testPNG(t), MinConfidence: -1})
	if txerrors.CodeOf(err) != txerrors.ErrorEngineFailure {
		t.Fatalf("expected ENGINE_FAILURE, got %v", err)
	}
	if cache.stores != 0 {
		t.Fatalf("failed processing must not populate the cache")
	}
	if len(history.entries) != 0 {
		t.Fatalf("failed processing must not append history")
	}
}

func TestProcessEngineTimeout(t *testing.T) {
	engine := &fakeEngine{block: true}
	cache := newFakeCache()
	p := testSetup(t, engine, cache, &fakeHistory{})
	p.cfg.OCRTimeout = 50 * time.Millisecond

	_, err := p.Process(context.Background(), &Request{Filename: "slow.png", Data: testPNG(t), MinConfidence: -1})
	if txerrors.CodeOf(err) != txerrors.ErrorEngineFailure {
		t.Fatalf("expected ENGINE_FAILURE on timeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout message, got %v", err)
	}
}

func TestProcessDegradedStoresYieldWarnings(t *testing.T) {
	engine := &fakeEngine{detections: []ocr.Detection{wordDetection("degraded", 10, 0.9)}}
	cache := newFakeCache()
	cache.storeErr = fmt.Errorf("pq: connection refused")
	history := &fakeHistory{appendErr: fmt.Errorf("pq: connection refused")}
	p := testSetup(t, engine, cache, history)

	result, err := p.Process(context.Background(), &Request{Filename: "scan.png", Data: testPNG(t), MinConfidence: -1})
	if err != nil {
		t.Fatalf("degraded persistence must not fail the request: %v", err)
	}
	if !strings.Contains(result.Text, "degraded") {
		t.Fatalf("expected computed text, got %q", result.Text)
	}
	if len(result.Warnings) < 2 {
		t.Fatalf("expected cache and history warnings, got %v", result.Warnings)
	}
	if result.HistoryID != "" {
		t.Fatalf("no history id when the append failed")
	}
}

func TestProcessAnnotateProducesBoxedArtifact(t *testing.T) {
	engine := &fakeEngine{detections: []ocr.Detection{wordDetection("boxed", 10, 0.9)}}
	p := testSetup(t, engine, newFakeCache(), &fakeHistory{})

	result, err := p.Process(context.Background(), &Request{
		Filename:      "scan.png",
		Data:          testPNG(t),
		MinConfidence: -1,
		Annotate:      true,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.ProcessedImage == "" {
		t.Fatalf("expected annotated artifact name")
	}
	if !strings.HasPrefix(result.ProcessedImage, artifact.PrefixBoxed) {
		t.Fatalf("annotated artifact must carry the boxed prefix, got %q", result.ProcessedImage)
	}

	path, ok := p.cfg.Artifacts.ProcessedPath(result.ProcessedImage)
	if !ok {
		t.Fatalf("annotated artifact name did not resolve")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("annotated artifact missing on disk: %v", err)
	}
}

func TestProcessQuickSkipsPreprocessing(t *testing.T) {
	engine := &fakeEngine{detections: []ocr.Detection{wordDetection("quick", 10, 0.9)}}
	p := testSetup(t, engine, newFakeCache(), &fakeHistory{})

	result, err := p.Process(context.Background(), &Request{
		Filename:      "scan.png",
		Data:          testPNG(t),
		MinConfidence: -1,
		Preprocess:    true,
		Quick:         true,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	entries, err := os.ReadDir(p.cfg.Artifacts.ProcessedDir())
	if err != nil {
		t.Fatalf("read processed dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), artifact.PrefixPreprocessed) {
			t.Fatalf("quick mode must not write a preprocessed artifact")
		}
	}
	if result.Text != "quick" {
		t.Fatalf("expected recognized text, got %q", result.Text)
	}
}
