// Package job orchestrates a PDF processing run: render pages, recognize
// text, optionally rewrite it with an LLM, and persist the result.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scribelab/pdfscribe/internal/batch"
	"github.com/scribelab/pdfscribe/internal/config"
	"github.com/scribelab/pdfscribe/internal/language"
	"github.com/scribelab/pdfscribe/internal/model"
	"github.com/scribelab/pdfscribe/internal/ocr"
	"github.com/scribelab/pdfscribe/internal/render"
	"github.com/scribelab/pdfscribe/internal/store"
	"github.com/scribelab/pdfscribe/pkg/chat"
)

// ErrStopped signals cooperative cancellation. It is reported as a stopped
// acknowledgment, never as a run error.
var ErrStopped = eris.New("job: stopped by user")

// How long Start waits for a previous worker before abandoning it.
const stopWait = 3 * time.Second

// EventType classifies processor events.
type EventType string

const (
	EventProgress EventType = "progress"
	EventFinished EventType = "finished"
	EventError    EventType = "error"
	EventStopped  EventType = "stopped"
)

// Event is a progress or terminal notification from a run. Each run emits
// ordered progress events followed by exactly one terminal event.
type Event struct {
	Type       EventType
	Status     string
	Percent    float64
	OutputPath string
	Err        error
}

// Config describes one processing run.
type Config struct {
	InputPath   string
	OutputPath  string
	LanguageKey string

	// StartPage/EndPage are 1-based and inclusive; zero values select the
	// document bounds.
	StartPage int
	EndPage   int

	OCROnly       bool
	Provider      string
	Prompt        string
	LLMAPIKey     string
	WordsPerBatch int

	OCR    config.OCRConfig
	Render config.RenderConfig
}

// Processor owns at most one active run at a time.
type Processor struct {
	mu          sync.Mutex
	cfg         Config
	events      chan Event
	store       store.Store
	active      *worker
	lastPercent float64

	// Factory seams for tests.
	openDoc   func(cfg config.RenderConfig, path string) (render.Document, error)
	newEngine func(cfg config.OCRConfig) (ocr.Engine, error)
	newChat   func(provider, apiKey string) (chat.Client, error)
}

type worker struct {
	runID string
	stop  atomic.Bool
	// Set when a newer Start replaces this worker; suppresses its
	// terminal event so each consumer-visible run ends exactly once.
	abandoned atomic.Bool
	done      chan struct{}
}

// NewProcessor creates a Processor. st may be nil when run history is
// disabled; store failures are logged and never fail a run.
func NewProcessor(st store.Store) *Processor {
	return &Processor{
		events: make(chan Event, 64),
		store:  st,
		openDoc: func(cfg config.RenderConfig, path string) (render.Document, error) {
			return render.Open(path,
				render.WithDPI(cfg.DPI),
				render.WithPdfToPPM(cfg.PdfToPPMPath),
				render.WithTempDir(cfg.TempDir),
			)
		},
		newEngine: ocr.New,
		newChat: func(provider, apiKey string) (chat.Client, error) {
			return chat.NewClient(provider, apiKey)
		},
	}
}

// Configure replaces the run configuration. No I/O happens here.
func (p *Processor) Configure(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
}

// Events returns the processor's event stream. Progress events may be
// dropped under backpressure; terminal events are always delivered.
func (p *Processor) Events() <-chan Event {
	return p.events
}

// Start validates the configuration, opens the document, and launches the
// worker goroutine. Validation failures are returned synchronously and no
// run starts. A still-active previous run is asked to stop and waited on
// briefly before being abandoned.
func (p *Processor) Start(ctx context.Context) (string, error) {
	p.mu.Lock()
	cfg := p.cfg
	p.lastPercent = 0
	p.mu.Unlock()

	if cfg.LanguageKey == "" {
		cfg.LanguageKey = language.DefaultKey
	}
	if err := validate(cfg); err != nil {
		return "", err
	}

	p.emitProgress("Loading PDF...", 2)
	doc, err := p.openDoc(cfg.Render, cfg.InputPath)
	if err != nil {
		return "", eris.Wrapf(err, "job: open %s", cfg.InputPath)
	}

	start, end, err := clampRange(cfg.StartPage, cfg.EndPage, doc.PageCount())
	if err != nil {
		doc.Cleanup()
		return "", err
	}

	engine, err := p.newEngine(cfg.OCR)
	if err != nil {
		doc.Cleanup()
		return "", err
	}

	var llm chat.Client
	if !cfg.OCROnly && cfg.Prompt != "" {
		llm, err = p.newChat(cfg.Provider, cfg.LLMAPIKey)
		if err != nil {
			doc.Cleanup()
			return "", err
		}
	}

	p.mu.Lock()
	if prev := p.active; prev != nil {
		prev.abandoned.Store(true)
		prev.stop.Store(true)
		p.mu.Unlock()
		select {
		case <-prev.done:
		case <-time.After(stopWait):
			// Lossy fallback: the old worker keeps running detached but
			// its terminal event is suppressed by the abandoned flag.
			zap.L().Warn("job: previous run did not stop in time, abandoning", zap.String("run_id", prev.runID))
		}
		p.mu.Lock()
	}

	w := &worker{
		runID: uuid.New().String(),
		done:  make(chan struct{}),
	}
	p.active = w
	p.mu.Unlock()

	p.recordCreate(ctx, w.runID, cfg)

	go p.run(ctx, w, cfg, doc, engine, llm, start, end)
	return w.runID, nil
}

// Stop requests cancellation of the active run. It never blocks; the worker
// acknowledges with a stopped event. Stopping an idle processor acknowledges
// immediately.
func (p *Processor) Stop() {
	p.mu.Lock()
	w := p.active
	p.mu.Unlock()

	if w == nil {
		p.emitTerminal(Event{Type: EventStopped, Status: "Stopped"})
		return
	}
	select {
	case <-w.done:
		p.emitTerminal(Event{Type: EventStopped, Status: "Stopped"})
	default:
		w.stop.Store(true)
		p.emitProgress("Stopping...", 0)
	}
}

func validate(cfg Config) error {
	if cfg.InputPath == "" {
		return eris.New("job: no PDF file selected")
	}
	info, err := os.Stat(cfg.InputPath)
	if err != nil || info.IsDir() {
		return eris.Errorf("job: PDF file not found: %s", cfg.InputPath)
	}
	if cfg.OutputPath == "" {
		return eris.New("job: no output location selected")
	}

	switch cfg.OCR.Engine {
	case "", "tesseract":
		if path := cfg.OCR.TesseractPath; path != "" {
			ti, err := os.Stat(path)
			if err != nil {
				return eris.Errorf("job: tesseract executable not found at %s", path)
			}
			if ti.IsDir() || ti.Mode()&0111 == 0 {
				return eris.Errorf("job: tesseract path is not an executable file: %s", path)
			}
		}
	case "vision":
		if cfg.OCR.VisionAPIKey == "" && cfg.OCR.ServiceAccountFile == "" {
			return eris.New("job: vision engine requires an API key or a service account file")
		}
		if sa := cfg.OCR.ServiceAccountFile; sa != "" {
			if fi, err := os.Stat(sa); err != nil || fi.IsDir() {
				return eris.Errorf("job: service account file not found: %s", sa)
			}
		}
	default:
		return eris.Errorf("job: unknown OCR engine %q", cfg.OCR.Engine)
	}

	if !cfg.OCROnly {
		if cfg.LLMAPIKey == "" {
			return eris.New("job: API key required for LLM processing; enable OCR-only mode to skip it")
		}
		if cfg.Prompt == "" {
			return eris.New("job: LLM prompt required; enable OCR-only mode to skip it")
		}
		if _, _, err := chat.ParseProvider(cfg.Provider); err != nil {
			return err
		}
	}
	return nil
}

// clampRange normalizes a 1-based inclusive page range against the document
// size. Zero values select the first and last page respectively.
func clampRange(start, end, totalPages int) (int, int, error) {
	if start < 1 {
		start = 1
	}
	if end < 1 || end > totalPages {
		end = totalPages
	}
	if start > end {
		return 0, 0, eris.Errorf("job: invalid page range %d-%d for %d pages", start, end, totalPages)
	}
	return start, end, nil
}

// run executes the pipeline. It owns the document lifetime and emits exactly
// one terminal event unless the run was abandoned by a newer Start.
func (p *Processor) run(ctx context.Context, w *worker, cfg Config, doc render.Document, engine ocr.Engine, llm chat.Client, start, end int) {
	defer close(w.done)
	defer doc.Cleanup()

	output, err := p.pipeline(ctx, w, cfg, doc, engine, llm, start, end)

	p.mu.Lock()
	if p.active == w {
		p.active = nil
	}
	p.mu.Unlock()
	abandoned := w.abandoned.Load()

	switch {
	case err == nil:
		p.recordComplete(w.runID, model.RunStatusFinished, "")
		if !abandoned {
			p.emitProgress("Done", 100)
			p.emitTerminal(Event{Type: EventFinished, Status: "Done", Percent: 100, OutputPath: output})
		}
	case errors.Is(err, ErrStopped):
		p.recordComplete(w.runID, model.RunStatusStopped, "Process stopped by user.")
		if !abandoned {
			p.emitTerminal(Event{Type: EventStopped, Status: "Stopped"})
		}
	default:
		zap.L().Error("job: run failed", zap.String("run_id", w.runID), zap.Error(err))
		p.recordComplete(w.runID, model.RunStatusFailed, err.Error())
		if !abandoned {
			p.emitTerminal(Event{Type: EventError, Status: "Error", Err: err})
		}
	}
}

func (p *Processor) pipeline(ctx context.Context, w *worker, cfg Config, doc render.Document, engine ocr.Engine, llm chat.Client, start, end int) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("job: panic in pipeline", zap.Any("panic", r))
			output = ""
			err = eris.Errorf("job: unexpected failure during processing: %v", r)
		}
	}()

	lang := language.Lookup(cfg.LanguageKey)
	pageCount := end - start + 1

	// Render
	images := make([]string, 0, pageCount)
	for i := start - 1; i < end; i++ {
		if w.stop.Load() {
			return "", ErrStopped
		}
		n := i - (start - 1) + 1
		p.emitProgress(fmt.Sprintf("Rendering page %d/%d...", n, pageCount), 5+float64(n)/float64(pageCount)*15)

		png, err := doc.RenderPage(ctx, i)
		if err != nil {
			return "", err
		}
		images = append(images, png)
	}

	// Recognize
	p.emitProgress("Performing OCR...", 20)
	ocrResults := make([]string, 0, len(images))
	for i, img := range images {
		if w.stop.Load() {
			return "", ErrStopped
		}
		p.emitProgress(fmt.Sprintf("OCR page %d/%d...", i+1, len(images)), 20+float64(i+1)/float64(len(images))*30)

		text, err := engine.Recognize(ctx, img, lang)
		if err != nil {
			return "", err
		}
		ocrResults = append(ocrResults, text)

		// Each page image is deleted exactly once: here after its OCR, or
		// by doc.Cleanup on an earlier exit.
		if err := os.Remove(img); err != nil {
			zap.L().Warn("job: remove page image", zap.String("path", img), zap.Error(err))
		}
	}

	fullText := strings.Join(ocrResults, "\n\n")

	if cfg.OCROnly || cfg.Prompt == "" {
		if err := writeOutput(cfg.OutputPath, fullText); err != nil {
			return "", err
		}
		return cfg.OutputPath, nil
	}

	// Rewrite
	p.emitProgress("Splitting text into batches...", 55)
	batches := batch.Split(fullText, cfg.WordsPerBatch)

	llmOut := make([]string, 0, len(batches))
	for i, chunk := range batches {
		if w.stop.Load() {
			return "", ErrStopped
		}
		p.emitProgress(fmt.Sprintf("Calling LLM (batch %d/%d)", i+1, len(batches)), 60+float64(i+1)/float64(len(batches))*35)

		label := fmt.Sprintf("(Batch %d of %d)", i+1, len(batches))
		res, err := llm.Transform(ctx, chunk, label, cfg.Prompt)
		if err != nil {
			return "", err
		}
		llmOut = append(llmOut, res)
	}

	if err := writeOutput(cfg.OutputPath, strings.Join(llmOut, "\n\n---\n\n")); err != nil {
		return "", err
	}
	return cfg.OutputPath, nil
}

// writeOutput persists the result atomically: full content to a temp file in
// the destination directory, then rename.
func writeOutput(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pdfscribe-out-*")
	if err != nil {
		return eris.Wrapf(err, "job: create output temp in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "job: write output")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "job: close output")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "job: rename output to %s", path)
	}
	return nil
}

// emitProgress reports advisory progress. Percent never moves backwards
// within a run; events are dropped rather than blocking a slow consumer.
func (p *Processor) emitProgress(status string, percent float64) {
	p.mu.Lock()
	if percent < p.lastPercent {
		percent = p.lastPercent
	}
	p.lastPercent = percent
	p.mu.Unlock()

	ev := Event{Type: EventProgress, Status: status, Percent: percent}
	select {
	case p.events <- ev:
	default:
		// Slow consumer; progress is advisory.
	}
}

func (p *Processor) emitTerminal(ev Event) {
	p.events <- ev
}

func (p *Processor) recordCreate(ctx context.Context, runID string, cfg Config) {
	if p.store == nil {
		return
	}
	engine := cfg.OCR.Engine
	if engine == "" {
		engine = "tesseract"
	}
	err := p.store.CreateRun(ctx, &model.Run{
		ID:         runID,
		InputPath:  cfg.InputPath,
		OutputPath: cfg.OutputPath,
		Engine:     engine,
		Status:     model.RunStatusRunning,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		zap.L().Warn("job: record run", zap.String("run_id", runID), zap.Error(err))
	}
}

func (p *Processor) recordComplete(runID string, status model.RunStatus, message string) {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.CompleteRun(ctx, runID, status, message); err != nil {
		zap.L().Warn("job: record run completion", zap.String("run_id", runID), zap.Error(err))
	}
}
