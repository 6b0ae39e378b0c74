package document

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	ocr "github.com/feichai0017/document-reconstructor/internal/agent/document"
	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
)

// Archiver copies a finished document somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, doc *models.Document) error
}

// EngineConfig tunes a processing run.
type EngineConfig struct {
	// StartDelay is waited before the first metadata read, so a run triggered
	// right after a save sees the written record.
	StartDelay time.Duration
	// MetadataRetry governs the initial metadata read.
	MetadataRetry RetryPolicy
}

// DefaultEngineConfig: 1s start delay, 3 metadata attempts 500ms apart.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		StartDelay: time.Second,
		MetadataRetry: RetryPolicy{
			MaxAttempts: 3,
			Backoff:     ConstantBackoff(500 * time.Millisecond),
		},
	}
}

// Engine runs documents page by page. Page i+1 is only started after the
// outcome of page i has been written to the store.
type Engine struct {
	store      Store
	recognizer ocr.Recognizer
	registry   Registry
	archiver   Archiver
	config     *EngineConfig
	logger     logger.Logger
}

func NewEngine(store Store, recognizer ocr.Recognizer, registry Registry, cfg *EngineConfig, log logger.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultEngineConfig()
	}
	if registry == nil {
		registry = NewMemoryRegistry()
	}
	return &Engine{
		store:      store,
		recognizer: recognizer,
		registry:   registry,
		config:     cfg,
		logger:     log,
	}
}

// SetArchiver enables archiving of terminal snapshots.
func (e *Engine) SetArchiver(a Archiver) {
	e.archiver = a
}

// Process runs document id to a terminal status. It returns nil immediately
// when another run holds the document. A failure before the metadata could be
// read (panics included) writes nothing; later failures mark the document error when it still
// exists.
func (e *Engine) Process(ctx context.Context, id string) (err error) {
	log := e.logger.With(logger.String("document_id", id))

	acquired, err := e.registry.TryAcquire(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to acquire document %s: %w", id, err)
	}
	if !acquired {
		log.Info("Document is already being processed, skipping")
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := e.registry.Release(releaseCtx, id); rerr != nil {
			log.Error("Failed to release document guard", logger.Error(rerr))
		}
	}()

	loaded := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing document %s: %v", id, r)
			log.Error("Processing panicked",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
			if loaded {
				e.markFailed(id, err, log)
			}
		}
	}()

	doc, err := e.loadDocument(ctx, id)
	if err != nil {
		log.Warn("Document metadata unavailable, abandoning run", logger.Error(err))
		return err
	}
	loaded = true

	if err := e.run(ctx, doc, log); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Info("Document was deleted during processing")
			return nil
		}
		log.Error("Processing failed", logger.Error(err))
		e.markFailed(id, err, log)
		return err
	}
	return nil
}

func (e *Engine) loadDocument(ctx context.Context, id string) (*models.Document, error) {
	if err := sleep(ctx, e.config.StartDelay); err != nil {
		return nil, err
	}

	var doc *models.Document
	err := e.config.MetadataRetry.Do(ctx, func(ctx context.Context) error {
		d, err := e.store.Get(ctx, id)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	return doc, nil
}

func (e *Engine) run(ctx context.Context, working *models.Document, log logger.Logger) error {
	started := time.Now()
	working.Status = models.StatusProcessing
	if err := e.persist(ctx, working); err != nil {
		return err
	}

	log.Info("Processing started",
		logger.Int("pages", len(working.Pages)),
		logger.Int("completed", working.CountByStatus(models.PageCompleted)),
		logger.String("model", working.ModelUsed),
	)

	for _, i := range pageOrder(working.Pages) {
		page := &working.Pages[i]
		if page.Status == models.PageCompleted {
			continue
		}

		blocks, perr := e.recognizePage(ctx, working, *page)
		if perr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("processing interrupted: %w", ctx.Err())
			}
			log.Warn("Page failed",
				logger.Int("page", page.Index),
				logger.Error(perr),
			)
			page.Status = models.PageError
			page.Error = perr.Error()
			page.Blocks = nil
		} else {
			page.Status = models.PageCompleted
			page.Error = ""
			page.Blocks = blocks
			if err := e.store.WritePageMarkdown(ctx, working.ID, page.Index, blocks); err != nil {
				log.Warn("Failed to write page markdown",
					logger.Int("page", page.Index),
					logger.Error(err),
				)
			}
		}
		working.AdvanceProcessed()

		if err := e.persist(ctx, working); err != nil {
			return err
		}
	}

	working.Status = working.TerminalStatus()
	if err := e.persist(ctx, working); err != nil {
		return err
	}

	log.Info("Processing finished",
		logger.String("status", string(working.Status)),
		logger.Int("completed", working.CountByStatus(models.PageCompleted)),
		logger.Int("failed", working.CountByStatus(models.PageError)),
		logger.Duration("elapsed", time.Since(started)),
	)

	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, working.Clone()); err != nil {
			log.Warn("Failed to archive document", logger.Error(err))
		}
	}
	return nil
}

func (e *Engine) recognizePage(ctx context.Context, doc *models.Document, page models.Page) ([]models.TextBlock, error) {
	image, mimeType, err := e.store.ReadPageImage(ctx, doc.ID, page)
	if err != nil {
		return nil, err
	}
	blocks, err := e.recognizer.Recognize(ctx, image, mimeType, doc.ModelUsed)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []models.TextBlock{}
	}
	return blocks, nil
}

// persist merges run progress into the latest stored record. Fields the run
// does not own (name, savedText, ...) keep whatever was saved meanwhile.
func (e *Engine) persist(ctx context.Context, working *models.Document) error {
	snapshot := working.Clone()
	_, err := e.store.Update(ctx, working.ID, func(latest *models.Document) error {
		mergeProgress(latest, snapshot)
		return nil
	})
	return err
}

func mergeProgress(latest, progress *models.Document) {
	previous := latest.ProcessedPages
	latest.Pages = progress.Pages
	latest.Status = progress.Status
	latest.ProcessedPages = progress.ProcessedPages
	if previous > latest.ProcessedPages {
		latest.ProcessedPages = previous
	}
	latest.AdvanceProcessed()
}

// markFailed records a fatal failure. Pages without an outcome get the cause as
// their error, so no page stays pending under a terminal status. A document
// deleted in the meantime is left alone.
func (e *Engine) markFailed(id string, cause error, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := e.store.Update(ctx, id, func(latest *models.Document) error {
		for i := range latest.Pages {
			if latest.Pages[i].Status == models.PagePending {
				latest.Pages[i].Status = models.PageError
				latest.Pages[i].Error = cause.Error()
			}
		}
		latest.Status = models.StatusError
		latest.AdvanceProcessed()
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		log.Info("Document no longer exists, not marking it failed")
	default:
		log.Error("Failed to mark document as failed", logger.Error(err))
	}
}

// pageOrder returns slice positions sorted by page index.
func pageOrder(pages []models.Page) []int {
	order := make([]int, len(pages))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pages[order[a]].Index < pages[order[b]].Index
	})
	return order
}
