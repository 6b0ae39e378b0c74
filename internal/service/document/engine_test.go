package document

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ocr "github.com/feichai0017/document-reconstructor/internal/agent/document"
	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
)

func pageStatuses(doc *models.Document) []models.PageStatus {
	out := make([]models.PageStatus, len(doc.Pages))
	for i, p := range doc.Pages {
		out[i] = p.Status
	}
	return out
}

func TestProcessSinglePageTitle(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 1))
	rec := ocr.RecognizerFunc(func(context.Context, []byte, string, string) ([]models.TextBlock, error) {
		return []models.TextBlock{{Text: "Hello", Label: models.LabelTitle}}, nil
	})
	engine := NewEngine(store, rec, nil, testEngineConfig(), logger.NewTestLogger())

	require.NoError(t, engine.Process(context.Background(), "d1"))

	doc, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, doc.Status)
	assert.Equal(t, []models.PageStatus{models.PageCompleted}, pageStatuses(doc))
	assert.Equal(t, 1, doc.ProcessedPages)

	md, err := os.ReadFile(filepath.Join(store.Dir("d1"), "page_0.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Hello\n\n", string(md))
}

func TestProcessPartialSuccess(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 3))
	rec := &fakeRecognizer{failOn: map[string]bool{"page-1": true}}
	engine := NewEngine(store, rec, nil, testEngineConfig(), logger.NewTestLogger())

	require.NoError(t, engine.Process(context.Background(), "d1"))

	doc, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, doc.Status)
	assert.Equal(t, []models.PageStatus{models.PageCompleted, models.PageError, models.PageCompleted}, pageStatuses(doc))
	assert.Equal(t, 3, doc.ProcessedPages)
	assert.Contains(t, doc.Pages[1].Error, "model rejected page-1")
	assert.Equal(t, "text of page-2", doc.Pages[2].Blocks[0].Text)
	assert.Equal(t, []string{"page-0", "page-1", "page-2"}, rec.Calls())

	md, err := os.ReadFile(filepath.Join(store.Dir("d1"), "page_2.md"))
	require.NoError(t, err)
	assert.Equal(t, "text of page-2\n\n", string(md))
}

func TestProcessAllPagesFail(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 2))
	rec := &fakeRecognizer{failOn: map[string]bool{"page-0": true, "page-1": true}}
	engine := NewEngine(store, rec, nil, testEngineConfig(), logger.NewTestLogger())

	require.NoError(t, engine.Process(context.Background(), "d1"))

	doc, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, doc.Status)
	assert.Equal(t, 2, doc.ProcessedPages)
	assert.Equal(t, []models.PageStatus{models.PageError, models.PageError}, pageStatuses(doc))
}

func TestProcessResumeSkipsCompletedPages(t *testing.T) {
	store := newTestStore(t)
	doc := newDoc("d1", 3)
	doc.Pages[0].Status = models.PageCompleted
	doc.Pages[0].Blocks = []models.TextBlock{{Text: "kept", Label: models.LabelMainText}}
	doc.Pages[1].Status = models.PageError
	doc.Pages[1].Error = "earlier failure"
	doc.ProcessedPages = 2
	doc.Status = models.StatusReady
	seed(t, store, doc)

	rec := &fakeRecognizer{}
	engine := NewEngine(store, rec, nil, testEngineConfig(), logger.NewTestLogger())
	require.NoError(t, engine.Process(context.Background(), "d1"))

	assert.Equal(t, []string{"page-1", "page-2"}, rec.Calls())
	got, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.Status)
	assert.Equal(t, "kept", got.Pages[0].Blocks[0].Text)
	assert.Empty(t, got.Pages[1].Error)
	assert.Equal(t, 3, got.ProcessedPages)

	// a second run over a finished document does no OCR at all
	require.NoError(t, engine.Process(context.Background(), "d1"))
	assert.Len(t, rec.Calls(), 2)
}

func TestProcessIsSingleFlightPerDocument(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 1))

	entered := make(chan struct{})
	release := make(chan struct{})
	rec := &fakeRecognizer{hook: func(string) {
		close(entered)
		<-release
	}}
	registry := NewMemoryRegistry()
	engine := NewEngine(store, rec, registry, testEngineConfig(), logger.NewTestLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, engine.Process(context.Background(), "d1"))
	}()

	<-entered
	assert.True(t, registry.Active("d1"))
	// the second call returns at once without touching the document
	require.NoError(t, engine.Process(context.Background(), "d1"))
	close(release)
	wg.Wait()

	assert.Len(t, rec.Calls(), 1)
	assert.False(t, registry.Active("d1"))
}

func TestProcessConcurrentCallsRunOnce(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 2))
	rec := &fakeRecognizer{hook: func(string) { time.Sleep(5 * time.Millisecond) }}
	engine := NewEngine(store, rec, nil, testEngineConfig(), logger.NewTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, engine.Process(context.Background(), "d1"))
		}()
	}
	wg.Wait()

	// every page is recognized exactly once across all callers
	assert.ElementsMatch(t, []string{"page-0", "page-1"}, rec.Calls())
}

func TestProcessMissingImageIsPageError(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 2))
	require.NoError(t, os.Remove(filepath.Join(store.Dir("d1"), "page_0.png")))

	rec := &fakeRecognizer{}
	engine := NewEngine(store, rec, nil, testEngineConfig(), logger.NewTestLogger())
	require.NoError(t, engine.Process(context.Background(), "d1"))

	doc, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, doc.Status)
	assert.Equal(t, []models.PageStatus{models.PageError, models.PageCompleted}, pageStatuses(doc))
	assert.Equal(t, []string{"page-1"}, rec.Calls())
}

func TestProcessMissingMetadataWritesNothing(t *testing.T) {
	store := newTestStore(t)
	rec := &fakeRecognizer{}
	registry := NewMemoryRegistry()
	engine := NewEngine(store, rec, registry, testEngineConfig(), logger.NewTestLogger())

	err := engine.Process(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoDirExists(t, store.Dir("ghost"))
	assert.Empty(t, rec.Calls())
	assert.False(t, registry.Active("ghost"))
}

func TestProcessDeletedMidRunIsNotResurrected(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 3))
	rec := &fakeRecognizer{}
	rec.hook = func(image string) {
		if image == "page-0" {
			require.NoError(t, store.Delete(context.Background(), "d1"))
		}
	}
	engine := NewEngine(store, rec, nil, testEngineConfig(), logger.NewTestLogger())

	require.NoError(t, engine.Process(context.Background(), "d1"))
	assert.NoDirExists(t, store.Dir("d1"))
	assert.Equal(t, []string{"page-0"}, rec.Calls())
}

func TestProcessKeepsConcurrentEdits(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 2))
	rec := &fakeRecognizer{}
	rec.hook = func(image string) {
		if image == "page-0" {
			_, err := store.Update(context.Background(), "d1", func(doc *models.Document) error {
				doc.Name = "renamed while processing"
				return nil
			})
			require.NoError(t, err)
		}
	}
	engine := NewEngine(store, rec, nil, testEngineConfig(), logger.NewTestLogger())
	require.NoError(t, engine.Process(context.Background(), "d1"))

	doc, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "renamed while processing", doc.Name)
	assert.Equal(t, models.StatusReady, doc.Status)
}

func TestProcessPanicMarksDocumentFailed(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 2))
	rec := &fakeRecognizer{hook: func(string) { panic("driver exploded") }}
	registry := NewMemoryRegistry()
	log := logger.NewTestLogger()
	engine := NewEngine(store, rec, registry, testEngineConfig(), log)

	err := engine.Process(context.Background(), "d1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver exploded")
	assert.False(t, registry.Active("d1"))
	assert.True(t, log.HasMessage("ERROR", "Processing panicked"))

	doc, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, doc.Status)
	assert.NotContains(t, pageStatuses(doc), models.PagePending)
	assert.Equal(t, 2, doc.ProcessedPages)
}

// panickingStore panics on every metadata read.
type panickingStore struct {
	Store
}

func (panickingStore) Get(context.Context, string) (*models.Document, error) {
	panic("metadata read exploded")
}

func TestProcessPanicBeforeLoadWritesNothing(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 2))
	rec := &fakeRecognizer{}
	registry := NewMemoryRegistry()
	log := logger.NewTestLogger()
	engine := NewEngine(panickingStore{Store: store}, rec, registry, testEngineConfig(), log)

	err := engine.Process(context.Background(), "d1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata read exploded")
	assert.True(t, log.HasMessage("ERROR", "Processing panicked"))
	assert.False(t, registry.Active("d1"))
	assert.Empty(t, rec.Calls())

	doc, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, doc.Status)
	assert.Equal(t, []models.PageStatus{models.PagePending, models.PagePending}, pageStatuses(doc))
	assert.Equal(t, 0, doc.ProcessedPages)
}

func TestProcessEmptyDocumentEndsInError(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 0))
	engine := NewEngine(store, &fakeRecognizer{}, nil, testEngineConfig(), logger.NewTestLogger())
	require.NoError(t, engine.Process(context.Background(), "d1"))

	doc, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, doc.Status)
}

func TestProcessArchivesTerminalSnapshot(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 1))
	archiver := &recordingArchiver{err: errBoom}
	log := logger.NewTestLogger()
	engine := NewEngine(store, &fakeRecognizer{}, nil, testEngineConfig(), log)
	engine.SetArchiver(archiver)

	require.NoError(t, engine.Process(context.Background(), "d1"))
	require.Len(t, archiver.docs, 1)
	assert.Equal(t, models.StatusReady, archiver.docs[0].Status)
	assert.True(t, log.HasMessage("WARN", "Failed to archive document"))
}

func TestProcessGuardHeldElsewhere(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 1))
	registry := NewMemoryRegistry()
	ok, err := registry.TryAcquire(context.Background(), "d1")
	require.NoError(t, err)
	require.True(t, ok)

	rec := &fakeRecognizer{}
	engine := NewEngine(store, rec, registry, testEngineConfig(), logger.NewTestLogger())
	require.NoError(t, engine.Process(context.Background(), "d1"))
	assert.Empty(t, rec.Calls())
	assert.True(t, registry.Active("d1"))
}

func TestRetryPolicy(t *testing.T) {
	attempts := 0
	err := RetryPolicy{MaxAttempts: 3, Backoff: LinearBackoff(time.Millisecond)}.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = RetryPolicy{MaxAttempts: 2}.Do(context.Background(), func(context.Context) error {
		attempts++
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, attempts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = RetryPolicy{MaxAttempts: 5, Backoff: ConstantBackoff(time.Hour)}.Do(ctx, func(context.Context) error { return errBoom })
	assert.ErrorIs(t, err, context.Canceled)
}
