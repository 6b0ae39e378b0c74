package document

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
)

func pngDataURL(content string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

// newDoc builds a pending document whose page images contain "page-<i>".
func newDoc(id string, pages int) *models.Document {
	doc := &models.Document{
		ID:        id,
		Name:      "scan.pdf",
		Type:      models.TypeFile,
		Status:    models.StatusPending,
		ModelUsed: "test-model",
		Pages:     make([]models.Page, pages),
	}
	for i := range doc.Pages {
		doc.Pages[i] = models.Page{
			Index:    i,
			ImageURL: pngDataURL(fmt.Sprintf("page-%d", i)),
			Status:   models.PagePending,
		}
	}
	return doc
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(t.TempDir(), logger.NewTestLogger())
}

func seed(t *testing.T, store Store, doc *models.Document) *models.Document {
	t.Helper()
	saved, err := store.Upsert(context.Background(), doc)
	require.NoError(t, err)
	return saved
}

// fakeRecognizer returns one MAIN_TEXT block echoing the image content and
// fails for images listed in failOn.
type fakeRecognizer struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]bool
	hook   func(image string)
}

func (f *fakeRecognizer) Recognize(ctx context.Context, image []byte, mimeType, model string) ([]models.TextBlock, error) {
	f.mu.Lock()
	f.calls = append(f.calls, string(image))
	hook := f.hook
	fail := f.failOn[string(image)]
	f.mu.Unlock()

	if hook != nil {
		hook(string(image))
	}
	if fail {
		return nil, fmt.Errorf("model rejected %s: %w", image, models.ErrUpstream)
	}
	return []models.TextBlock{{Text: "text of " + string(image), Label: models.LabelMainText}}, nil
}

func (f *fakeRecognizer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testEngineConfig() *EngineConfig {
	return &EngineConfig{
		StartDelay:    0,
		MetadataRetry: RetryPolicy{MaxAttempts: 2, Backoff: ConstantBackoff(0)},
	}
}

type recordingArchiver struct {
	mu   sync.Mutex
	docs []*models.Document
	err  error
}

func (a *recordingArchiver) Archive(ctx context.Context, doc *models.Document) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs = append(a.docs, doc)
	return a.err
}

var errBoom = errors.New("boom")
