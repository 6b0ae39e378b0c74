package document

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/feichai0017/document-reconstructor/config"
	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
)

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	prefix    string
	threshold time.Time
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Store(ctx context.Context, reader io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[filename] = data
	return filename, nil
}

func (m *memStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, id)
	return nil
}

func (m *memStorage) CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefix = prefix
	m.threshold = threshold
	return nil
}

func TestObjectArchiverWritesSnapshot(t *testing.T) {
	storage := newMemStorage()
	archiver := NewObjectArchiver(storage, "documents", time.Hour, logger.NewTestLogger())

	doc := completedDoc()
	require.NoError(t, archiver.Archive(context.Background(), doc))

	require.Contains(t, storage.objects, "documents/d1/metadata.json")
	var archived models.Document
	require.NoError(t, json.Unmarshal(storage.objects["documents/d1/metadata.json"], &archived))
	assert.Equal(t, doc.ID, archived.ID)
	assert.Len(t, archived.Pages, 2)

	assert.Contains(t, string(storage.objects["documents/d1/document.md"]), "# Chapter")
}

func TestObjectArchiverCleanup(t *testing.T) {
	storage := newMemStorage()
	archiver := NewObjectArchiver(storage, "documents", 24*time.Hour, logger.NewTestLogger())

	before := time.Now()
	require.NoError(t, archiver.Cleanup(context.Background()))
	assert.WithinDuration(t, before.Add(-24*time.Hour), storage.threshold, time.Minute)
	assert.Equal(t, "documents/", storage.prefix)

	storage.threshold = time.Time{}
	noRetention := NewObjectArchiver(storage, "documents", 0, logger.NewTestLogger())
	require.NoError(t, noRetention.Cleanup(context.Background()))
	assert.True(t, storage.threshold.IsZero())
}

func TestEngineArchivesThroughObjectStorage(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, newDoc("d1", 1))
	storage := newMemStorage()

	engine := NewEngine(store, &fakeRecognizer{}, nil, testEngineConfig(), logger.NewTestLogger())
	engine.SetArchiver(NewObjectArchiver(storage, "archive", 0, logger.NewTestLogger()))
	require.NoError(t, engine.Process(context.Background(), "d1"))

	assert.Contains(t, string(storage.objects["archive/d1/document.md"]), "text of page-0")
}

func TestEngineConfigFrom(t *testing.T) {
	ec := EngineConfigFrom(cfg.ProcessingConfig{
		StartDelay:       0,
		MetadataAttempts: 5,
		MetadataBackoff:  time.Second,
	})
	assert.Equal(t, time.Duration(0), ec.StartDelay)
	assert.Equal(t, 5, ec.MetadataRetry.MaxAttempts)
	assert.Equal(t, time.Second, ec.MetadataRetry.Backoff(3))

	ec = EngineConfigFrom(cfg.ProcessingConfig{})
	assert.Equal(t, 3, ec.MetadataRetry.MaxAttempts)
}

func TestNewArchiverFromConfigDisabled(t *testing.T) {
	a, err := NewArchiverFromConfig(context.Background(), cfg.Default(), logger.NewTestLogger())
	require.NoError(t, err)
	assert.Nil(t, a)
}
