package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
	"github.com/feichai0017/document-reconstructor/pkg/queue"
)

type processorFunc func(ctx context.Context, id string) error

func (f processorFunc) Process(ctx context.Context, id string) error { return f(ctx, id) }

func newTestWorker(p Processor) (*DocumentWorker, *logger.TestLogger) {
	log := logger.NewTestLogger()
	return &DocumentWorker{
		BaseWorker: BaseWorker{
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		processor: p,
	}, log
}

func TestHandleDocumentProcess(t *testing.T) {
	var got string
	w, _ := newTestWorker(processorFunc(func(ctx context.Context, id string) error {
		got = id
		return nil
	}))

	task, err := queue.NewProcessTask("d1")
	require.NoError(t, err)
	require.NoError(t, w.handleDocumentProcess(context.Background(), task))
	assert.Equal(t, "d1", got)
}

func TestHandleDocumentProcessSkipsRetry(t *testing.T) {
	calls := 0
	w, log := newTestWorker(processorFunc(func(ctx context.Context, id string) error {
		calls++
		if id == "gone" {
			return fmt.Errorf("document gone: %w", models.ErrNotFound)
		}
		return errors.New("page failed")
	}))

	bad := asynq.NewTask(queue.TaskTypeDocumentProcess, []byte("{"))
	err := w.handleDocumentProcess(context.Background(), bad)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 0, calls)
	assert.True(t, log.HasMessage("ERROR", "Invalid task data"))

	for _, id := range []string{"gone", "d1"} {
		task, err := queue.NewProcessTask(id)
		require.NoError(t, err)
		assert.ErrorIs(t, w.handleDocumentProcess(context.Background(), task), asynq.SkipRetry)
	}
	assert.Equal(t, 2, calls)
}

func TestNewDocumentWorkerNeedsProcessor(t *testing.T) {
	_, err := NewDocumentWorker(&Config{RedisAddr: "localhost:6379"}, nil, logger.NewTestLogger())
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
