package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
	"github.com/feichai0017/document-reconstructor/pkg/queue"
)

// Processor runs one document to a terminal status.
type Processor interface {
	Process(ctx context.Context, id string) error
}

type DocumentWorker struct {
	BaseWorker
	processor Processor
}

func NewDocumentWorker(cfg *Config, processor Processor, log logger.Logger) (*DocumentWorker, error) {
	if processor == nil {
		return nil, fmt.Errorf("document worker needs a processor: %w", models.ErrConfiguration)
	}
	server := asynq.NewServer(
		cfg.redisOpt(),
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &DocumentWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		processor: processor,
	}

	// 注册任务处理器
	w.registerHandlers()
	return w, nil
}

func (w *DocumentWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeDocumentProcess, w.handleDocumentProcess)
}

// handleDocumentProcess 运行一次文档处理. 引擎自己重试和记录页面错误,
// 所以这里的失败不再交给 asynq 重试.
func (w *DocumentWorker) handleDocumentProcess(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseProcessPayload(t.Payload())
	if err != nil {
		w.logger.Error("Invalid task data",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := w.logger.With(logger.String("document_id", payload.DocumentID))
	log.Info("Processing document task")
	w.writeResult(t, `{"status":"running"}`)

	start := time.Now()
	if err := w.processor.Process(ctx, payload.DocumentID); err != nil {
		log.Error("Document task failed",
			logger.Error(err),
			logger.Duration("elapsed", time.Since(start)),
		)
		w.writeResult(t, fmt.Sprintf(`{"status":"failed","error":%q}`, err.Error()))
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("document %s is gone: %w", payload.DocumentID, asynq.SkipRetry)
		}
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log.Info("Document task completed", logger.Duration("elapsed", time.Since(start)))
	w.writeResult(t, `{"status":"completed"}`)
	return nil
}

func (w *DocumentWorker) writeResult(t *asynq.Task, result string) {
	// 只有服务端派发的任务才有 ResultWriter
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	if _, err := rw.Write([]byte(result)); err != nil {
		w.logger.Warn("Failed to write task result", logger.Error(err))
	}
}

func (w *DocumentWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}
	w.logger.Info("Document worker started")

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.stopChan:
		}
	}()

	return nil
}
