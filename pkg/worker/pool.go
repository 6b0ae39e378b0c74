package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/feichai0017/document-reconstructor/pkg/logger"
)

// ErrPoolClosed is returned by Dispatch after Shutdown.
var ErrPoolClosed = errors.New("worker pool is closed")

// Handler processes one document id.
type Handler func(ctx context.Context, id string) error

// Pool runs handlers in-process on at most size goroutines at a time.
// Dispatch never blocks the caller.
type Pool struct {
	handler Handler
	sem     *semaphore.Weighted
	logger  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(size int, handler Handler, log logger.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		handler: handler,
		sem:     semaphore.NewWeighted(int64(size)),
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Dispatch schedules id and returns. Runs outlive the caller's context.
func (p *Pool) Dispatch(_ context.Context, id string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(id)
	return nil
}

func (p *Pool) run(id string) {
	defer p.wg.Done()

	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		p.logger.Warn("Dropped queued run on shutdown", logger.String("document_id", id))
		return
	}
	defer p.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panicked",
				logger.String("document_id", id),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
		}
	}()

	start := time.Now()
	if err := p.handler(p.ctx, id); err != nil {
		p.logger.Error("Background run failed",
			logger.String("document_id", id),
			logger.Error(err),
			logger.Duration("elapsed", time.Since(start)),
		)
		return
	}
	p.logger.Debug("Background run done",
		logger.String("document_id", id),
		logger.Duration("elapsed", time.Since(start)),
	)
}

// Shutdown stops accepting work and waits for running handlers. When ctx ends
// first the handlers' context is canceled and Shutdown still waits for them
// to return.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
