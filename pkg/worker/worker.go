package worker

import (
    "context"

    "github.com/hibiken/asynq"

    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

type Worker interface {
    Start(ctx context.Context) error
    Stop() error
}

type Config struct {
    RedisAddr     string
    RedisPassword string
    RedisDB       int
    Concurrency   int
    Queues        map[string]int
}

func (c *Config) redisOpt() asynq.RedisClientOpt {
    return asynq.RedisClientOpt{
        Addr:     c.RedisAddr,
        Password: c.RedisPassword,
        DB:       c.RedisDB,
    }
}

type BaseWorker struct {
    server   *asynq.Server
    mux      *asynq.ServeMux
    logger   logger.Logger
    stopChan chan struct{}
}

// Stop 优雅停止: 等待正在执行的任务结束
func (w *BaseWorker) Stop() error {
    select {
    case <-w.stopChan:
        return nil
    default:
    }
    close(w.stopChan)
    w.server.Shutdown()
    return nil
}

// Done is closed once Stop has been called.
func (w *BaseWorker) Done() <-chan struct{} {
    return w.stopChan
}
