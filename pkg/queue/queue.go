// pkg/queue/queue.go
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/hibiken/asynq"

    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

// TaskType 定义任务类型
const (
    TaskTypeDocumentProcess = "document:process"
)

// ProcessPayload 文档处理任务的负载
type ProcessPayload struct {
    DocumentID string `json:"documentId"`
}

// QueueConfig 定义队列配置
type QueueConfig struct {
    RedisAddr     string
    RedisPassword string
    RedisDB       int
    Queue         string
    MaxRetry      int
    Timeout       time.Duration
}

// AsynqQueue 通过 asynq 把文档处理交给 worker 进程
type AsynqQueue struct {
    client    *asynq.Client
    inspector *asynq.Inspector
    config    *QueueConfig
    logger    logger.Logger
}

// NewAsynqQueue 创建新的队列实例
func NewAsynqQueue(cfg *QueueConfig, log logger.Logger) *AsynqQueue {
    if cfg.Queue == "" {
        cfg.Queue = "default"
    }
    redisOpt := asynq.RedisClientOpt{
        Addr:     cfg.RedisAddr,
        Password: cfg.RedisPassword,
        DB:       cfg.RedisDB,
    }
    return &AsynqQueue{
        client:    asynq.NewClient(redisOpt),
        inspector: asynq.NewInspector(redisOpt),
        config:    cfg,
        logger:    log,
    }
}

// TaskID is the asynq task id of a document run. At most one run per
// document is queued or active.
func TaskID(documentID string) string {
    return "document:" + documentID
}

// NewProcessTask 创建文档处理任务
func NewProcessTask(documentID string, opts ...asynq.Option) (*asynq.Task, error) {
    payload, err := json.Marshal(ProcessPayload{DocumentID: documentID})
    if err != nil {
        return nil, fmt.Errorf("failed to marshal task: %w", err)
    }
    return asynq.NewTask(TaskTypeDocumentProcess, payload, opts...), nil
}

// ParseProcessPayload 解析任务负载
func ParseProcessPayload(data []byte) (*ProcessPayload, error) {
    var p ProcessPayload
    if err := json.Unmarshal(data, &p); err != nil {
        return nil, fmt.Errorf("failed to unmarshal task: %w", err)
    }
    if p.DocumentID == "" {
        return nil, errors.New("invalid task data: missing documentId")
    }
    return &p, nil
}

// Dispatch 将文档处理任务加入队列. 已在队列中的文档视为成功.
func (q *AsynqQueue) Dispatch(ctx context.Context, id string) error {
    opts := []asynq.Option{
        asynq.Queue(q.config.Queue),
        asynq.TaskID(TaskID(id)),
    }
    if q.config.MaxRetry >= 0 {
        opts = append(opts, asynq.MaxRetry(q.config.MaxRetry))
    }
    if q.config.Timeout > 0 {
        opts = append(opts, asynq.Timeout(q.config.Timeout))
    }

    task, err := NewProcessTask(id, opts...)
    if err != nil {
        return err
    }

    info, err := q.client.EnqueueContext(ctx, task)
    if errors.Is(err, asynq.ErrTaskIDConflict) {
        return q.resolveConflict(ctx, id, task)
    }
    if err != nil {
        return fmt.Errorf("failed to enqueue task: %w", err)
    }

    q.logEnqueued(id, info)
    return nil
}

// resolveConflict 处理任务 ID 冲突: 排队或运行中的任务保留, 已归档或已完成的
// 旧任务被删除后重新入队.
func (q *AsynqQueue) resolveConflict(ctx context.Context, id string, task *asynq.Task) error {
    existing, err := q.inspector.GetTaskInfo(q.config.Queue, TaskID(id))
    switch {
    case errors.Is(err, asynq.ErrTaskNotFound):
        // 旧任务刚被清理, 直接重新入队
    case err != nil:
        return fmt.Errorf("failed to inspect existing task: %w", err)
    case !shouldRequeue(existing.State):
        q.logger.Info("Document task already queued",
            logger.String("document_id", id),
            logger.String("state", existing.State.String()),
        )
        return nil
    default:
        if err := q.inspector.DeleteTask(q.config.Queue, TaskID(id)); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
            return fmt.Errorf("failed to remove finished task: %w", err)
        }
        q.logger.Info("Replacing finished document task",
            logger.String("document_id", id),
            logger.String("state", existing.State.String()),
        )
    }

    info, err := q.client.EnqueueContext(ctx, task)
    if errors.Is(err, asynq.ErrTaskIDConflict) {
        // 并发的 Dispatch 已重新入队
        q.logger.Info("Document task already queued", logger.String("document_id", id))
        return nil
    }
    if err != nil {
        return fmt.Errorf("failed to enqueue task: %w", err)
    }
    q.logEnqueued(id, info)
    return nil
}

// shouldRequeue reports whether a task in state occupies its id without a run
// still to come.
func shouldRequeue(state asynq.TaskState) bool {
    switch state {
    case asynq.TaskStateArchived, asynq.TaskStateCompleted:
        return true
    default:
        return false
    }
}

func (q *AsynqQueue) logEnqueued(id string, info *asynq.TaskInfo) {
    q.logger.Info("Document task enqueued",
        logger.String("document_id", id),
        logger.String("task_id", info.ID),
        logger.String("queue", info.Queue),
    )
}

// Cancel 删除尚未执行的任务. 任务不存在时返回 nil.
func (q *AsynqQueue) Cancel(ctx context.Context, id string) error {
    err := q.inspector.DeleteTask(q.config.Queue, TaskID(id))
    if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
        return nil
    }
    return fmt.Errorf("failed to cancel task: %w", err)
}

// TaskStatus 定义任务状态
type TaskStatus struct {
    TaskID  string `json:"taskId"`
    Status  string `json:"status"`
    Error   string `json:"error,omitempty"`
    Retried int    `json:"retried"`
}

// Status 查询文档任务的状态
func (q *AsynqQueue) Status(ctx context.Context, id string) (*TaskStatus, error) {
    info, err := q.inspector.GetTaskInfo(q.config.Queue, TaskID(id))
    if err != nil {
        return nil, fmt.Errorf("failed to get task info: %w", err)
    }
    return convertAsynqStatus(info), nil
}

// Close 关闭客户端连接
func (q *AsynqQueue) Close() error {
    if err := q.inspector.Close(); err != nil {
        return err
    }
    return q.client.Close()
}

// convertAsynqStatus 将 asynq 状态转换为 TaskStatus
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
    status := &TaskStatus{
        TaskID:  info.ID,
        Retried: info.Retried,
        Error:   info.LastErr,
    }

    switch info.State {
    case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateAggregating:
        status.Status = "pending"
    case asynq.TaskStateActive:
        status.Status = "running"
    case asynq.TaskStateCompleted:
        status.Status = "completed"
    case asynq.TaskStateRetry:
        status.Status = "retrying"
    case asynq.TaskStateArchived:
        status.Status = "failed"
    default:
        status.Status = info.State.String()
    }
    return status
}
