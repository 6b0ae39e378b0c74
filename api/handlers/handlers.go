package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/internal/service/document"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
	"github.com/feichai0017/document-reconstructor/pkg/queue"
)

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// TaskStatusReader reports the queue state of a document run.
type TaskStatusReader interface {
	Status(ctx context.Context, id string) (*queue.TaskStatus, error)
}

type Handlers struct {
	Document *DocumentHandler
	OCR      *OCRHandler
}

func NewHandlers(
	documentService document.DocumentProcessor,
	tasks TaskStatusReader,
	log logger.Logger,
) *Handlers {
	docs := NewDocumentHandler(documentService, log)
	docs.tasks = tasks
	return &Handlers{
		Document: docs,
		OCR:      NewOCRHandler(documentService, log),
	}
}

// Health 健康检查
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidDocument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleError 统一错误处理
func handleError(c *gin.Context, log logger.ContextLogger, status int, message string, err error) {
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	l := log.FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		l.Error(message, fields...)
	} else {
		l.Warn(message, fields...)
	}

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	} else {
		response.Error = message
	}
	c.AbortWithStatusJSON(status, response)
}
