package handlers

import (
    "fmt"
    "net/http"
    "net/url"
    "strconv"

    "github.com/gin-gonic/gin"

    "github.com/feichai0017/document-reconstructor/internal/models"
    "github.com/feichai0017/document-reconstructor/internal/service/document"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

type DocumentHandler struct {
    service document.DocumentProcessor
    tasks   TaskStatusReader
    logger  logger.ContextLogger
}

// TextRequest 保存编辑后的文本
type TextRequest struct {
    Text *string `json:"text"`
}

func NewDocumentHandler(service document.DocumentProcessor, log logger.Logger) *DocumentHandler {
    return &DocumentHandler{
        service: service,
        logger:  logger.NewContextLogger(log),
    }
}

// ListDocuments 列出所有文档, 最新的在前
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
    docs, err := h.service.ListDocuments(c.Request.Context())
    if err != nil {
        handleError(c, h.logger, statusFor(err), "Failed to list documents", err)
        return
    }
    if docs == nil {
        docs = []*models.Document{}
    }
    c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocument(c *gin.Context) {
    doc, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
    if err != nil {
        handleError(c, h.logger, statusFor(err), "Failed to get document", err)
        return
    }
    c.JSON(http.StatusOK, doc)
}

// UpsertDocument 保存文档, startProcessing 为 true 时开始后台处理
func (h *DocumentHandler) UpsertDocument(c *gin.Context) {
    var doc models.Document
    if err := c.ShouldBindJSON(&doc); err != nil {
        handleError(c, h.logger, http.StatusBadRequest, "Invalid document body", err)
        return
    }

    saved, err := h.service.UpsertDocument(c.Request.Context(), &doc)
    if err != nil {
        handleError(c, h.logger, statusFor(err), "Failed to save document", err)
        return
    }
    c.JSON(http.StatusOK, saved)
}

func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
    if err := h.service.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
        handleError(c, h.logger, statusFor(err), "Failed to delete document", err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"success": true})
}

// ProcessDocument 重新处理文档, 已完成的页面会被保留
func (h *DocumentHandler) ProcessDocument(c *gin.Context) {
    id := c.Param("id")
    if err := h.service.ProcessDocument(c.Request.Context(), id); err != nil {
        handleError(c, h.logger, statusFor(err), "Failed to start processing", err)
        return
    }
    c.JSON(http.StatusAccepted, gin.H{"success": true, "id": id})
}

// GetText 按标签重建纯文本
func (h *DocumentHandler) GetText(c *gin.Context) {
    labels := models.ParseLabelSet(c.Query("labels"))
    text, err := h.service.CleanText(c.Request.Context(), c.Param("id"), labels)
    if err != nil {
        handleError(c, h.logger, statusFor(err), "Failed to build text", err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"text": text})
}

func (h *DocumentHandler) SaveText(c *gin.Context) {
    var req TextRequest
    if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
        handleError(c, h.logger, http.StatusBadRequest, "Body must be {\"text\": string}", err)
        return
    }

    doc, err := h.service.SaveText(c.Request.Context(), c.Param("id"), *req.Text)
    if err != nil {
        handleError(c, h.logger, statusFor(err), "Failed to save text", err)
        return
    }
    c.JSON(http.StatusOK, doc)
}

// Export 下载 md / txt / html
func (h *DocumentHandler) Export(c *gin.Context) {
    format := document.ExportFormat(c.DefaultQuery("format", string(document.FormatMarkdown)))
    labels := models.ParseLabelSet(c.Query("labels"))

    export, err := h.service.Export(c.Request.Context(), c.Param("id"), format, labels)
    if err != nil {
        handleError(c, h.logger, statusFor(err), "Failed to export document", err)
        return
    }

    c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(export.FileName)))
    c.Data(http.StatusOK, export.ContentType, export.Body)
}

func (h *DocumentHandler) PageThumbnail(c *gin.Context) {
    index, err := strconv.Atoi(c.Param("index"))
    if err != nil || index < 0 {
        handleError(c, h.logger, http.StatusBadRequest, "Page index must be a non-negative integer", err)
        return
    }
    width := 0
    if raw := c.Query("width"); raw != "" {
        if width, err = strconv.Atoi(raw); err != nil {
            handleError(c, h.logger, http.StatusBadRequest, "Width must be an integer", err)
            return
        }
    }

    data, err := h.service.PageThumbnail(c.Request.Context(), c.Param("id"), index, width)
    if err != nil {
        handleError(c, h.logger, statusFor(err), "Failed to build thumbnail", err)
        return
    }
    c.Header("Cache-Control", "no-cache")
    c.Data(http.StatusOK, "image/jpeg", data)
}

// TaskStatus 查询队列中的任务状态, 只在使用队列派发时可用
func (h *DocumentHandler) TaskStatus(c *gin.Context) {
    if h.tasks == nil {
        handleError(c, h.logger, http.StatusNotFound, "Task status is only available with the queue dispatcher", nil)
        return
    }
    status, err := h.tasks.Status(c.Request.Context(), c.Param("id"))
    if err != nil {
        handleError(c, h.logger, http.StatusNotFound, "Task not found", err)
        return
    }
    c.JSON(http.StatusOK, status)
}
