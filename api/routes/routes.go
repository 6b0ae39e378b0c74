package routes

import (
    "github.com/gin-gonic/gin"

    "github.com/feichai0017/document-reconstructor/api/handlers"
    "github.com/feichai0017/document-reconstructor/api/middleware"
    "github.com/feichai0017/document-reconstructor/internal/service/document"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

// Options 路由配置
type Options struct {
    AllowOrigins []string
    MaxBodyBytes int64
    // FilesDir is served under /files
    FilesDir string
}

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, opts Options, log logger.Logger) {
    // 全局中间件
    r.Use(middleware.RequestID())
    r.Use(middleware.AccessLog(log))
    r.Use(middleware.CORS(opts.AllowOrigins))

    if opts.FilesDir != "" {
        r.Static(document.FilesPrefix, opts.FilesDir)
    }

    api := r.Group("/api")
    api.Use(middleware.BodyLimit(opts.MaxBodyBytes))

    // 健康检查
    api.GET("/health", handlers.Health)

    api.POST("/process-page", h.OCR.ProcessPage)
    api.POST("/generate-logo", h.OCR.GenerateLogo)

    // 文档路由组
    docs := api.Group("/documents")
    {
        docs.GET("", h.Document.ListDocuments)
        docs.POST("", h.Document.UpsertDocument)
        docs.GET("/:id", h.Document.GetDocument)
        docs.DELETE("/:id", h.Document.DeleteDocument)
        docs.POST("/:id/process", h.Document.ProcessDocument)
        docs.GET("/:id/task", h.Document.TaskStatus)
        docs.GET("/:id/text", h.Document.GetText)
        docs.PUT("/:id/text", h.Document.SaveText)
        docs.GET("/:id/export", h.Document.Export)
        docs.GET("/:id/pages/:index/thumbnail", h.Document.PageThumbnail)
    }
}
