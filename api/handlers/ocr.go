package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/internal/service/document"
	"github.com/feichai0017/document-reconstructor/internal/utils/dataurl"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
)

// ProcessPageRequest is the body of POST /api/process-page.
type ProcessPageRequest struct {
	Base64Image string `json:"base64Image"`
	MimeType    string `json:"mimeType"`
	ModelName   string `json:"modelName"`
}

// OCRHandler serves the synchronous model endpoints.
type OCRHandler struct {
	service document.DocumentProcessor
	logger  logger.ContextLogger
}

func NewOCRHandler(service document.DocumentProcessor, log logger.Logger) *OCRHandler {
	return &OCRHandler{
		service: service,
		logger:  logger.NewContextLogger(log),
	}
}

// ProcessPage returns {"text": "<json of {blocks}>"}.
func (h *OCRHandler) ProcessPage(c *gin.Context) {
	var req ProcessPageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Base64Image == "" {
		handleError(c, h.logger, http.StatusBadRequest, "Body must contain base64Image", err)
		return
	}

	image, mimeType, err := dataurl.Decode(req.Base64Image)
	if err != nil {
		handleError(c, h.logger, http.StatusBadRequest, "base64Image is not valid base64", err)
		return
	}
	if req.MimeType != "" {
		mimeType = req.MimeType
	}

	blocks, err := h.service.RecognizePage(c.Request.Context(), image, mimeType, req.ModelName)
	if err != nil {
		// 同步 OCR 的所有失败都是 500
		handleError(c, h.logger, http.StatusInternalServerError, "Failed to process page", err)
		return
	}

	if blocks == nil {
		blocks = []models.TextBlock{}
	}
	text, err := json.Marshal(models.BlockList{Blocks: blocks})
	if err != nil {
		handleError(c, h.logger, http.StatusInternalServerError, "Failed to encode blocks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": string(text)})
}

func (h *OCRHandler) GenerateLogo(c *gin.Context) {
	logo, err := h.service.GenerateLogo(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, http.StatusInternalServerError, "Failed to generate logo", err)
		return
	}
	c.JSON(http.StatusOK, logo)
}
