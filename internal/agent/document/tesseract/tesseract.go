// Package tesseract is a local OCR engine backed by gosseract. It needs the
// tesseract shared libraries at build time.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
)

// Engine recognizes paragraphs. Every block is MAIN_TEXT; tesseract has no
// notion of titles or footnotes.
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
	logger        logger.Logger
}

func NewEngine(languages []string, log logger.Logger) *Engine {
	return &Engine{
		clientFactory: gosseract.NewClient,
		languages:     languages,
		logger:        log,
	}
}

func (e *Engine) Recognize(ctx context.Context, img []byte, mimeType, model string) ([]models.TextBlock, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("failed to decode page image: %v: %w", err, models.ErrUpstream)
	}

	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %v: %w", err, models.ErrConfiguration)
		}
	}
	if err := c.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("set image: %v: %w", err, models.ErrUpstream)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return nil, fmt.Errorf("recognize paragraphs: %v: %w", err, models.ErrUpstream)
	}

	blocks := make([]models.TextBlock, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		blocks = append(blocks, models.TextBlock{
			Text:  text,
			Label: models.LabelMainText,
			Box:   normalizeBox(b.Box, cfg.Width, cfg.Height),
		})
	}

	e.logger.Debug("Tesseract recognized page", logger.Int("blocks", len(blocks)))
	return blocks, nil
}

// normalizeBox scales a pixel rectangle to [ymin, xmin, ymax, xmax] in 0..1000.
func normalizeBox(r image.Rectangle, width, height int) models.BoundingBox {
	if width <= 0 || height <= 0 {
		return models.BoundingBox{}
	}
	sx := 1000 / float64(width)
	sy := 1000 / float64(height)
	return models.BoundingBox{
		float64(r.Min.Y) * sy,
		float64(r.Min.X) * sx,
		float64(r.Max.Y) * sy,
		float64(r.Max.X) * sx,
	}
}
