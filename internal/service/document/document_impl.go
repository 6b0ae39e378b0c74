package document

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	ocr "github.com/feichai0017/document-reconstructor/internal/agent/document"
	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/internal/utils/dataurl"
	"github.com/feichai0017/document-reconstructor/internal/utils/validator"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
	"github.com/feichai0017/document-reconstructor/pkg/markdown"
)

const (
	defaultThumbnailWidth = 320
	maxThumbnailWidth     = 2000
)

// DefaultTextLabels is used for clean text when the caller selects nothing.
var DefaultTextLabels = []models.BlockLabel{models.LabelTitle, models.LabelMainText}

type DocumentService struct {
	store      Store
	recognizer ocr.Recognizer
	logos      ocr.LogoGenerator
	dispatcher Dispatcher
	validator  *validator.DocumentValidator
	logger     logger.Logger
}

func NewService(
	store Store,
	recognizer ocr.Recognizer,
	logos ocr.LogoGenerator,
	dispatcher Dispatcher,
	v *validator.DocumentValidator,
	log logger.Logger,
) DocumentProcessor {
	if v == nil {
		v = validator.NewDocumentValidator(log, nil)
	}
	return &DocumentService{
		store:      store,
		recognizer: recognizer,
		logos:      logos,
		dispatcher: dispatcher,
		validator:  v,
		logger:     log,
	}
}

func (s *DocumentService) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	return s.store.List(ctx)
}

func (s *DocumentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.store.Get(ctx, id)
}

// UpsertDocument 保存文档, 需要时触发后台处理
func (s *DocumentService) UpsertDocument(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: empty body", models.ErrInvalidDocument)
	}
	doc = doc.Clone()
	applyDefaults(doc)

	if err := s.validator.ValidateDocument(doc).Err(); err != nil {
		return nil, err
	}

	trigger := doc.StartProcessing
	saved, err := s.store.Upsert(ctx, doc)
	if err != nil {
		s.logger.Error("Failed to save document",
			logger.String("id", doc.ID),
			logger.Error(err),
		)
		return nil, err
	}

	if trigger {
		s.dispatch(ctx, saved.ID)
	}
	return saved, nil
}

// canceler is implemented by dispatchers that can drop a queued run.
type canceler interface {
	Cancel(ctx context.Context, id string) error
}

func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if c, ok := s.dispatcher.(canceler); ok {
		if err := c.Cancel(ctx, id); err != nil {
			s.logger.Warn("Failed to cancel queued run",
				logger.String("id", id),
				logger.Error(err),
			)
		}
	}
	s.logger.Info("Document deleted", logger.String("id", id))
	return nil
}

func (s *DocumentService) ProcessDocument(ctx context.Context, id string) error {
	exists, err := s.store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if s.dispatcher == nil {
		return fmt.Errorf("no dispatcher configured: %w", models.ErrConfiguration)
	}
	if err := s.dispatcher.Dispatch(ctx, id); err != nil {
		return fmt.Errorf("failed to start processing: %w", err)
	}
	s.logger.Info("Processing requested", logger.String("id", id))
	return nil
}

// dispatch is fire-and-forget: failures are logged only.
func (s *DocumentService) dispatch(ctx context.Context, id string) {
	if s.dispatcher == nil {
		s.logger.Warn("Processing requested but no dispatcher is configured", logger.String("id", id))
		return
	}
	if err := s.dispatcher.Dispatch(ctx, id); err != nil {
		s.logger.Error("Failed to start processing",
			logger.String("id", id),
			logger.Error(err),
		)
		return
	}
	s.logger.Info("Processing triggered", logger.String("id", id))
}

func (s *DocumentService) CleanText(ctx context.Context, id string, labels []models.BlockLabel) (string, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if len(labels) == 0 {
		labels = DefaultTextLabels
	}
	return markdown.ReconstructCleanText(doc.Pages, labels), nil
}

func (s *DocumentService) SaveText(ctx context.Context, id string, text string) (*models.Document, error) {
	return s.store.Update(ctx, id, func(doc *models.Document) error {
		doc.SavedText = &text
		return nil
	})
}

func (s *DocumentService) Export(ctx context.Context, id string, format ExportFormat, labels []models.BlockLabel) (*Export, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	base := exportBaseName(doc)
	switch format {
	case FormatMarkdown, "":
		return &Export{
			FileName:    base + ".md",
			ContentType: "text/markdown; charset=utf-8",
			Body:        []byte(markdown.DocumentMarkdown(doc)),
		}, nil
	case FormatText:
		var text string
		if doc.SavedText != nil && len(labels) == 0 {
			text = *doc.SavedText
		} else {
			if len(labels) == 0 {
				labels = DefaultTextLabels
			}
			text = markdown.ReconstructCleanText(doc.Pages, labels)
		}
		return &Export{
			FileName:    base + ".txt",
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(text),
		}, nil
	case FormatHTML:
		body, err := markdown.RenderHTML(markdown.DocumentMarkdown(doc))
		if err != nil {
			return nil, err
		}
		page := fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
			html.EscapeString(doc.Name), body)
		return &Export{
			FileName:    base + ".html",
			ContentType: "text/html; charset=utf-8",
			Body:        []byte(page),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", models.ErrInvalidDocument, format)
	}
}

// PageThumbnail returns a JPEG of the page scaled to width, keeping the aspect ratio.
func (s *DocumentService) PageThumbnail(ctx context.Context, id string, index int, width int) ([]byte, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var page *models.Page
	for i := range doc.Pages {
		if doc.Pages[i].Index == index {
			page = &doc.Pages[i]
			break
		}
	}
	if page == nil {
		return nil, fmt.Errorf("document %s has no page %d: %w", id, index, models.ErrNotFound)
	}

	data, _, err := s.store.ReadPageImage(ctx, id, *page)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode page image: %w", err)
	}

	if width <= 0 {
		width = defaultThumbnailWidth
	}
	if width > maxThumbnailWidth {
		width = maxThumbnailWidth
	}
	if width < img.Bounds().Dx() {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *DocumentService) RecognizePage(ctx context.Context, image []byte, mimeType, model string) ([]models.TextBlock, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is empty", models.ErrInvalidDocument)
	}
	mimeType = dataurl.PickMIME(mimeType, "", image)
	blocks, err := s.recognizer.Recognize(ctx, image, mimeType, model)
	if err != nil {
		s.logger.Error("Page recognition failed",
			logger.String("model", model),
			logger.Error(err),
		)
		return nil, err
	}
	return blocks, nil
}

func (s *DocumentService) GenerateLogo(ctx context.Context) (*models.Logo, error) {
	if s.logos == nil {
		return nil, fmt.Errorf("logo generation is not configured: %w", models.ErrConfiguration)
	}
	return s.logos.GenerateLogo(ctx)
}

// applyDefaults fills what clients may omit.
func applyDefaults(doc *models.Document) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Type == "" {
		doc.Type = models.TypeFile
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	if doc.Pages == nil {
		doc.Pages = []models.Page{}
	}
	for i := range doc.Pages {
		if doc.Pages[i].Status == "" {
			doc.Pages[i].Status = models.PagePending
		}
	}
}

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}._ -]+`)

func exportBaseName(doc *models.Document) string {
	name := strings.TrimSpace(unsafeFileChars.ReplaceAllString(doc.Name, "_"))
	if ext := strings.LastIndexByte(name, '.'); ext > 0 {
		name = name[:ext]
	}
	if name == "" {
		name = doc.ID
	}
	return name
}
