package agent

import (
    "context"
    "fmt"
    "strings"
    "sync"

    cfg "github.com/feichai0017/document-reconstructor/config"
    "github.com/feichai0017/document-reconstructor/internal/agent/document"
    "github.com/feichai0017/document-reconstructor/internal/agent/document/image"
    "github.com/feichai0017/document-reconstructor/internal/models"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

// Engine names selectable through a document's modelUsed.
const (
    EngineTextract  = "textract"
    EngineTesseract = "tesseract"
)

// ProcessorFactory routes a model name to an OCR engine. Names without a
// dedicated engine go to the fallback (Gemini) with the name as its model.
type ProcessorFactory struct {
    mu         sync.RWMutex
    processors map[string]document.Recognizer
    fallback   document.Recognizer
    logger     logger.Logger
}

func NewProcessorFactory(fallback document.Recognizer, log logger.Logger) *ProcessorFactory {
    return &ProcessorFactory{
        processors: make(map[string]document.Recognizer),
        fallback:   fallback,
        logger:     log,
    }
}

// NewDefaultFactory wires the configured engines. It also returns the Gemini
// client, which serves as fallback engine and logo generator.
func NewDefaultFactory(ctx context.Context, c *cfg.Config, log logger.Logger) (*ProcessorFactory, *image.GeminiClient) {
    gemini := image.NewGeminiClient(&image.GeminiConfig{
        APIKey:       c.Gemini.APIKey,
        DefaultModel: c.Gemini.DefaultModel,
        LogoModel:    c.Gemini.LogoModel,
        LogoPrompt:   c.Gemini.LogoPrompt,
    }, log.Named("gemini"))
    if !gemini.Configured() {
        log.Warn("GEMINI_API_KEY is not set; OCR and logo requests will fail until it is configured")
    }

    factory := NewProcessorFactory(gemini, log)

    // 初始化 Textract 处理器
    textractProcessor, err := image.NewTextractProcessor(ctx, &image.TextractConfig{
        Region:    c.Textract.Region,
        Endpoint:  c.Textract.Endpoint,
        AccessKey: c.Textract.AccessKey,
        SecretKey: c.Textract.SecretKey,
    }, log.Named("textract"))
    if err != nil {
        log.Info("Textract engine unavailable", logger.Error(err))
        factory.Register(EngineTextract, document.Unavailable(err))
    } else {
        factory.Register(EngineTextract, textractProcessor)
    }

    // cgo engine; the binaries register the real one when tesseract.enabled is set
    factory.Register(EngineTesseract, document.Unavailable(
        fmt.Errorf("tesseract engine is disabled: %w", models.ErrConfiguration)))

    return factory, gemini
}

// Register binds an engine name. Names are case insensitive.
func (f *ProcessorFactory) Register(name string, r document.Recognizer) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.processors[strings.ToLower(strings.TrimSpace(name))] = r
}

// GetProcessor returns the engine registered under model, or the fallback.
func (f *ProcessorFactory) GetProcessor(model string) (document.Recognizer, error) {
    f.mu.RLock()
    processor, ok := f.processors[strings.ToLower(strings.TrimSpace(model))]
    f.mu.RUnlock()
    if ok {
        return processor, nil
    }
    if f.fallback == nil {
        return nil, fmt.Errorf("no processor found for model %q: %w", model, models.ErrConfiguration)
    }
    return f.fallback, nil
}

// Recognize makes the factory itself a Recognizer.
func (f *ProcessorFactory) Recognize(ctx context.Context, img []byte, mimeType, model string) ([]models.TextBlock, error) {
    processor, err := f.GetProcessor(model)
    if err != nil {
        return nil, err
    }
    f.logger.Debug("Recognizing page",
        logger.String("model", model),
        logger.String("mimeType", mimeType),
    )
    return processor.Recognize(ctx, img, mimeType, model)
}
