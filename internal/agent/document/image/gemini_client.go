package image

import (
    "context"
    "fmt"
    "strings"
    "sync"

    "github.com/google/generative-ai-go/genai"
    "google.golang.org/api/option"

    "github.com/feichai0017/document-reconstructor/internal/models"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

// GeminiConfig holds the Gemini settings used by page OCR and logo generation.
type GeminiConfig struct {
    APIKey       string
    DefaultModel string
    LogoModel    string
    LogoPrompt   string
}

// GeminiClient implements page OCR and logo generation on the Gemini API.
// The underlying genai client is created on first use and shared.
type GeminiClient struct {
    config *GeminiConfig
    logger logger.Logger

    mu     sync.Mutex
    client *genai.Client
}

func NewGeminiClient(config *GeminiConfig, log logger.Logger) *GeminiClient {
    return &GeminiClient{
        config: config,
        logger: log,
    }
}

// Configured reports whether an API key is present.
func (c *GeminiClient) Configured() bool {
    return strings.TrimSpace(c.config.APIKey) != ""
}

func (c *GeminiClient) genaiClient() (*genai.Client, error) {
    if !c.Configured() {
        return nil, fmt.Errorf("GEMINI_API_KEY is empty: %w", models.ErrConfiguration)
    }

    c.mu.Lock()
    defer c.mu.Unlock()
    if c.client != nil {
        return c.client, nil
    }

    // 客户端跨请求复用, 不绑定单个请求的 ctx
    cl, err := genai.NewClient(context.Background(), option.WithAPIKey(strings.TrimSpace(c.config.APIKey)))
    if err != nil {
        return nil, fmt.Errorf("failed to create gemini client: %v: %w", err, models.ErrUpstream)
    }
    c.client = cl
    return cl, nil
}

// Recognize sends one page image to the model and returns its blocks.
// No retries happen here; the caller decides what a failure means.
func (c *GeminiClient) Recognize(ctx context.Context, image []byte, mimeType, model string) ([]models.TextBlock, error) {
    cl, err := c.genaiClient()
    if err != nil {
        return nil, err
    }

    name := strings.TrimSpace(model)
    if name == "" {
        name = c.config.DefaultModel
    }

    m := cl.GenerativeModel(name)
    m.GenerationConfig = genai.GenerationConfig{
        Temperature:      ptrFloat32(0),
        ResponseMIMEType: "application/json",
        ResponseSchema:   blockListSchema(),
    }
    m.SystemInstruction = &genai.Content{
        Parts: []genai.Part{genai.Text(ocrInstruction)},
    }

    parts := []genai.Part{
        genai.Text(ocrUserPrompt),
        &genai.Blob{MIMEType: mimeType, Data: image},
    }

    resp, err := m.GenerateContent(ctx, parts...)
    if err != nil {
        c.logger.Warn("Gemini request failed",
            logger.String("model", name),
            logger.Error(err),
        )
        return nil, fmt.Errorf("gemini generate content: %v: %w", err, models.ErrUpstream)
    }
    if resp == nil || len(resp.Candidates) == 0 {
        return nil, fmt.Errorf("gemini returned no candidates: %w", models.ErrUpstream)
    }

    blocks, err := ParseBlocks(firstText(resp))
    if err != nil {
        return nil, err
    }

    c.logger.Debug("Page recognized",
        logger.String("model", name),
        logger.Int("blocks", len(blocks)),
    )
    return blocks, nil
}

// GenerateLogo asks the image model for a logo and returns the first inline image.
func (c *GeminiClient) GenerateLogo(ctx context.Context) (*models.Logo, error) {
    cl, err := c.genaiClient()
    if err != nil {
        return nil, err
    }

    m := cl.GenerativeModel(c.config.LogoModel)
    resp, err := m.GenerateContent(ctx, genai.Text(c.config.LogoPrompt))
    if err != nil {
        return nil, fmt.Errorf("gemini generate logo: %v: %w", err, models.ErrUpstream)
    }
    if resp == nil || len(resp.Candidates) == 0 {
        return nil, fmt.Errorf("gemini returned no candidates: %w", models.ErrUpstream)
    }

    logo := firstImage(resp)
    if logo == nil {
        return nil, fmt.Errorf("no image data in logo response: %w", models.ErrMalformedResponse)
    }
    return logo, nil
}

// Close releases the shared genai client.
func (c *GeminiClient) Close() error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.client == nil {
        return nil
    }
    err := c.client.Close()
    c.client = nil
    return err
}

func firstText(resp *genai.GenerateContentResponse) string {
    if resp == nil || len(resp.Candidates) == 0 {
        return ""
    }
    for _, cand := range resp.Candidates {
        if cand.Content == nil {
            continue
        }
        for _, p := range cand.Content.Parts {
            if t, ok := p.(genai.Text); ok {
                return string(t)
            }
        }
    }
    return ""
}

func firstImage(resp *genai.GenerateContentResponse) *models.Logo {
    for _, cand := range resp.Candidates {
        if cand.Content == nil {
            continue
        }
        for _, p := range cand.Content.Parts {
            switch b := p.(type) {
            case genai.Blob:
                if len(b.Data) > 0 {
                    return &models.Logo{MIMEType: b.MIMEType, Data: b.Data}
                }
            case *genai.Blob:
                if b != nil && len(b.Data) > 0 {
                    return &models.Logo{MIMEType: b.MIMEType, Data: b.Data}
                }
            }
        }
    }
    return nil
}

func ptrFloat32(v float32) *float32 { return &v }
