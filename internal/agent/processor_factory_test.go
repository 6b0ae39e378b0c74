package agent

import (
    "context"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    cfg "github.com/feichai0017/document-reconstructor/config"
    "github.com/feichai0017/document-reconstructor/internal/agent/document"
    "github.com/feichai0017/document-reconstructor/internal/models"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

func named(name string) document.Recognizer {
    return document.RecognizerFunc(func(_ context.Context, _ []byte, _, model string) ([]models.TextBlock, error) {
        return []models.TextBlock{{Text: name + ":" + model, Label: models.LabelMainText}}, nil
    })
}

func TestFactoryRoutesByModel(t *testing.T) {
    f := NewProcessorFactory(named("fallback"), logger.NewTestLogger())
    f.Register("Textract", named("textract"))

    blocks, err := f.Recognize(context.Background(), nil, "image/png", " TEXTRACT ")
    require.NoError(t, err)
    assert.Equal(t, "textract: TEXTRACT ", blocks[0].Text)

    blocks, err = f.Recognize(context.Background(), nil, "image/png", "gemini-2.5-pro")
    require.NoError(t, err)
    assert.Equal(t, "fallback:gemini-2.5-pro", blocks[0].Text)
}

func TestFactoryWithoutFallback(t *testing.T) {
    f := NewProcessorFactory(nil, logger.NewTestLogger())
    _, err := f.GetProcessor("anything")
    assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestDefaultFactoryUnconfiguredEngines(t *testing.T) {
    c := cfg.Default()
    log := logger.NewTestLogger()
    f, gemini := NewDefaultFactory(context.Background(), c, log)
    require.NotNil(t, gemini)
    assert.True(t, log.HasMessage("WARN", "GEMINI_API_KEY is not set; OCR and logo requests will fail until it is configured"))

    for _, model := range []string{"", "textract", "tesseract"} {
        _, err := f.Recognize(context.Background(), []byte("x"), "image/png", model)
        assert.ErrorIs(t, err, models.ErrConfiguration, model)
    }
}
