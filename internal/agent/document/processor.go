package document

import (
    "context"

    "github.com/feichai0017/document-reconstructor/internal/models"
)

// Recognizer OCR 引擎接口: 图片进, 带标签的文本块出
type Recognizer interface {
    // Recognize extracts labeled blocks from one page image. model selects the
    // engine specific model; empty means the engine default.
    Recognize(ctx context.Context, image []byte, mimeType, model string) ([]models.TextBlock, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, image []byte, mimeType, model string) ([]models.TextBlock, error)

func (f RecognizerFunc) Recognize(ctx context.Context, image []byte, mimeType, model string) ([]models.TextBlock, error) {
    return f(ctx, image, mimeType, model)
}

// LogoGenerator produces a single image from a fixed prompt.
type LogoGenerator interface {
    GenerateLogo(ctx context.Context) (*models.Logo, error)
}

// Unavailable returns a Recognizer that always fails with err. It stands in
// for engines whose configuration is incomplete.
func Unavailable(err error) Recognizer {
    return RecognizerFunc(func(context.Context, []byte, string, string) ([]models.TextBlock, error) {
        return nil, err
    })
}
