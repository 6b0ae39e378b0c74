package document

import (
    "context"

    "github.com/feichai0017/document-reconstructor/internal/models"
)

// DocumentProcessor is what the HTTP layer needs from the service.
type DocumentProcessor interface {
    ListDocuments(ctx context.Context) ([]*models.Document, error)
    GetDocument(ctx context.Context, id string) (*models.Document, error)
    // UpsertDocument stores doc and, when doc.StartProcessing is set, starts a
    // background run. A failed start is logged and does not fail the save.
    UpsertDocument(ctx context.Context, doc *models.Document) (*models.Document, error)
    DeleteDocument(ctx context.Context, id string) error
    // ProcessDocument starts a run for an existing document. Completed pages
    // are kept, pending and failed pages are processed again.
    ProcessDocument(ctx context.Context, id string) error

    CleanText(ctx context.Context, id string, labels []models.BlockLabel) (string, error)
    SaveText(ctx context.Context, id string, text string) (*models.Document, error)
    Export(ctx context.Context, id string, format ExportFormat, labels []models.BlockLabel) (*Export, error)
    PageThumbnail(ctx context.Context, id string, index int, width int) ([]byte, error)

    RecognizePage(ctx context.Context, image []byte, mimeType, model string) ([]models.TextBlock, error)
    GenerateLogo(ctx context.Context) (*models.Logo, error)
}

// Dispatcher starts a background run for a document and returns without
// waiting for it.
type Dispatcher interface {
    Dispatch(ctx context.Context, id string) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, id string) error

func (f DispatcherFunc) Dispatch(ctx context.Context, id string) error {
    return f(ctx, id)
}

// ExportFormat selects the export rendering.
type ExportFormat string

const (
    FormatMarkdown ExportFormat = "md"
    FormatText     ExportFormat = "txt"
    FormatHTML     ExportFormat = "html"
)

// Export is a rendered document ready to download.
type Export struct {
    FileName    string
    ContentType string
    Body        []byte
}
