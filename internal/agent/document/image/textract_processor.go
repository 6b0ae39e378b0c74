package image

import (
    "context"
    "fmt"
    "math"
    "strings"

    "github.com/aws/aws-sdk-go-v2/aws"
    "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/credentials"
    "github.com/aws/aws-sdk-go-v2/service/textract"
    "github.com/aws/aws-sdk-go-v2/service/textract/types"

    "github.com/feichai0017/document-reconstructor/internal/models"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

// textractAPI is the part of the Textract client we call.
type textractAPI interface {
    AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

// TextractProcessor recognizes pages with Textract layout analysis.
type TextractProcessor struct {
    client textractAPI
    logger logger.Logger
}

type TextractConfig struct {
    Region    string
    Endpoint  string
    AccessKey string
    SecretKey string
}

// layoutLabels maps Textract layout block types to block labels.
var layoutLabels = map[types.BlockType]models.BlockLabel{
    types.BlockTypeLayoutTitle:         models.LabelTitle,
    types.BlockTypeLayoutSectionHeader: models.LabelTitle,
    types.BlockTypeLayoutHeader:        models.LabelHeader,
    types.BlockTypeLayoutFooter:        models.LabelFooter,
    types.BlockTypeLayoutPageNumber:    models.LabelFooter,
    types.BlockTypeLayoutFigure:        models.LabelCaption,
    types.BlockTypeLayoutText:          models.LabelMainText,
    types.BlockTypeLayoutList:          models.LabelMainText,
    types.BlockTypeLayoutTable:         models.LabelMainText,
    types.BlockTypeLayoutKeyValue:      models.LabelMainText,
}

func NewTextractProcessor(ctx context.Context, cfg *TextractConfig, log logger.Logger) (*TextractProcessor, error) {
    if cfg.AccessKey == "" || cfg.SecretKey == "" {
        return nil, fmt.Errorf("textract credentials are empty: %w", models.ErrConfiguration)
    }

    creds := credentials.NewStaticCredentialsProvider(
        cfg.AccessKey,
        cfg.SecretKey,
        "",
    )

    // load aws config
    awsCfg, err := config.LoadDefaultConfig(ctx,
        config.WithRegion(cfg.Region),
        config.WithCredentialsProvider(creds),
    )
    if err != nil {
        return nil, fmt.Errorf("unable to load AWS config: %v: %w", err, models.ErrConfiguration)
    }

    client := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
        if cfg.Endpoint != "" {
            o.BaseEndpoint = aws.String(cfg.Endpoint)
        }
    })

    return newTextractProcessor(client, log), nil
}

func newTextractProcessor(client textractAPI, log logger.Logger) *TextractProcessor {
    return &TextractProcessor{
        client: client,
        logger: log,
    }
}

// Recognize runs AnalyzeDocument with the LAYOUT feature. model is ignored.
func (p *TextractProcessor) Recognize(ctx context.Context, image []byte, mimeType, model string) ([]models.TextBlock, error) {
    input := &textract.AnalyzeDocumentInput{
        Document: &types.Document{
            Bytes: image,
        },
        FeatureTypes: []types.FeatureType{types.FeatureTypeLayout},
    }

    result, err := p.client.AnalyzeDocument(ctx, input)
    if err != nil {
        p.logger.Warn("Textract request failed", logger.Error(err))
        return nil, fmt.Errorf("failed to analyze document: %v: %w", err, models.ErrUpstream)
    }

    return layoutBlocks(result.Blocks), nil
}

// layoutBlocks converts layout blocks, in response order, to text blocks.
// Layout blocks nested in another layout block (list items) are folded into
// their parent.
func layoutBlocks(blocks []types.Block) []models.TextBlock {
    byID := make(map[string]types.Block, len(blocks))
    nested := make(map[string]bool)
    for _, b := range blocks {
        if b.Id != nil {
            byID[*b.Id] = b
        }
    }
    for _, b := range blocks {
        if _, ok := layoutLabels[b.BlockType]; !ok {
            continue
        }
        for _, id := range childIDs(b) {
            if child, ok := byID[id]; ok {
                if _, isLayout := layoutLabels[child.BlockType]; isLayout {
                    nested[id] = true
                }
            }
        }
    }

    out := []models.TextBlock{}
    for _, b := range blocks {
        label, ok := layoutLabels[b.BlockType]
        if !ok || (b.Id != nil && nested[*b.Id]) {
            continue
        }
        text := strings.Join(lineTexts(b, byID, 0), " ")
        if text == "" {
            continue
        }
        out = append(out, models.TextBlock{
            Text:  text,
            Label: label,
            Box:   normalizeGeometry(b.Geometry),
        })
    }
    return out
}

func childIDs(b types.Block) []string {
    var ids []string
    for _, rel := range b.Relationships {
        if rel.Type == types.RelationshipTypeChild {
            ids = append(ids, rel.Ids...)
        }
    }
    return ids
}

// lineTexts collects LINE text under b, descending through nested layout blocks.
func lineTexts(b types.Block, byID map[string]types.Block, depth int) []string {
    if depth > 4 {
        return nil
    }
    var texts []string
    for _, id := range childIDs(b) {
        child, ok := byID[id]
        if !ok {
            continue
        }
        if child.BlockType == types.BlockTypeLine {
            if child.Text != nil && strings.TrimSpace(*child.Text) != "" {
                texts = append(texts, strings.TrimSpace(*child.Text))
            }
            continue
        }
        texts = append(texts, lineTexts(child, byID, depth+1)...)
    }
    return texts
}

// normalizeGeometry turns a 0..1 Left/Top/Width/Height box into
// [ymin, xmin, ymax, xmax] on the 0..1000 scale.
func normalizeGeometry(g *types.Geometry) models.BoundingBox {
    if g == nil || g.BoundingBox == nil {
        return models.BoundingBox{}
    }
    bb := g.BoundingBox
    scale := func(v float32) float64 {
        return math.Round(float64(v) * 1000)
    }
    return models.BoundingBox{
        scale(bb.Top),
        scale(bb.Left),
        scale(bb.Top + bb.Height),
        scale(bb.Left + bb.Width),
    }
}
