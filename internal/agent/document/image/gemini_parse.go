package image

import (
    "encoding/json"
    "fmt"
    "strings"

    "github.com/feichai0017/document-reconstructor/internal/models"
)

// StripCodeFences removes a surrounding ```json fence some models add.
func StripCodeFences(s string) string {
    s = strings.TrimSpace(s)
    s = strings.TrimPrefix(s, "```json")
    s = strings.TrimPrefix(s, "```")
    s = strings.TrimSuffix(s, "```")
    return strings.TrimSpace(s)
}

// ParseBlocks decodes a {"blocks": [...]} payload. Block defaults (box and
// label) are applied by models.TextBlock.
func ParseBlocks(text string) ([]models.TextBlock, error) {
    text = StripCodeFences(text)
    if text == "" {
        return nil, fmt.Errorf("empty model response: %w", models.ErrMalformedResponse)
    }

    var envelope struct {
        Blocks *[]models.TextBlock `json:"blocks"`
    }
    if err := json.Unmarshal([]byte(text), &envelope); err != nil {
        return nil, fmt.Errorf("bad JSON from model: %v: %w", err, models.ErrMalformedResponse)
    }
    if envelope.Blocks == nil {
        return nil, fmt.Errorf("model response has no blocks field: %w", models.ErrMalformedResponse)
    }

    blocks := *envelope.Blocks
    if blocks == nil {
        blocks = []models.TextBlock{}
    }
    return blocks, nil
}
