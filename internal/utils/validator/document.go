// internal/utils/validator/document.go
package validator

import (
    "fmt"
    "strings"

    "github.com/feichai0017/document-reconstructor/internal/models"
    "github.com/feichai0017/document-reconstructor/internal/utils/dataurl"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

// DocumentValidator 文档验证器
type DocumentValidator struct {
    logger logger.Logger
    config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
    MaxPageBytes int    // 单页图片最大字节数
    MaxPages     int    // 最大页数
    FilesPrefix  string // 页面图片的公开路径前缀, 例如 /files
}

// ValidationResult 验证结果
type ValidationResult struct {
    IsValid bool              `json:"isValid"`
    Errors  []ValidationError `json:"errors,omitempty"`
}

// ValidationError 验证错误
type ValidationError struct {
    Code    string `json:"code"`
    Message string `json:"message"`
    Field   string `json:"field,omitempty"`
}

func (r *ValidationResult) add(code, field, format string, args ...interface{}) {
    r.IsValid = false
    r.Errors = append(r.Errors, ValidationError{
        Code:    code,
        Message: fmt.Sprintf(format, args...),
        Field:   field,
    })
}

// Err returns nil for a valid result, otherwise an error wrapping
// models.ErrInvalidDocument that lists every problem.
func (r *ValidationResult) Err() error {
    if r.IsValid {
        return nil
    }
    msgs := make([]string, len(r.Errors))
    for i, e := range r.Errors {
        msgs[i] = e.Message
    }
    return fmt.Errorf("%w: %s", models.ErrInvalidDocument, strings.Join(msgs, "; "))
}

// NewDocumentValidator 创建新的文档验证器
func NewDocumentValidator(logger logger.Logger, config *ValidatorConfig) *DocumentValidator {
    if config == nil {
        config = &ValidatorConfig{
            MaxPageBytes: 20 << 20, // 20MB
            MaxPages:     500,
            FilesPrefix:  "/files",
        }
    }
    return &DocumentValidator{
        logger: logger,
        config: config,
    }
}

// ValidateID checks that id can be used as a single directory name.
func ValidateID(id string) error {
    switch {
    case strings.TrimSpace(id) == "":
        return fmt.Errorf("%w: id is empty", models.ErrInvalidDocument)
    case id == "." || id == "..":
        return fmt.Errorf("%w: id %q is reserved", models.ErrInvalidDocument, id)
    case strings.ContainsAny(id, "/\\\x00"):
        return fmt.Errorf("%w: id %q contains a path separator", models.ErrInvalidDocument, id)
    case len(id) > 128:
        return fmt.Errorf("%w: id is longer than 128 characters", models.ErrInvalidDocument)
    }
    return nil
}

// ValidateDocument checks a submitted document after defaults were applied.
func (v *DocumentValidator) ValidateDocument(doc *models.Document) *ValidationResult {
    result := &ValidationResult{IsValid: true}

    if err := ValidateID(doc.ID); err != nil {
        result.add("INVALID_ID", "id", "%s", strings.TrimPrefix(err.Error(), models.ErrInvalidDocument.Error()+": "))
    }

    switch doc.Type {
    case models.TypeFile, models.TypeFolder:
    default:
        result.add("INVALID_TYPE", "type", "type %q is not file or folder", doc.Type)
    }

    switch doc.Status {
    case models.StatusPending, models.StatusProcessing, models.StatusReady, models.StatusError:
    default:
        result.add("INVALID_STATUS", "status", "status %q is unknown", doc.Status)
    }

    if v.config.MaxPages > 0 && len(doc.Pages) > v.config.MaxPages {
        result.add("TOO_MANY_PAGES", "pages", "document has %d pages, limit is %d", len(doc.Pages), v.config.MaxPages)
    }
    if doc.ProcessedPages < 0 || doc.ProcessedPages > len(doc.Pages) {
        result.add("INVALID_PROGRESS", "processedPages", "processedPages %d is outside 0..%d", doc.ProcessedPages, len(doc.Pages))
    }

    seen := make(map[int]bool, len(doc.Pages))
    for i, page := range doc.Pages {
        field := fmt.Sprintf("pages[%d]", i)
        if page.Index < 0 || page.Index >= len(doc.Pages) || seen[page.Index] {
            result.add("INVALID_PAGE_INDEX", field+".index", "page index %d is out of range or repeated", page.Index)
        }
        seen[page.Index] = true

        switch page.Status {
        case models.PagePending, models.PageCompleted, models.PageError:
        default:
            result.add("INVALID_PAGE_STATUS", field+".status", "page status %q is unknown", page.Status)
        }

        v.validateImageRef(result, doc.ID, field, page.ImageURL)
    }

    if !result.IsValid {
        v.logger.Debug("Document validation failed",
            logger.String("id", doc.ID),
            logger.Int("errors", len(result.Errors)),
        )
    }
    return result
}

func (v *DocumentValidator) validateImageRef(result *ValidationResult, id, field, ref string) {
    field += ".imageUrl"
    if ref == "" {
        result.add("MISSING_IMAGE", field, "%s is empty", field)
        return
    }

    if dataurl.IsDataURL(ref) {
        header, payload, _ := strings.Cut(ref, ",")
        mimeType := strings.TrimPrefix(strings.SplitN(header, ";", 2)[0], "data:")
        if !dataurl.IsImageMIME(mimeType) {
            result.add("INVALID_MIME_TYPE", field, "%s has unsupported type %q", field, mimeType)
        }
        // base64 encodes 3 bytes in 4 characters
        if v.config.MaxPageBytes > 0 && len(payload)/4*3 > v.config.MaxPageBytes {
            result.add("IMAGE_TOO_LARGE", field, "%s exceeds %d bytes", field, v.config.MaxPageBytes)
        }
        return
    }

    prefix := strings.TrimSuffix(v.config.FilesPrefix, "/") + "/" + id + "/"
    name := strings.TrimPrefix(ref, prefix)
    if name == ref || name == "" || strings.ContainsAny(name, "/\\") || name == ".." {
        result.add("INVALID_IMAGE_REF", field, "%s must be a data URL or a path under %s", field, prefix)
    }
}
