package document

import (
	"context"
	"fmt"

	cfg "github.com/feichai0017/document-reconstructor/config"
	"github.com/feichai0017/document-reconstructor/internal/utils/validator"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
	"github.com/feichai0017/document-reconstructor/pkg/storage"
)

// EngineConfigFrom builds the engine settings of the processing section.
func EngineConfigFrom(p cfg.ProcessingConfig) *EngineConfig {
	ec := DefaultEngineConfig()
	if p.StartDelay >= 0 {
		ec.StartDelay = p.StartDelay
	}
	if p.MetadataAttempts > 0 {
		ec.MetadataRetry.MaxAttempts = p.MetadataAttempts
	}
	if p.MetadataBackoff > 0 {
		ec.MetadataRetry.Backoff = ConstantBackoff(p.MetadataBackoff)
	}
	return ec
}

// ValidatorFrom builds the upload validator of the storage section.
func ValidatorFrom(s cfg.StorageConfig, log logger.Logger) *validator.DocumentValidator {
	return validator.NewDocumentValidator(log, &validator.ValidatorConfig{
		MaxPageBytes: s.MaxPageBytes,
		MaxPages:     s.MaxPages,
		FilesPrefix:  FilesPrefix,
	})
}

// NewArchiverFromConfig returns nil when archiving is disabled.
func NewArchiverFromConfig(ctx context.Context, c *cfg.Config, log logger.Logger) (*ObjectArchiver, error) {
	if c.Archive.Backend == "" {
		return nil, nil
	}
	s, err := storage.NewStorage(ctx, storage.StorageType(c.Archive.Backend), c, log.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to init archive storage: %w", err)
	}
	return NewObjectArchiver(s, c.Archive.Prefix, c.Archive.Retention, log.Named("archive")), nil
}
