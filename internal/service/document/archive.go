package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
	"github.com/feichai0017/document-reconstructor/pkg/markdown"
	"github.com/feichai0017/document-reconstructor/pkg/storage"
)

// ObjectArchiver writes terminal snapshots to object storage as
// <prefix>/<id>/metadata.json and <prefix>/<id>/document.md.
type ObjectArchiver struct {
	storage   storage.Storage
	prefix    string
	retention time.Duration
	logger    logger.Logger
}

func NewObjectArchiver(s storage.Storage, prefix string, retention time.Duration, log logger.Logger) *ObjectArchiver {
	return &ObjectArchiver{
		storage:   s,
		prefix:    prefix,
		retention: retention,
		logger:    log,
	}
}

func (a *ObjectArchiver) Archive(ctx context.Context, doc *models.Document) error {
	meta, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if _, err := a.storage.Store(ctx, bytes.NewReader(meta), a.key(doc.ID, "metadata.json")); err != nil {
		return fmt.Errorf("failed to archive metadata: %w", err)
	}

	md := markdown.DocumentMarkdown(doc)
	if _, err := a.storage.Store(ctx, bytes.NewReader([]byte(md)), a.key(doc.ID, "document.md")); err != nil {
		return fmt.Errorf("failed to archive markdown: %w", err)
	}

	a.logger.Info("Document archived",
		logger.String("id", doc.ID),
		logger.String("status", string(doc.Status)),
	)
	return nil
}

// Cleanup removes archived objects older than the retention period.
func (a *ObjectArchiver) Cleanup(ctx context.Context) error {
	if a.retention <= 0 {
		return nil
	}
	prefix := ""
	if a.prefix != "" {
		prefix = strings.TrimSuffix(a.prefix, "/") + "/"
	}
	return a.storage.CleanupBefore(ctx, prefix, time.Now().Add(-a.retention))
}

// RunCleanup calls Cleanup every interval until ctx ends.
func (a *ObjectArchiver) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Cleanup(ctx); err != nil {
				a.logger.Warn("Archive cleanup failed", logger.Error(err))
			}
		}
	}
}

func (a *ObjectArchiver) key(id, name string) string {
	return path.Join(a.prefix, id, name)
}
