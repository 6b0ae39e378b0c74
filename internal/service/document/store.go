package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/feichai0017/document-reconstructor/internal/models"
	"github.com/feichai0017/document-reconstructor/internal/utils/dataurl"
	"github.com/feichai0017/document-reconstructor/internal/utils/validator"
	"github.com/feichai0017/document-reconstructor/pkg/logger"
	"github.com/feichai0017/document-reconstructor/pkg/markdown"
)

const (
	metadataFile = "metadata.json"
	// FilesPrefix is the URL path under which the data directory is served.
	FilesPrefix = "/files"
)

// Store persists documents, one directory per document id.
type Store interface {
	List(ctx context.Context) ([]*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Upsert writes page images, page markdown and then metadata. Embedded
	// images are replaced by their /files path in the stored record.
	Upsert(ctx context.Context, doc *models.Document) (*models.Document, error)
	// Update applies fn to the latest stored record and writes the result.
	// Calls for the same id are serialized.
	Update(ctx context.Context, id string, fn func(doc *models.Document) error) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	ReadPageImage(ctx context.Context, id string, page models.Page) ([]byte, string, error)
	WritePageMarkdown(ctx context.Context, id string, index int, blocks []models.TextBlock) error
	Dir(id string) string
}

// FileStore is the filesystem Store.
type FileStore struct {
	root   string
	logger logger.Logger
	now    func() time.Time
	locks  sync.Map // id -> *sync.Mutex
}

func NewFileStore(root string, log logger.Logger) *FileStore {
	return &FileStore{
		root:   root,
		logger: log,
		now:    time.Now,
	}
}

// Root is the data directory served under FilesPrefix.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) Dir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *FileStore) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// List returns every readable document. Directories whose metadata is missing
// or corrupt are skipped.
func (s *FileStore) List(ctx context.Context) ([]*models.Document, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*models.Document{}, nil
		}
		return nil, fmt.Errorf("failed to read data dir: %v: %w", err, models.ErrStorage)
	}

	docs := make([]*models.Document, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		doc, err := s.readMetadata(entry.Name())
		if err != nil {
			s.logger.Warn("Skipping unreadable document",
				logger.String("id", entry.Name()),
				logger.Error(err),
			)
			continue
		}
		docs = append(docs, doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*models.Document, error) {
	if err := validator.ValidateID(id); err != nil {
		return nil, err
	}
	return s.readMetadata(id)
}

func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := validator.ValidateID(id); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.Dir(id), metadataFile))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat metadata: %v: %w", err, models.ErrStorage)
	}
}

func (s *FileStore) Upsert(ctx context.Context, in *models.Document) (*models.Document, error) {
	if err := validator.ValidateID(in.ID); err != nil {
		return nil, err
	}
	unlock := s.lock(in.ID)
	defer unlock()

	doc := in.Clone()
	doc.StartProcessing = false

	dir := s.Dir(doc.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create document dir: %v: %w", err, models.ErrStorage)
	}

	now := s.now().UTC()
	existing, err := s.readMetadata(doc.ID)
	if err == nil && !existing.CreatedAt.IsZero() {
		doc.CreatedAt = existing.CreatedAt
	} else if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	// processedPages never moves backwards, even for a stale client copy.
	if err == nil && existing.ProcessedPages > doc.ProcessedPages {
		doc.ProcessedPages = existing.ProcessedPages
	}
	doc.AdvanceProcessed()
	doc.UpdatedAt = now

	for i := range doc.Pages {
		page := &doc.Pages[i]
		if dataurl.IsDataURL(page.ImageURL) {
			ref, err := s.writeEmbeddedImage(doc.ID, page.Index, page.ImageURL)
			if err != nil {
				return nil, err
			}
			page.ImageURL = ref
		}
		if page.Status == models.PageCompleted && len(page.Blocks) > 0 {
			if err := s.writePageMarkdown(doc.ID, page.Index, page.Blocks); err != nil {
				return nil, err
			}
		}
	}

	if err := s.writeMetadata(doc); err != nil {
		return nil, err
	}

	s.logger.Debug("Document saved",
		logger.String("id", doc.ID),
		logger.Int("pages", len(doc.Pages)),
	)
	return doc, nil
}

func (s *FileStore) Update(ctx context.Context, id string, fn func(doc *models.Document) error) (*models.Document, error) {
	if err := validator.ValidateID(id); err != nil {
		return nil, err
	}
	unlock := s.lock(id)
	defer unlock()

	doc, err := s.readMetadata(id)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	doc.ID = id
	doc.StartProcessing = false
	doc.UpdatedAt = s.now().UTC()
	if err := s.writeMetadata(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes the document directory. A missing id is not an error.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := validator.ValidateID(id); err != nil {
		return err
	}
	unlock := s.lock(id)
	defer unlock()

	if err := os.RemoveAll(s.Dir(id)); err != nil {
		return fmt.Errorf("failed to delete document: %v: %w", err, models.ErrStorage)
	}
	return nil
}

// ReadPageImage loads the image a page refers to.
func (s *FileStore) ReadPageImage(ctx context.Context, id string, page models.Page) ([]byte, string, error) {
	name, err := s.pageFileName(id, page.ImageURL)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(id), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("page %d image %s: %w", page.Index, name, models.ErrNotFound)
		}
		return nil, "", fmt.Errorf("failed to read page image: %v: %w", err, models.ErrStorage)
	}
	return data, dataurl.MIMEForPath(name), nil
}

func (s *FileStore) WritePageMarkdown(ctx context.Context, id string, index int, blocks []models.TextBlock) error {
	if err := validator.ValidateID(id); err != nil {
		return err
	}
	return s.writePageMarkdown(id, index, blocks)
}

// pageFileName resolves an image reference to a file name inside the document dir.
func (s *FileStore) pageFileName(id, ref string) (string, error) {
	if err := validator.ValidateID(id); err != nil {
		return "", err
	}
	if ref == "" || dataurl.IsDataURL(ref) {
		return "", fmt.Errorf("page has no stored image: %w", models.ErrNotFound)
	}
	name := strings.TrimPrefix(ref, FilesPrefix+"/"+id+"/")
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", fmt.Errorf("image reference %q is outside the document: %w", ref, models.ErrNotFound)
	}
	return name, nil
}

func (s *FileStore) writeEmbeddedImage(id string, index int, ref string) (string, error) {
	data, hint, err := dataurl.Decode(ref)
	if err != nil {
		return "", fmt.Errorf("%w: page %d image: %v", models.ErrInvalidDocument, index, err)
	}
	name := fmt.Sprintf("page_%d.%s", index, dataurl.ExtForMIME(dataurl.PickMIME("", hint, data)))
	if err := writeFileAtomic(filepath.Join(s.Dir(id), name), data); err != nil {
		return "", fmt.Errorf("failed to write page image: %v: %w", err, models.ErrStorage)
	}
	return path.Join(FilesPrefix, id, name), nil
}

func (s *FileStore) writePageMarkdown(id string, index int, blocks []models.TextBlock) error {
	name := fmt.Sprintf("page_%d.md", index)
	if err := writeFileAtomic(filepath.Join(s.Dir(id), name), []byte(markdown.ToMarkdown(blocks))); err != nil {
		return fmt.Errorf("failed to write page markdown: %v: %w", err, models.ErrStorage)
	}
	return nil
}

func (s *FileStore) readMetadata(id string) (*models.Document, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(id), metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read metadata: %v: %w", err, models.ErrStorage)
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt metadata for %s: %v: %w", id, err, models.ErrStorage)
	}
	if doc.Pages == nil {
		doc.Pages = []models.Page{}
	}
	return &doc, nil
}

func (s *FileStore) writeMetadata(doc *models.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %v: %w", err, models.ErrStorage)
	}
	if err := os.MkdirAll(s.Dir(doc.ID), 0755); err != nil {
		return fmt.Errorf("failed to create document dir: %v: %w", err, models.ErrStorage)
	}
	if err := writeFileAtomic(filepath.Join(s.Dir(doc.ID), metadataFile), data); err != nil {
		return fmt.Errorf("failed to write metadata: %v: %w", err, models.ErrStorage)
	}
	return nil
}

// writeFileAtomic replaces name as a whole: readers see the old or the new
// content, never a partial file.
func writeFileAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, name)
}
