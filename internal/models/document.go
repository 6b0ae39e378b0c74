package models

import (
	"time"
)

// DocumentType 文档类型
type DocumentType string

const (
	TypeFile   DocumentType = "file"
	TypeFolder DocumentType = "folder"
)

// DocumentStatus is the aggregate processing status of a document.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

// IsTerminal reports whether a run has finished with this status.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusError
}

// PageStatus is the outcome of a single page.
type PageStatus string

const (
	PagePending   PageStatus = "pending"
	PageCompleted PageStatus = "completed"
	PageError     PageStatus = "error"
)

// Page 单页及其处理结果
type Page struct {
	Index    int         `json:"index"`
	ImageURL string      `json:"imageUrl"`
	Status   PageStatus  `json:"status"`
	Blocks   []TextBlock `json:"blocks,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Document is a multi-page unit of work. It is the record stored in metadata.json.
type Document struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           DocumentType   `json:"type"`
	Pages          []Page         `json:"pages"`
	Status         DocumentStatus `json:"status"`
	ProcessedPages int            `json:"processedPages"`
	ModelUsed      string         `json:"modelUsed"`
	SavedText      *string        `json:"savedText,omitempty"`

	// StartProcessing is a one-shot trigger sent by the client; it is never persisted.
	StartProcessing bool `json:"startProcessing,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy, so callers can mutate pages and blocks freely.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Pages = make([]Page, len(d.Pages))
	for i, p := range d.Pages {
		out.Pages[i] = p
		if p.Blocks != nil {
			out.Pages[i].Blocks = append([]TextBlock(nil), p.Blocks...)
		}
	}
	if d.SavedText != nil {
		text := *d.SavedText
		out.SavedText = &text
	}
	return &out
}

// CountByStatus counts pages in the given status.
func (d *Document) CountByStatus(status PageStatus) int {
	n := 0
	for _, p := range d.Pages {
		if p.Status == status {
			n++
		}
	}
	return n
}

// VisitedPages is the number of pages that have an outcome.
func (d *Document) VisitedPages() int {
	return len(d.Pages) - d.CountByStatus(PagePending)
}

// AdvanceProcessed moves ProcessedPages forward to the visited count. It never
// moves backwards and never exceeds the page count.
func (d *Document) AdvanceProcessed() {
	visited := d.VisitedPages()
	if visited > d.ProcessedPages {
		d.ProcessedPages = visited
	}
	if d.ProcessedPages > len(d.Pages) {
		d.ProcessedPages = len(d.Pages)
	}
}

// TerminalStatus computes the final status once every page has been visited:
// error only when all pages failed, ready otherwise. A document without pages
// has nothing to show and ends in error.
func (d *Document) TerminalStatus() DocumentStatus {
	if d.CountByStatus(PageError) == len(d.Pages) {
		return StatusError
	}
	return StatusReady
}
