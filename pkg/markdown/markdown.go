package markdown

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/feichai0017/document-reconstructor/internal/models"
)

const paragraphBreak = "\n\n"

// ToMarkdown renders blocks in order. Every block is followed by a blank line.
func ToMarkdown(blocks []models.TextBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		b.WriteString(styleBlock(block))
		b.WriteString(paragraphBreak)
	}
	return b.String()
}

func styleBlock(block models.TextBlock) string {
	switch block.Label {
	case models.LabelTitle:
		return "# " + block.Text
	case models.LabelHeader, models.LabelFooter:
		return "*" + block.Text + "*"
	case models.LabelCaption:
		return "_" + block.Text + "_"
	case models.LabelFootnote:
		return "^" + block.Text
	default:
		return block.Text
	}
}

// ReconstructCleanText joins, across pages in index order, the text of every
// block whose label is selected. The pages are not modified.
func ReconstructCleanText(pages []models.Page, selected []models.BlockLabel) string {
	include := make(map[models.BlockLabel]bool, len(selected))
	for _, l := range selected {
		include[l] = true
	}

	var parts []string
	for _, page := range sortedPages(pages) {
		for _, block := range page.Blocks {
			if include[block.Label] {
				parts = append(parts, block.Text)
			}
		}
	}
	return strings.Join(parts, paragraphBreak)
}

// DocumentMarkdown renders every completed page, separated by a page marker.
func DocumentMarkdown(doc *models.Document) string {
	var sections []string
	for _, page := range sortedPages(doc.Pages) {
		if page.Status != models.PageCompleted {
			continue
		}
		header := fmt.Sprintf("<!-- page:%d -->", page.Index+1)
		body := strings.TrimSpace(ToMarkdown(page.Blocks))
		if body == "" {
			sections = append(sections, header)
			continue
		}
		sections = append(sections, header+paragraphBreak+body)
	}
	return strings.Join(sections, "\n\n---\n\n")
}

// RenderHTML converts markdown to HTML with goldmark.
func RenderHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

func sortedPages(pages []models.Page) []models.Page {
	out := append([]models.Page(nil), pages...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
