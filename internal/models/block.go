package models

import (
	"encoding/json"
	"strings"
)

// BlockLabel classifies a span of extracted text.
type BlockLabel string

const (
	LabelTitle    BlockLabel = "TITLE"
	LabelMainText BlockLabel = "MAIN_TEXT"
	LabelFootnote BlockLabel = "FOOTNOTE"
	LabelHeader   BlockLabel = "HEADER"
	LabelFooter   BlockLabel = "FOOTER"
	LabelCaption  BlockLabel = "CAPTION"
	LabelUnknown  BlockLabel = "UNKNOWN"
)

var allLabels = []BlockLabel{
	LabelTitle,
	LabelMainText,
	LabelFootnote,
	LabelHeader,
	LabelFooter,
	LabelCaption,
	LabelUnknown,
}

// AllLabels returns the closed label set in declaration order.
func AllLabels() []BlockLabel {
	return append([]BlockLabel(nil), allLabels...)
}

// LabelStrings is AllLabels as plain strings, for schemas and enums.
func LabelStrings() []string {
	out := make([]string, len(allLabels))
	for i, l := range allLabels {
		out[i] = string(l)
	}
	return out
}

// Valid reports whether l is one of the known labels.
func (l BlockLabel) Valid() bool {
	for _, known := range allLabels {
		if l == known {
			return true
		}
	}
	return false
}

// ParseBlockLabel normalizes case and whitespace; anything outside the set is UNKNOWN.
func ParseBlockLabel(s string) BlockLabel {
	l := BlockLabel(strings.ToUpper(strings.TrimSpace(s)))
	if l.Valid() {
		return l
	}
	return LabelUnknown
}

// ParseLabelSet parses a comma separated list such as "TITLE,MAIN_TEXT".
// Empty entries are ignored, unknown names map to UNKNOWN.
func ParseLabelSet(s string) []BlockLabel {
	var out []BlockLabel
	seen := make(map[BlockLabel]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		l := ParseBlockLabel(part)
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// BoundingBox is [ymin, xmin, ymax, xmax] normalized to 0..1000.
type BoundingBox [4]float64

// TextBlock is a labeled span of text with its position on the page.
type TextBlock struct {
	Text  string      `json:"text"`
	Label BlockLabel  `json:"label"`
	Box   BoundingBox `json:"box_2d"`
}

// rawBlock is the wire shape before defaults are applied.
type rawBlock struct {
	Text  string    `json:"text"`
	Label string    `json:"label"`
	Box   []float64 `json:"box_2d"`
}

// UnmarshalJSON applies the block defaults at the decoding boundary: a missing
// or malformed box becomes [0,0,0,0] and unknown labels become UNKNOWN.
func (b *TextBlock) UnmarshalJSON(data []byte) error {
	var raw rawBlock
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Text = raw.Text
	b.Label = ParseBlockLabel(raw.Label)
	b.Box = BoundingBox{}
	if len(raw.Box) == 4 {
		copy(b.Box[:], raw.Box)
	}
	return nil
}

// BlockList is the {blocks: [...]} envelope exchanged with the OCR model and
// returned by the synchronous page endpoint.
type BlockList struct {
	Blocks []TextBlock `json:"blocks"`
}

// Logo is a generated image returned inline.
type Logo struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}
