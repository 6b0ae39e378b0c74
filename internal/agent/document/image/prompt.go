package image

import (
    "github.com/google/generative-ai-go/genai"

    "github.com/feichai0017/document-reconstructor/internal/models"
)

// ocrInstruction is sent as the system instruction of every page request.
const ocrInstruction = `You are a document layout OCR engine working on a single scanned page.

Rules:
1. Transcribe text literally. Do not translate, summarize, correct spelling or reorder words.
2. Keep the reading order of the page.
3. Split the page into blocks. Each block gets exactly one label:
   TITLE      headings and chapter or section titles
   MAIN_TEXT  body paragraphs and list items
   FOOTNOTE   notes at the bottom of the page, usually with a marker
   HEADER     running heads and text repeated at the top of pages
   FOOTER     page numbers and text repeated at the bottom of pages
   CAPTION    text describing a figure, table or image
   UNKNOWN    anything that fits none of the above
4. box_2d is [ymin, xmin, ymax, xmax] normalized to 0-1000.
5. Return only JSON of the form {"blocks": [{"text": "...", "label": "...", "box_2d": [0,0,0,0]}]}.`

const ocrUserPrompt = "Extract every text block of this page."

// blockListSchema constrains the response to {blocks: [{text, label, box_2d}]}.
func blockListSchema() *genai.Schema {
    return &genai.Schema{
        Type: genai.TypeObject,
        Properties: map[string]*genai.Schema{
            "blocks": {
                Type: genai.TypeArray,
                Items: &genai.Schema{
                    Type: genai.TypeObject,
                    Properties: map[string]*genai.Schema{
                        "text": {
                            Type:        genai.TypeString,
                            Description: "literal text of the block",
                        },
                        "label": {
                            Type:   genai.TypeString,
                            Format: "enum",
                            Enum:   models.LabelStrings(),
                        },
                        "box_2d": {
                            Type:        genai.TypeArray,
                            Description: "[ymin, xmin, ymax, xmax] normalized to 0-1000",
                            Items:       &genai.Schema{Type: genai.TypeNumber},
                        },
                    },
                    Required: []string{"text", "label", "box_2d"},
                },
            },
        },
        Required: []string{"blocks"},
    }
}
