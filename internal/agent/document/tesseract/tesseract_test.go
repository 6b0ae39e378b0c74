package tesseract

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/document-reconstructor/internal/models"
)

func TestNormalizeBox(t *testing.T) {
	got := normalizeBox(image.Rect(50, 100, 150, 300), 200, 400)
	assert.Equal(t, models.BoundingBox{250, 250, 750, 750}, got)
	assert.Equal(t, models.BoundingBox{}, normalizeBox(image.Rect(0, 0, 1, 1), 0, 10))
}
