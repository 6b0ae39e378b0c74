package dataurl

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// extToMIME 扩展名到 MIME 类型的映射
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".bmp":  "image/bmp",
	".md":   "text/markdown; charset=utf-8",
}

var mimeToExt = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/tiff": "tiff",
	"image/bmp":  "bmp",
}

// IsDataURL reports whether s is an inline data: URI.
func IsDataURL(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// Decode accepts either a data:<mime>;base64,<payload> URI or bare base64 and
// returns the bytes plus the MIME type found in the URI header, if any.
func Decode(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return nil, "", fmt.Errorf("data url has no payload")
		}
		meta := s[len("data:"):idx] // "<mime>;base64"
		if semi := strings.IndexByte(meta, ';'); semi >= 0 {
			hintMIME = meta[:semi]
		} else {
			hintMIME = meta
		}
		s = s[idx+1:]
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	}
	// URL-safe and unpadded variants also show up from browsers
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64: %w", err)
	}
	return b, hintMIME, nil
}

// PickMIME prefers the explicit type, then the data URI hint, then sniffs the bytes.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "image/jpeg"
}

// ExtForMIME returns a file extension without the dot. Unknown types get "bin".
func ExtForMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if semi := strings.IndexByte(mimeType, ';'); semi >= 0 {
		mimeType = strings.TrimSpace(mimeType[:semi])
	}
	if ext, ok := mimeToExt[mimeType]; ok {
		return ext
	}
	return "bin"
}

// MIMEForPath maps a file name to its content type, defaulting to octet-stream.
func MIMEForPath(name string) string {
	if m, ok := extToMIME[strings.ToLower(filepath.Ext(name))]; ok {
		return m
	}
	return "application/octet-stream"
}

// IsImageMIME reports whether the type is one of the supported page image types.
func IsImageMIME(mimeType string) bool {
	return ExtForMIME(mimeType) != "bin"
}
