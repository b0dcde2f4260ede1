package constants

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileKind distinguishes inputs that need page splitting from inputs that are
// already a single page image.
type FileKind string

const (
	KindMultiPage  FileKind = "MULTI_PAGE"
	KindSinglePage FileKind = "SINGLE_PAGE"
)

// AllowedExtensions holds the input file extensions the pipeline accepts.
var AllowedExtensions = map[string]FileKind{
	"pdf":  KindMultiPage,
	"png":  KindSinglePage,
	"jpg":  KindSinglePage,
	"jpeg": KindSinglePage,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// DetectKind classifies an input path by extension.
func DetectKind(path string) (FileKind, error) {
	ext := NormalizeExt(filepath.Ext(path))
	kind, ok := AllowedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file type: %q", ext)
	}
	return kind, nil
}

// MimeTypeForPath returns the upload content type for a page image or document.
func MimeTypeForPath(path string) string {
	switch NormalizeExt(filepath.Ext(path)) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
