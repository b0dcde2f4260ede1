package output

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/warraq-app/warraq/internal/textutil"
)

// jsonWriter emits the page texts as a machine-readable document.
type jsonWriter struct{}

type jsonDocument struct {
	Pages []string `json:"pages"`
	RTL   bool     `json:"rtl"`
}

func (w *jsonWriter) Extension() string { return "json" }

func (w *jsonWriter) Write(texts []string, basePath string) (string, error) {
	doc := jsonDocument{
		Pages: texts,
		RTL:   textutil.IsRTL(strings.Join(texts, "\n")),
	}
	if doc.Pages == nil {
		doc.Pages = []string{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	path := basePath + ".json"
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
