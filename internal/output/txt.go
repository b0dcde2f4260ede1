package output

import (
	"os"
	"strings"
)

// txtWriter joins raw page texts with the configured separator line.
type txtWriter struct {
	opts Options
}

func (w *txtWriter) Extension() string { return "txt" }

func (w *txtWriter) Write(texts []string, basePath string) (string, error) {
	sep := "\n" + w.opts.separator() + "\n"
	path := basePath + ".txt"
	content := strings.Join(texts, sep)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
