package output

import (
	"archive/zip"
	"fmt"
	"os"
	"strings"

	"github.com/warraq-app/warraq/internal/textutil"
)

// docxWriter packs the page texts into a minimal WordprocessingML document:
// one paragraph per line, an explicit page break between pages, and
// right-to-left paragraph properties where the line's script calls for them.
// Page texts are compacted first so OCR line noise does not become thousands
// of one-word paragraphs.
type docxWriter struct{}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>
`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>
`

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func (w *docxWriter) Extension() string { return "docx" }

func (w *docxWriter) Write(texts []string, basePath string) (string, error) {
	path := basePath + ".docx"
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	parts := []struct {
		name, body string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", buildDocumentXML(texts)},
	}
	for _, part := range parts {
		pw, err := zw.Create(part.name)
		if err != nil {
			return "", err
		}
		if _, err := pw.Write([]byte(part.body)); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func buildDocumentXML(texts []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for i, text := range texts {
		if i > 0 {
			b.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}
		for _, line := range strings.Split(textutil.Compact(text), "\n") {
			b.WriteString(paragraphXML(line))
		}
	}
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func paragraphXML(line string) string {
	props := ""
	if textutil.IsRTL(line) {
		props = `<w:pPr><w:bidi/><w:jc w:val="right"/></w:pPr>`
	}
	return fmt.Sprintf(`<w:p>%s<w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`,
		props, xmlEscaper.Replace(line))
}
