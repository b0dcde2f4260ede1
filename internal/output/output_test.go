package output

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/warraq-app/warraq/internal/common"
)

func TestParseFormats(t *testing.T) {
	fs, err := ParseFormats("txt, JSON")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !fs.Has(FormatTXT) || !fs.Has(FormatJSON) || fs.Has(FormatDOCX) {
		t.Fatalf("parsed set = %v", fs)
	}

	if _, err := ParseFormats("txt,odt"); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("unknown format error = %v", err)
	}
	if _, err := ParseFormats(""); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("empty list error = %v", err)
	}
}

func TestFormatsRemoveLastIsNoOp(t *testing.T) {
	fs := Formats{FormatTXT: {}, FormatDOCX: {}}
	fs.Remove(FormatDOCX)
	if fs.Has(FormatDOCX) || !fs.Has(FormatTXT) {
		t.Fatalf("set after remove = %v", fs)
	}
	fs.Remove(FormatTXT)
	if !fs.Has(FormatTXT) {
		t.Fatal("removing the last format must be a no-op")
	}
}

func TestFormatsSliceOrderIsStable(t *testing.T) {
	fs := Formats{FormatJSON: {}, FormatTXT: {}, FormatDOCX: {}}
	got := fs.Slice()
	want := []Format{FormatTXT, FormatDOCX, FormatJSON}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestTxtWriterJoinsWithSeparator(t *testing.T) {
	base := filepath.Join(t.TempDir(), "doc")
	w := &txtWriter{opts: Options{PageSeparator: "=== PAGE ==="}}

	path, err := w.Write([]string{"first page", "second page"}, base)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "first page\n=== PAGE ===\nsecond page\n"
	if string(data) != want {
		t.Fatalf("txt content = %q, want %q", data, want)
	}
}

func TestTxtWriterDefaultSeparator(t *testing.T) {
	base := filepath.Join(t.TempDir(), "doc")
	w := &txtWriter{}

	path, err := w.Write([]string{"a", "b"}, base)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\nPAGE_SEPARATOR\n") {
		t.Fatalf("default separator missing: %q", data)
	}
}

func TestJSONWriterShape(t *testing.T) {
	base := filepath.Join(t.TempDir(), "doc")
	w := &jsonWriter{}

	path, err := w.Write([]string{"مرحبا بالعالم", "صفحة ثانية"}, base)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Pages []string `json:"pages"`
		RTL   bool     `json:"rtl"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Pages) != 2 || doc.Pages[0] != "مرحبا بالعالم" {
		t.Fatalf("pages = %v", doc.Pages)
	}
	if !doc.RTL {
		t.Fatal("arabic document must be flagged rtl")
	}
}

func TestJSONWriterLatinNotRTL(t *testing.T) {
	base := filepath.Join(t.TempDir(), "doc")
	w := &jsonWriter{}

	path, err := w.Write([]string{"hello world"}, base)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := os.ReadFile(path)
	var doc struct {
		RTL bool `json:"rtl"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.RTL {
		t.Fatal("latin document flagged rtl")
	}
}

func TestDocxWriterPackage(t *testing.T) {
	base := filepath.Join(t.TempDir(), "doc")
	w := &docxWriter{}

	path, err := w.Write([]string{"hello <world>", "مرحبا"}, base)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open docx: %v", err)
	}
	defer zr.Close()

	parts := map[string]string{}
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			t.Fatal(err)
		}
		var b strings.Builder
		if _, err := io.Copy(&b, rc); err != nil {
			t.Fatal(err)
		}
		rc.Close()
		parts[zf.Name] = b.String()
	}

	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		if _, ok := parts[name]; !ok {
			t.Fatalf("missing package part %s (have %v)", name, keys(parts))
		}
	}

	doc := parts["word/document.xml"]
	if !strings.Contains(doc, "hello &lt;world&gt;") {
		t.Fatalf("text not escaped into document: %s", doc)
	}
	if !strings.Contains(doc, `<w:br w:type="page"/>`) {
		t.Fatal("missing page break between pages")
	}
	if !strings.Contains(doc, "<w:bidi/>") {
		t.Fatal("arabic paragraph missing rtl property")
	}
}

func TestWriteAllSelectsConfiguredFormats(t *testing.T) {
	base := filepath.Join(t.TempDir(), "doc")
	fs := Formats{FormatTXT: {}, FormatJSON: {}}

	paths, err := WriteAll([]string{"page"}, base, fs, Options{})
	if err != nil {
		t.Fatalf("write all: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing output %s: %v", p, err)
		}
	}
	if _, err := os.Stat(base + ".docx"); !os.IsNotExist(err) {
		t.Fatal("docx written although not configured")
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
