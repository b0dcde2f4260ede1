package split

import (
	"fmt"
	"image/jpeg"
	"io"

	"github.com/gen2brain/go-fitz"
)

// jpegQuality balances output size against OCR legibility.
const jpegQuality = 85

// FitzEngine renders PDF pages through MuPDF. Each Open call creates an
// independent handle, satisfying the one-handle-per-worker contract.
type FitzEngine struct{}

func NewFitzEngine() FitzEngine { return FitzEngine{} }

func (FitzEngine) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int { return d.doc.NumPage() }

func (d *fitzDocument) RenderJPEG(page, dpi int, w io.Writer) error {
	img, err := d.doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return fmt.Errorf("render page %d: %w", page+1, err)
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encode page %d: %w", page+1, err)
	}
	return nil
}

func (d *fitzDocument) Close() error { return d.doc.Close() }
