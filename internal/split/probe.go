package split

import (
	"fmt"

	ltpdf "github.com/ledongthuc/pdf"
)

// probePageCount reads the page count from the document's cross-reference
// table without spinning up a render engine. Malformed files fall back to a
// full engine open so a quirky but renderable PDF still converts.
func probePageCount(engine Engine, path string) (int, error) {
	if n, err := xrefPageCount(path); err == nil && n > 0 {
		return n, nil
	}
	doc, err := engine.Open(path)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.PageCount(), nil
}

func xrefPageCount(path string) (n int, err error) {
	// The parser panics on some malformed files; treat that as a probe miss.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page count probe: %v", r)
		}
	}()
	f, r, err := ltpdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}
