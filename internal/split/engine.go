package split

import "io"

// Engine opens documents for rendering. Handles returned by Open are NOT
// safe to share across concurrent renders; every parallel worker must open
// its own. The repeated open cost buys true render parallelism, which is the
// intended tradeoff.
type Engine interface {
	Open(path string) (Document, error)
}

// Document is one open rendering handle.
type Document interface {
	// PageCount reports the number of pages.
	PageCount() int
	// RenderJPEG rasterizes the zero-based page at the given resolution and
	// writes JPEG bytes to w.
	RenderJPEG(page, dpi int, w io.Writer) error
	Close() error
}
