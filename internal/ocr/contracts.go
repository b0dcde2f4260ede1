package ocr

import "context"

// RemoteEngine is the slice of the conversion service the orchestrator
// drives for each page image.
type RemoteEngine interface {
	Upload(ctx context.Context, imagePath, token string) (string, error)
	ExportText(ctx context.Context, remoteID, token string) (string, error)
	Delete(ctx context.Context, remoteID, token string) error
}

// PageImage is one unit of OCR work: a rendered page and its position in the
// document. Index is fixed at dispatch time and decides where the extracted
// text lands in the result slice.
type PageImage struct {
	Index int
	Path  string
}

// PageError records a per-page terminal failure. The page's slot in the text
// slice holds an empty string.
type PageError struct {
	Index   int
	Message string
}

// ProgressFunc receives one event per finished task, whether it succeeded,
// failed, or was skipped by cancellation.
type ProgressFunc func(completed, total, percentage int)
