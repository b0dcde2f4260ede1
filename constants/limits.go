package constants

// Render resolution bounds. Out-of-range values are clamped at the boundary,
// never rejected.
const (
	MinDPI     = 72
	MaxDPI     = 300
	DefaultDPI = 150
)

// OCR concurrency bounds for one file's extraction phase.
const (
	MinConcurrency     = 1
	MaxConcurrency     = 20
	DefaultConcurrency = 4
)

// DefaultPageSeparator is inserted between pages in text output.
const DefaultPageSeparator = "PAGE_SEPARATOR"

// ClampDPI forces a render resolution into the supported range.
func ClampDPI(dpi int) int {
	if dpi < MinDPI {
		return MinDPI
	}
	if dpi > MaxDPI {
		return MaxDPI
	}
	return dpi
}

// ClampConcurrency forces an OCR worker count into the supported range.
func ClampConcurrency(n int) int {
	if n < MinConcurrency {
		return MinConcurrency
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
