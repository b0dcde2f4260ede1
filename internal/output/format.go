// Package output renders extracted page texts into the configured file
// formats.
package output

import (
	"fmt"
	"strings"

	"github.com/warraq-app/warraq/internal/common"
)

// Format names one supported output file format.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatDOCX Format = "docx"
	FormatJSON Format = "json"
)

// allFormats fixes the order outputs are written in.
var allFormats = []Format{FormatTXT, FormatDOCX, FormatJSON}

// ParseFormat normalizes and validates a single format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	switch f {
	case FormatTXT, FormatDOCX, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown output format %q", common.ErrInvalidInput, s)
}

// Formats is the set of formats a job writes. It is never empty: removing
// the last remaining format is a no-op.
type Formats map[Format]struct{}

// DefaultFormats returns the out-of-the-box format set.
func DefaultFormats() Formats {
	return Formats{FormatTXT: {}}
}

// ParseFormats parses a comma-separated list such as "txt,json".
func ParseFormats(s string) (Formats, error) {
	set := Formats{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFormat(part)
		if err != nil {
			return nil, err
		}
		set[f] = struct{}{}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: at least one output format is required", common.ErrInvalidInput)
	}
	return set, nil
}

func (fs Formats) Has(f Format) bool {
	_, ok := fs[f]
	return ok
}

func (fs Formats) Add(f Format) {
	fs[f] = struct{}{}
}

// Remove drops f from the set unless it is the only member left.
func (fs Formats) Remove(f Format) {
	if len(fs) <= 1 {
		return
	}
	delete(fs, f)
}

// Slice returns the members in writer order.
func (fs Formats) Slice() []Format {
	out := make([]Format, 0, len(fs))
	for _, f := range allFormats {
		if fs.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (fs Formats) String() string {
	parts := make([]string, 0, len(fs))
	for _, f := range fs.Slice() {
		parts = append(parts, string(f))
	}
	return strings.Join(parts, ",")
}
