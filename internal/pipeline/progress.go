package pipeline

import (
	"log/slog"

	"github.com/warraq-app/warraq/constants"
)

// Event is one observational progress tuple. Sinks must not block: events
// are emitted from the job goroutine.
type Event struct {
	File       string              `json:"file"`
	Stage      constants.FileStage `json:"stage"`
	Current    int                 `json:"current"`
	Total      int                 `json:"total"`
	Percentage int                 `json:"percentage"`
}

// Sink receives progress events.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// NopSink drops all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// LogSink writes events to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("job.progress",
		"file", e.File,
		"stage", e.Stage,
		"current", e.Current,
		"total", e.Total,
		"percentage", e.Percentage,
	)
}
