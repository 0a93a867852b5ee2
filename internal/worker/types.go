// Package worker is the boundary to the external download engine. The engine
// is opaque to the rest of the system: it is handed a URL, a format choice and
// an output path, and reports back through normalized progress events.
package worker

import "context"

// EventKind tags a progress event from the external engine.
type EventKind string

const (
	EventDownloading EventKind = "downloading"
	EventFinished    EventKind = "finished"
	EventError       EventKind = "error"
)

// Event is one raw progress callback. Byte counts are raw numbers; Speed,
// ETA and TotalBytesString are preformatted for display. Filename is only
// set on EventFinished, and may be empty when the engine could not resolve
// the final output name.
type Event struct {
	Kind             EventKind
	DownloadedBytes  int64
	TotalBytes       int64
	Speed            string
	ETA              string
	TotalBytesString string
	Filename         string
}

// Hook receives progress events on the engine's own goroutine. It must not
// block beyond publishing the update and must never panic into the engine.
type Hook func(Event)

// MediaInfo is the minimal metadata resolved for a source URL.
type MediaInfo struct {
	ID          string
	Title       string
	DurationSec int64
}

// Request describes one download invocation.
type Request struct {
	URL        string
	Format     string // mp3 | best_video | 1080p | 720p | 480p
	OutputPath string
}

// Worker abstracts the external download engine.
type Worker interface {
	// Probe resolves metadata for a source URL without downloading.
	Probe(ctx context.Context, url string) (MediaInfo, error)
	// Download runs the engine to completion, emitting progress through hook.
	// A nil return means the engine exited cleanly; it does not guarantee a
	// terminal event was emitted.
	Download(ctx context.Context, req Request, hook Hook) error
}
