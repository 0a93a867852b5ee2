package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediafetch/internal/logging"
	"mediafetch/internal/worker"
)

// maximum length of a user-visible error detail
const errMsgCap = 150

// Runner drives one task through its lifecycle: resolve metadata, derive the
// target filename, hand the job to the external engine, and finalize. It is
// the only writer besides the Reporter it creates. A Runner always leaves its
// task in a terminal state (or gone from the store); no failure escapes it.
type Runner struct {
	store  *Store
	engine worker.Worker
	outDir string

	id     string
	url    string
	format string
}

// NewRunner prepares a runner for a task already seeded in the store.
func NewRunner(store *Store, engine worker.Worker, outDir, id, url, format string) *Runner {
	return &Runner{store: store, engine: engine, outDir: outDir, id: id, url: url, format: format}
}

// Run executes the lifecycle to completion. It is meant to be called on its
// own goroutine; the caller must not wait on it.
func (r *Runner) Run(ctx context.Context) {
	defer func() {
		if v := recover(); v != nil {
			logging.LogRunnerPanic(r.id, v)
			r.fail(fmt.Errorf("runner panic: %v", v))
		}
	}()

	// Phase 1: resolve metadata.
	if !r.advance(StatusFetchingInfo, nil) {
		return // task no longer tracked
	}
	info, err := r.engine.Probe(ctx, r.url)
	if err != nil {
		r.fail(err)
		return
	}

	// Phase 2: derive and record the target filename.
	base := worker.SanitizeFilename(fmt.Sprintf("%s [%s]", info.Title, info.ID))
	name := base + "." + worker.ExtensionFor(r.format)
	path := filepath.Join(r.outDir, name)
	if !r.advance(StatusPreparing, func(t *Task) {
		n := name
		t.Filename = &n
	}) {
		return
	}

	// Phase 3: run the engine. It drives downloading -> finished|error itself
	// through the reporter.
	rep := NewReporter(r.store, r.id)
	if !r.advance(StatusDownloading, nil) {
		return
	}
	if err := r.engine.Download(ctx, worker.Request{URL: r.url, Format: r.format, OutputPath: path}, rep.Handle); err != nil {
		r.fail(err)
		return
	}

	// Phase 4: consistency check. Some engines exit cleanly without a final
	// progress event; decide the terminal state from the filesystem.
	r.finalize(name, path)
}

// advance moves the task to st unless it already reached a terminal state.
// Returns false when the task is no longer tracked.
func (r *Runner) advance(st Status, fn func(*Task)) bool {
	ok := r.store.Update(r.id, func(t *Task) {
		if t.Status.Terminal() {
			return
		}
		t.Status = st
		if fn != nil {
			fn(t)
		}
	})
	if ok {
		logging.LogTaskStateChange(r.id, string(st))
	}
	return ok
}

// finalize force-transitions a still-running task based on whether the
// expected artifact exists.
func (r *Runner) finalize(name, path string) {
	if t, ok := r.store.Get(r.id); !ok || t.Status.Terminal() {
		return
	}
	if _, err := os.Stat(path); err == nil {
		r.store.Update(r.id, func(t *Task) {
			if t.Status.Terminal() {
				return
			}
			t.Status = StatusFinished
			if t.Filename == nil {
				n := name
				t.Filename = &n
			}
			if t.DownloadURL == nil {
				u := DownloadURLPrefix + filepath.Base(*t.Filename)
				t.DownloadURL = &u
			}
			t.Progress.Percentage = 100
		})
		logging.LogTaskStateChange(r.id, string(StatusFinished))
		return
	}
	r.failWith(ErrNoArtifact, "no output file was found after the download ended")
}

// fail classifies err and records it as the task's terminal error state.
func (r *Runner) fail(err error) {
	sentinel, msg := classify(err)
	logging.LogTaskError(r.id, r.url, err)
	r.failWith(sentinel, msg)
}

func (r *Runner) failWith(cause error, msg string) {
	r.store.Update(r.id, func(t *Task) {
		if t.Status.Terminal() {
			return
		}
		t.Status = StatusError
		m := msg
		t.ErrorMessage = &m
	})
	logging.LogTaskFailed(r.id, cause, msg)
}

// classify folds an engine or metadata error into the user-facing taxonomy.
// The returned message is safe to show to clients; raw detail is truncated.
func classify(err error) (error, string) {
	text := err.Error()
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "ffmpeg was not found"),
		strings.Contains(lower, "ffmpeg is not installed"),
		strings.Contains(lower, "ffmpeg not found"):
		return ErrToolMissing, "ffmpeg is required but was not found; install it and make sure it is on PATH"
	case strings.Contains(lower, "yt_dlp_not_found"), strings.Contains(lower, "yt_dlp_outdated"):
		return ErrToolMissing, "the download engine is not installed or too old"
	case strings.Contains(lower, "unsupported url"):
		return ErrUnsupportedSource, "this source URL is not supported"
	case strings.Contains(lower, "video unavailable"):
		return ErrSourceUnavailable, "the requested media is unavailable"
	case strings.Contains(lower, "http error 429"), strings.Contains(lower, "too many requests"):
		return ErrRateLimited, "the source temporarily blocked the request (too many requests)"
	default:
		return err, "download failed: " + truncate(text, errMsgCap)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
