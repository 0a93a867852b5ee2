package task

import (
	"math"
	"path/filepath"

	"mediafetch/internal/logging"
	"mediafetch/internal/worker"
)

// DownloadURLPrefix is the public retrieval path for finished artifacts.
// The file-serving route must be mounted here.
const DownloadURLPrefix = "/api/files/"

// Reporter translates the external engine's raw progress events into task
// mutations. One Reporter is bound to one task identifier; every event it
// handles performs exactly one atomic store update.
type Reporter struct {
	store *Store
	id    string
}

// NewReporter binds a reporter to a task in the store.
func NewReporter(store *Store, id string) *Reporter {
	return &Reporter{store: store, id: id}
}

// Handle publishes one progress event. Events arriving after the task has
// reached a terminal state are ignored, so a late callback can never
// resurrect or corrupt a finished record. Handle never panics into the
// engine: internal faults are swallowed and logged.
func (r *Reporter) Handle(ev worker.Event) {
	defer func() {
		if v := recover(); v != nil {
			logging.LogReporterPanic(r.id, v)
		}
	}()

	r.store.Update(r.id, func(t *Task) {
		if t.Status.Terminal() {
			return
		}
		switch ev.Kind {
		case worker.EventDownloading:
			t.Status = StatusDownloading
			pct := 0.0
			if ev.TotalBytes > 0 {
				pct = float64(ev.DownloadedBytes) / float64(ev.TotalBytes) * 100
			}
			pct = math.Round(pct*10) / 10
			// yt-dlp reports several phases; never move the bar backwards.
			if pct > t.Progress.Percentage {
				t.Progress.Percentage = pct
			}
			t.Progress.Speed = ev.Speed
			t.Progress.ETA = ev.ETA
			t.Progress.TotalBytes = ev.TotalBytes
			t.Progress.TotalBytesString = ev.TotalBytesString
			t.Progress.DownloadedBytes = ev.DownloadedBytes

		case worker.EventFinished:
			t.Status = StatusFinished
			if ev.Filename != "" {
				name := filepath.Base(ev.Filename)
				t.Filename = &name
			}
			if t.Filename != nil {
				url := DownloadURLPrefix + *t.Filename
				t.DownloadURL = &url
			}
			t.Progress.Percentage = 100
			logging.LogTaskStateChange(r.id, string(StatusFinished))

		case worker.EventError:
			t.Status = StatusError
			msg := "the download engine reported a failure"
			t.ErrorMessage = &msg
			logging.LogTaskStateChange(r.id, string(StatusError))
		}
	})
}
