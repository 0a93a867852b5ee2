package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mediafetch/internal/logging"
	"mediafetch/internal/task"
)

// streamProgress serves the per-task progress feed as server-sent events.
// The loop polls the store at a fixed interval and emits a frame only when
// the serialized snapshot differs from the last one sent, so clients see
// every distinct state but never duplicates. The stream ends on a terminal
// status, on an unknown task, or when the client goes away — checked every
// iteration so a disconnect frees the goroutine within one interval. The
// loop never cancels the download itself.
func streamProgress(st *task.Store, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/stream/")
		if id == "" || strings.Contains(id, "/") {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "unknown stream"})
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "streaming unsupported"})
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		logging.LogStreamOpen(id)

		var last string
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			snap, ok := st.Get(id)
			if !ok {
				writeEvent(w, "error", `{"message":"task not found or removed"}`)
				flusher.Flush()
				logging.LogStreamClose(id, "not_found")
				return
			}

			b, err := json.Marshal(snap)
			if err != nil {
				// Fatal to this stream only.
				writeEvent(w, "error", `{"message":"internal serialization error"}`)
				flusher.Flush()
				logging.LogStreamClose(id, "serialization_error")
				return
			}

			if s := string(b); s != last {
				fmt.Fprintf(w, "data: %s\n\n", s)
				flusher.Flush()
				last = s
			}

			if snap.Status.Terminal() {
				logging.LogStreamClose(id, string(snap.Status))
				return
			}

			select {
			case <-r.Context().Done():
				logging.LogStreamClose(id, "client_disconnected")
				return
			case <-ticker.C:
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
