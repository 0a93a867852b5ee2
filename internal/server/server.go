package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"mediafetch/internal/logging"
	"mediafetch/internal/task"
	"mediafetch/internal/ui"
)

type taskSubmitter interface {
	Submit(url, format string) (string, error)
}

type rateLimiter interface {
	Allow(key string) bool
}

// Options configures per-handler behavior.
type Options struct {
	PollInterval      time.Duration // progress stream poll delay
	RequestsPerMinute int           // per-IP API budget
}

// New returns an http.Handler with routes and middleware wired.
func New(d taskSubmitter, st *task.Store, outDir string) http.Handler {
	return NewWithOptions(d, st, outDir, Options{})
}

// NewWithOptions is like New but allows overriding stream and limiter tuning.
func NewWithOptions(d taskSubmitter, st *task.Store, outDir string, opts Options) http.Handler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 60
	}
	rl := newIPRateLimiter(opts.RequestsPerMinute)
	mux := http.NewServeMux()

	// Routes
	mux.HandleFunc("/api/download", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req struct {
			VideoURL string `json:"video_url"`
			Format   string `json:"format"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid request body"})
			return
		}
		if req.VideoURL == "" || req.Format == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "missing video_url or format"})
			return
		}
		if !validURL(req.VideoURL) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid video_url"})
			return
		}
		id, err := d.Submit(req.VideoURL, req.Format)
		if err != nil {
			switch {
			case errors.Is(err, task.ErrValidation):
				writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "missing video_url or format"})
			case errors.Is(err, task.ErrShuttingDown):
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "shutting down"})
			default:
				writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "task_id": id})
	}))

	mux.HandleFunc("/api/stream/", with(rl, streamProgress(st, opts.PollInterval)))

	mux.HandleFunc(task.DownloadURLPrefix, with(rl, serveArtifact(outDir)))

	mux.HandleFunc("/api/status", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		if id := r.URL.Query().Get("id"); id != "" {
			t, ok := st.Get(id)
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "task not found"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": t})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "tasks": st.Snapshot()})
	}))

	// Dashboard (HTML via templ + HTMX polling)
	mux.HandleFunc("/", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/dashboard" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not found"))
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = ui.Dashboard(dashboardRows(st)).Render(context.Background(), w)
	}))

	mux.HandleFunc("/dashboard/rows", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = ui.QueueTable(dashboardRows(st)).Render(context.Background(), w)
	}))

	// Healthcheck
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return recoverer(logger(mux))
}

// dashboardRows flattens the store snapshot into display rows, stable by id.
func dashboardRows(st *task.Store) []ui.Row {
	snap := st.Snapshot()
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]ui.Row, 0, len(ids))
	for _, id := range ids {
		t := snap[id]
		row := ui.Row{
			ID:         id,
			Status:     string(t.Status),
			Percentage: t.Progress.Percentage,
			Size:       t.Progress.TotalBytesString,
			Speed:      t.Progress.Speed,
		}
		if t.Filename != nil {
			row.Filename = *t.Filename
		}
		if t.ErrorMessage != nil {
			row.Detail = *t.ErrorMessage
		}
		rows = append(rows, row)
	}
	return rows
}

// Utilities

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func validURL(u string) bool {
	if len(u) == 0 || len(u) > 2048 { // sanity cap
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed == nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if parsed.Host == "" {
		return false
	}
	return true
}

// Middleware

func with(rl rateLimiter, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"success": false, "error": "rate limited"})
			return
		}
		h(w, r)
	}
}

func logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		// Skip noisy log lines for the HTMX row polling endpoint
		if r.URL.Path == "/dashboard/rows" {
			return
		}
		logging.LogHTTPRequest(r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logging.LogHandlerPanic(r.URL.Path, v)
				writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	// Respect common proxy headers, then fall back to RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		return strings.TrimSpace(xr)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
