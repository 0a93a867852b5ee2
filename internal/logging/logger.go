package logging

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	// Logger is the global structured logger instance
	Logger *slog.Logger
)

// Init initializes the global structured logger
func Init(level slog.Level) {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Format time as ISO8601
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "info", "INFO":
		return slog.LevelInfo
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RedactURL removes secrets from URL logs while retaining debugging value.
// It strips userinfo and masks query parameter values.
func RedactURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed == nil {
		return rawURL
	}

	parsed.User = nil

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for key := range query {
			query.Set(key, "***")
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

// Helper functions for common logging patterns

// LogTaskQueued logs acceptance of a new download task
func LogTaskQueued(taskID, url, format string) {
	if Logger == nil {
		return
	}
	Logger.Info("task queued",
		"event", "task_queued",
		"task_id", taskID,
		"url", RedactURL(url),
		"format", format)
}

// LogTaskStateChange logs task lifecycle transitions
func LogTaskStateChange(taskID, status string) {
	if Logger == nil {
		return
	}
	Logger.Info("task state changed",
		"event", "task_state_change",
		"task_id", taskID,
		"status", status)
}

// LogTaskError logs the raw cause of a task failure before classification
func LogTaskError(taskID, url string, err error) {
	if Logger == nil {
		return
	}
	Logger.Error("task failed",
		"event", "task_error",
		"task_id", taskID,
		"url", RedactURL(url),
		"error", err)
}

// LogTaskFailed logs the classified terminal error recorded on a task
func LogTaskFailed(taskID string, cause error, msg string) {
	if Logger == nil {
		return
	}
	Logger.Error("task marked as error",
		"event", "task_failed",
		"task_id", taskID,
		"cause", cause,
		"message", msg)
}

// LogReporterPanic logs a panic swallowed at the progress hook boundary
func LogReporterPanic(taskID string, v any) {
	if Logger == nil {
		return
	}
	Logger.Error("progress hook panic recovered",
		"event", "reporter_panic",
		"task_id", taskID,
		"panic", v)
}

// LogRunnerPanic logs a panic swallowed at the runner boundary
func LogRunnerPanic(taskID string, v any) {
	if Logger == nil {
		return
	}
	Logger.Error("runner panic recovered",
		"event", "runner_panic",
		"task_id", taskID,
		"panic", v)
}

// LogStreamOpen logs a client attaching to a progress stream
func LogStreamOpen(taskID string) {
	if Logger == nil {
		return
	}
	Logger.Info("stream opened",
		"event", "stream_open",
		"task_id", taskID)
}

// LogStreamClose logs a progress stream ending
func LogStreamClose(taskID, reason string) {
	if Logger == nil {
		return
	}
	Logger.Info("stream closed",
		"event", "stream_close",
		"task_id", taskID,
		"reason", reason)
}

// LogWorkerStart logs the start of an engine invocation
func LogWorkerStart(url, output, format string) {
	if Logger == nil {
		return
	}
	Logger.Info("engine started",
		"event", "worker_start",
		"url", RedactURL(url),
		"output", output,
		"format", format)
}

// LogWorkerDone logs a clean engine exit
func LogWorkerDone(url, filename string) {
	if Logger == nil {
		return
	}
	Logger.Info("engine finished",
		"event", "worker_done",
		"url", RedactURL(url),
		"filename", filename)
}

// LogProgressScanError logs progress scanning errors
func LogProgressScanError(url string, err error) {
	if Logger == nil {
		return
	}
	Logger.Warn("progress scan error",
		"event", "progress_scan_error",
		"url", RedactURL(url),
		"error", err)
}

// LogMetadataProbe logs metadata resolution for a source URL
func LogMetadataProbe(url, title string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("metadata probe failed",
			"event", "metadata_probe_error",
			"url", RedactURL(url),
			"error", err)
		return
	}
	Logger.Info("metadata probed",
		"event", "metadata_probe",
		"url", RedactURL(url),
		"title", title)
}

// LogHandlerPanic logs a panic recovered in the HTTP middleware
func LogHandlerPanic(path string, v any) {
	if Logger == nil {
		return
	}
	Logger.Error("handler panic recovered",
		"event", "handler_panic",
		"path", path,
		"panic", v)
}

// LogHTTPRequest logs HTTP request handling
func LogHTTPRequest(method, path, remoteAddr string, duration time.Duration) {
	if Logger == nil {
		return
	}
	Logger.Info("http request",
		"event", "http_request",
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"duration_ms", duration.Milliseconds())
}

// LogServerStart logs server startup
func LogServerStart(addr string, config map[string]any) {
	if Logger == nil {
		return
	}
	attrs := []any{
		"event", "server_start",
		"addr", addr,
	}
	for k, v := range config {
		attrs = append(attrs, k, v)
	}
	Logger.Info("server started", attrs...)
}

// LogServerShutdown logs server shutdown events
func LogServerShutdown(msg string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error(msg,
			"event", "server_shutdown_error",
			"error", err)
	} else {
		Logger.Info(msg,
			"event", "server_shutdown")
	}
}
