package task

import "errors"

var (
	// ErrValidation indicates a submit request with a missing URL or format
	ErrValidation = errors.New("invalid_request")

	// ErrShuttingDown indicates the dispatcher is no longer accepting tasks
	ErrShuttingDown = errors.New("shutting_down")

	// ErrExists indicates a task identifier collision in the store
	ErrExists = errors.New("task_exists")

	// ErrToolMissing indicates a required external tool (ffmpeg) is absent
	ErrToolMissing = errors.New("tool_missing")

	// ErrUnsupportedSource indicates the source URL has no extractor
	ErrUnsupportedSource = errors.New("unsupported_source")

	// ErrSourceUnavailable indicates the media exists but cannot be fetched
	ErrSourceUnavailable = errors.New("source_unavailable")

	// ErrRateLimited indicates the source rejected the request temporarily
	ErrRateLimited = errors.New("rate_limited")

	// ErrNoArtifact indicates the post-run check found no output file
	ErrNoArtifact = errors.New("artifact_missing")
)
