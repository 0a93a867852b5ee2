package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mediafetch/internal/task"
)

// dataFrames parses the "data:" payloads out of a raw SSE response body.
func dataFrames(t *testing.T, body string) []string {
	t.Helper()
	var frames []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	return frames
}

func TestStream_EmitsEachDistinctStateOnce(t *testing.T) {
	st := task.NewStore(10)
	if err := st.Create("t1", task.New()); err != nil {
		t.Fatal(err)
	}

	// Walk the task through its lifecycle while the stream polls.
	go func() {
		step := func(fn func(*task.Task)) {
			time.Sleep(40 * time.Millisecond)
			st.Update("t1", fn)
		}
		step(func(tk *task.Task) { tk.Status = task.StatusFetchingInfo })
		step(func(tk *task.Task) { tk.Status = task.StatusPreparing })
		step(func(tk *task.Task) {
			tk.Status = task.StatusDownloading
			tk.Progress.Percentage = 50
		})
		step(func(tk *task.Task) { tk.Progress.Percentage = 100 })
		step(func(tk *task.Task) {
			tk.Status = task.StatusFinished
			name := "clip.mp4"
			u := task.DownloadURLPrefix + name
			tk.Filename = &name
			tk.DownloadURL = &u
		})
	}()

	h := streamProgress(st, 5*time.Millisecond)
	req := httptest.NewRequest(http.MethodGet, "/api/stream/t1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req) // returns once the task goes terminal

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type=%q", ct)
	}

	frames := dataFrames(t, w.Body.String())
	if len(frames) != 6 {
		t.Fatalf("expected 6 frames, got %d: %v", len(frames), frames)
	}
	// No consecutive duplicates.
	for i := 1; i < len(frames); i++ {
		if frames[i] == frames[i-1] {
			t.Errorf("duplicate frame at %d: %s", i, frames[i])
		}
	}

	type frame struct {
		Status      string  `json:"status"`
		DownloadURL *string `json:"download_url"`
	}
	var states []frame
	for _, f := range frames {
		var s frame
		if err := json.Unmarshal([]byte(f), &s); err != nil {
			t.Fatalf("frame %q: %v", f, err)
		}
		states = append(states, s)
	}

	want := []string{"pending", "fetching_info", "preparing_download", "downloading", "downloading", "finished"}
	for i, s := range states {
		if s.Status != want[i] {
			t.Errorf("frame %d: status=%q want %q", i, s.Status, want[i])
		}
	}
	last := states[len(states)-1]
	if last.DownloadURL == nil || *last.DownloadURL != task.DownloadURLPrefix+"clip.mp4" {
		t.Errorf("final frame download_url=%v", last.DownloadURL)
	}
}

func TestStream_UnknownTaskSendsSingleErrorEvent(t *testing.T) {
	st := task.NewStore(10)
	h := streamProgress(st, 5*time.Millisecond)
	req := httptest.NewRequest(http.MethodGet, "/api/stream/nope", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "event: error") {
		t.Fatalf("missing error event: %q", body)
	}
	if !strings.Contains(body, "task not found or removed") {
		t.Fatalf("unexpected payload: %q", body)
	}
	if n := strings.Count(body, "event:"); n != 1 {
		t.Fatalf("expected one event, got %d", n)
	}
}

func TestStream_EmptyIDRejected(t *testing.T) {
	st := task.NewStore(10)
	h := streamProgress(st, 5*time.Millisecond)
	for _, path := range []string{"/api/stream/", "/api/stream/a/b"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status=%d", path, w.Code)
		}
	}
}

func TestStream_ClientDisconnectEndsLoop(t *testing.T) {
	st := task.NewStore(10)
	if err := st.Create("t1", task.New()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream/t1", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		streamProgress(st, 5*time.Millisecond)(w, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not exit after client disconnect")
	}
}
