package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediafetch/internal/task"
)

func TestServeArtifact_HappyPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := New(&mockSubmitter{}, task.NewStore(10), dir)
	req := httptest.NewRequest(http.MethodGet, task.DownloadURLPrefix+"clip.mp4", nil)
	req.Header.Set("X-Forwarded-For", "10.3.0.1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "payload" {
		t.Fatalf("body=%q", got)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `"clip.mp4"`) {
		t.Fatalf("Content-Disposition=%q", cd)
	}
}

func TestServeArtifact_TraversalRejected(t *testing.T) {
	dir := t.TempDir()
	// Place a file just outside the served directory.
	outside := filepath.Join(filepath.Dir(dir), "escape.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	defer os.Remove(outside)

	h := serveArtifact(dir)
	for _, name := range []string{
		"../escape.txt",
		"..%2Fescape.txt",
		"a/../../escape.txt",
		"/etc/passwd",
	} {
		// Bypass ServeMux path cleaning to hit the handler's own guard.
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = task.DownloadURLPrefix + name
		w := httptest.NewRecorder()
		h(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status=%d body=%s", name, w.Code, w.Body.String())
		}
		if strings.Contains(w.Body.String(), "secret") {
			t.Errorf("%s: leaked file contents", name)
		}
	}
}

func TestServeArtifact_MissingFile(t *testing.T) {
	h := serveArtifact(t.TempDir())
	req := httptest.NewRequest(http.MethodGet, task.DownloadURLPrefix+"nope.mp4", nil)
	w := httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestServeArtifact_DirectoryRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	h := serveArtifact(dir)
	req := httptest.NewRequest(http.MethodGet, task.DownloadURLPrefix+"sub", nil)
	w := httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}
