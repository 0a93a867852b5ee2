package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mediafetch/internal/task"
)

// serveArtifact returns finished downloads by filename, strictly from within
// the managed output directory. Anything that resolves outside it — parent
// segments, absolute paths — is answered with 404, never served.
func serveArtifact(outDir string) http.HandlerFunc {
	root, _ := filepath.Abs(outDir)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, task.DownloadURLPrefix)
		if name == "" {
			notFound(w)
			return
		}

		abs, err := filepath.Abs(filepath.Join(root, filepath.FromSlash(name)))
		if err != nil || !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
			notFound(w)
			return
		}

		fi, err := os.Stat(abs)
		if err != nil || fi.IsDir() {
			notFound(w)
			return
		}

		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", filepath.Base(abs)))
		http.ServeFile(w, r, abs)
	}
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "file not found"})
}
