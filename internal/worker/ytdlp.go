package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"

	"mediafetch/internal/logging"
)

// format selectors matching the public format choices. Unknown video formats
// fall back to best_video.
var videoFormatSelectors = map[string]string{
	"best_video": "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
	"1080p":      "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080][ext=mp4]/best[height<=1080]",
	"720p":       "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best[height<=720]",
	"480p":       "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]/best[height<=480]",
}

const probeCacheSize = 256

// YTDLP drives the yt-dlp binary. It encapsulates all subprocess management
// and output parsing; callers only see MediaInfo and progress events.
type YTDLP struct {
	probeCache *lru.Cache[string, MediaInfo]
}

// NewYTDLP creates a yt-dlp backed Worker with a bounded metadata cache.
func NewYTDLP() *YTDLP {
	cache, _ := lru.New[string, MediaInfo](probeCacheSize)
	return &YTDLP{probeCache: cache}
}

// CheckYTDLP ensures yt-dlp is in PATH and recent enough to support the
// progress template our parser relies on.
func CheckYTDLP() error {
	p, err := exec.LookPath("yt-dlp")
	if err != nil {
		return err
	}
	out, err := exec.Command(p, "--help").CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp not runnable: %w", err)
	}
	if !strings.Contains(string(out), "--progress-template") {
		return fmt.Errorf("yt_dlp_outdated: missing --progress-template support")
	}
	return nil
}

// Probe runs `yt-dlp -j` for the URL and returns parsed metadata. Results are
// memoized so repeated submits of the same URL skip the subprocess.
func (y *YTDLP) Probe(ctx context.Context, url string) (MediaInfo, error) {
	if mi, ok := y.probeCache.Get(url); ok {
		return mi, nil
	}
	if err := CheckYTDLP(); err != nil {
		return MediaInfo{}, fmt.Errorf("yt_dlp_not_found: %w", err)
	}
	cmd := exec.CommandContext(ctx, "yt-dlp", "-j", "--no-playlist", "--skip-download", url)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return MediaInfo{}, fmt.Errorf("yt-dlp probe: %w: %s", err, tailString(string(ee.Stderr), 512))
		}
		return MediaInfo{}, fmt.Errorf("yt-dlp probe: %w", err)
	}

	mi, err := parseMediaInfo(out, url)
	if err != nil {
		return MediaInfo{}, err
	}
	y.probeCache.Add(url, mi)
	logging.LogMetadataProbe(url, mi.Title, nil)
	return mi, nil
}

func parseMediaInfo(out []byte, url string) (MediaInfo, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		ln := strings.TrimSpace(sc.Text())
		if ln == "" {
			continue
		}
		// Parse generically to allow missing fields.
		var m map[string]any
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			continue
		}
		mi := MediaInfo{Title: url, ID: "unknown_id"}
		if v, ok := m["title"].(string); ok && v != "" {
			mi.Title = v
		}
		if v, ok := m["id"].(string); ok && v != "" {
			mi.ID = v
		}
		if v, ok := m["duration"].(float64); ok {
			mi.DurationSec = int64(v)
		}
		return mi, nil
	}
	if err := sc.Err(); err != nil {
		return MediaInfo{}, err
	}
	return MediaInfo{}, errors.New("no_media_info")
}

// Download executes a yt-dlp download for req, emitting progress events on
// hook. It blocks until the subprocess exits. A finished event is emitted
// only when the final output name could be extracted from the engine output;
// otherwise the caller's post-run check decides the terminal state.
func (y *YTDLP) Download(ctx context.Context, req Request, hook Hook) error {
	if err := CheckYTDLP(); err != nil {
		return fmt.Errorf("yt_dlp_not_found: %w", err)
	}

	args := buildArgs(req)
	cmd := exec.CommandContext(ctx, "yt-dlp", args...)

	logging.LogWorkerStart(req.URL, req.OutputPath, req.Format)

	// Progress appears on stderr; capture both and tee into buffers for
	// diagnostics and filename extraction.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout: %w", err)
	}
	var stderrBuf, stdoutBuf bytes.Buffer

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		parseProgress(req.URL, bufio.NewScanner(io.TeeReader(stderr, &stderrBuf)), hook)
	}()
	go func() {
		defer wg.Done()
		parseProgress(req.URL, bufio.NewScanner(io.TeeReader(stdout, &stdoutBuf)), hook)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		tail := tailString(stderrBuf.String(), 512)
		if tail != "" {
			return fmt.Errorf("yt-dlp: %w: %s", err, tail)
		}
		return fmt.Errorf("yt-dlp: %w", err)
	}

	// Some yt-dlp messages go to stderr; extract the final name from both.
	// When no name can be found we return without a terminal event and leave
	// the caller's post-run artifact check to finalize the task.
	combined := strings.TrimSpace(stdoutBuf.String() + "\n" + stderrBuf.String())
	name := extractFilename(combined)
	if name != "" {
		hook(Event{Kind: EventFinished, Filename: name})
	}

	logging.LogWorkerDone(req.URL, name)
	return nil
}

// buildArgs constructs the yt-dlp argument list for a format choice.
func buildArgs(req Request) []string {
	args := []string{
		"--newline", "--no-color", "--no-playlist",
		"--progress-template", "download:%(progress)j",
		"--retries", "5",
		"--fragment-retries", "5",
		"--socket-timeout", "30",
		"-o", req.OutputPath,
	}
	if req.Format == "mp3" {
		args = append(args,
			"-f", "bestaudio/best",
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", "192K",
			"--embed-metadata",
			"--embed-thumbnail",
		)
	} else {
		sel, ok := videoFormatSelectors[req.Format]
		if !ok {
			sel = videoFormatSelectors["best_video"]
		}
		args = append(args, "-f", sel, "--merge-output-format", "mp4")
	}
	return append(args, req.URL)
}

// progressLine mirrors the fields of yt-dlp's %(progress)j template output.
type progressLine struct {
	Status             string  `json:"status"`
	DownloadedBytes    float64 `json:"downloaded_bytes"`
	TotalBytes         float64 `json:"total_bytes"`
	TotalBytesEstimate float64 `json:"total_bytes_estimate"`
	Speed              float64 `json:"speed"` // bytes/sec
	ETA                float64 `json:"eta"`   // seconds
}

// parseProgress scans engine output and emits a downloading event per
// progress line. Per-phase "finished" lines are ignored: with merging and
// post-processing there may be several phases, and only the caller knows
// when the job as a whole is done.
func parseProgress(url string, sc *bufio.Scanner, hook Hook) {
	sc.Buffer(make([]byte, 4096), 256*1024)
	// Split on \n, \r\n, or bare \r since yt-dlp often rewrites progress on
	// the same line using carriage returns.
	sc.Split(scanCRorLF)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var p progressLine
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			// Not JSON, skip (other yt-dlp output).
			continue
		}
		if p.Status != "downloading" {
			continue
		}

		total := p.TotalBytes
		if total <= 0 && p.TotalBytesEstimate > 0 {
			total = p.TotalBytesEstimate
		}
		if p.DownloadedBytes < 0 {
			continue
		}

		hook(Event{
			Kind:             EventDownloading,
			DownloadedBytes:  int64(p.DownloadedBytes),
			TotalBytes:       int64(total),
			Speed:            formatSpeed(p.Speed),
			ETA:              formatETA(p.ETA),
			TotalBytesString: formatBytes(total),
		})
	}
	if err := sc.Err(); err != nil {
		logging.LogProgressScanError(url, err)
	}
}

func formatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "N/A"
	}
	return humanize.Bytes(uint64(bytesPerSec)) + "/s"
}

func formatBytes(n float64) string {
	if n <= 0 {
		return "N/A"
	}
	return humanize.Bytes(uint64(n))
}

func formatETA(seconds float64) string {
	if seconds <= 0 {
		return "N/A"
	}
	s := int64(seconds)
	h, m := s/3600, (s%3600)/60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s%60)
	}
	return fmt.Sprintf("%02d:%02d", m, s%60)
}

// extractFilename extracts the downloaded filename from yt-dlp output.
func extractFilename(output string) string {
	lines := strings.Split(output, "\n")
	var (
		mergedName      string
		alreadyDLName   string
		lastDestination string
	)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Prefer the explicit final filename from the merger stage, e.g.
		// [Merger] Merging formats into "Title-id.mp4"
		if strings.Contains(line, "Merging formats into") {
			start := strings.IndexAny(line, "'\"")
			if start != -1 {
				quote := line[start]
				rest := line[start+1:]
				if end := strings.IndexByte(rest, quote); end != -1 {
					mergedName = filepath.Base(rest[:end])
					continue
				}
			}
		}
		// [download] Title-id.mp4 has already been downloaded
		if strings.HasPrefix(line, "[download]") && strings.Contains(line, "has already been downloaded") {
			if i := strings.Index(line, "] "); i != -1 {
				rest := line[i+2:]
				if j := strings.Index(rest, " has already been downloaded"); j != -1 {
					alreadyDLName = filepath.Base(strings.TrimSpace(rest[:j]))
					continue
				}
			}
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				alreadyDLName = filepath.Base(parts[1])
				continue
			}
		}
		// Destination lines are a fallback; they may name intermediate
		// per-stream files (fXXX selections).
		if strings.Contains(line, "Destination:") {
			parts := strings.SplitN(line, "Destination:", 2)
			if len(parts) == 2 {
				lastDestination = filepath.Base(strings.TrimSpace(parts[1]))
				continue
			}
		}
	}
	switch {
	case mergedName != "":
		return mergedName
	case alreadyDLName != "":
		return alreadyDLName
	case lastDestination != "":
		return lastDestination
	default:
		return ""
	}
}

// scanCRorLF is like bufio.ScanLines but treats a bare '\r' as a line
// terminator as well. It also handles CRLF and strips a trailing CR.
func scanCRorLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			line := data[:i]
			if i > 0 && data[i-1] == '\r' {
				line = data[:i-1]
			}
			return i + 1, line, nil
		}
		if data[i] == '\r' {
			if i+1 < len(data) && data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		if len(data) > 0 && data[len(data)-1] == '\r' {
			return len(data), data[:len(data)-1], nil
		}
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailString returns the last at most n bytes from s.
func tailString(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[len(s)-n:])
}
