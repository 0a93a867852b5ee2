package worker

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)
	whitespaceRuns      = regexp.MustCompile(`\s+`)
)

const maxFilenameRunes = 100

// SanitizeFilename strips characters that are unsafe on common filesystems,
// collapses whitespace and caps the length, keeping the extension when the
// name has to be shortened. An empty result falls back to "downloaded_file".
func SanitizeFilename(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(name, "")
	s = strings.TrimSpace(whitespaceRuns.ReplaceAllString(s, " "))

	if r := []rune(s); len(r) > maxFilenameRunes {
		ext := filepath.Ext(s)
		keep := maxFilenameRunes - len([]rune(ext)) - 3
		if keep < 1 {
			keep = 1
		}
		base := []rune(strings.TrimSuffix(s, ext))
		if keep > len(base) {
			keep = len(base)
		}
		s = string(base[:keep]) + "..." + ext
	}

	if s == "" {
		return "downloaded_file"
	}
	return s
}

// ExtensionFor maps a format choice to the expected output file extension.
func ExtensionFor(format string) string {
	if format == "mp3" {
		return "mp3"
	}
	return "mp4"
}
