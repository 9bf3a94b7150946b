// domain/media.go
package domain

import (
	"path/filepath"
	"regexp"
	"strings"
)

// formatFragment matches yt-dlp's per-format files left before a merge, e.g. clip_x.f137.mp4.
var formatFragment = regexp.MustCompile(`\.f\d+\.[^.]+$`)

// IsPartialDownload reports whether name is an unfinished or intermediate yt-dlp artifact
// rather than a playable source file.
func IsPartialDownload(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	switch filepath.Ext(base) {
	case ".part", ".ytdl", ".temp":
		return true
	}
	return strings.Contains(base, ".part-") || formatFragment.MatchString(base)
}
