// infrastructure/ytdlp.go
package infrastructure

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

// YtDlp wraps the yt-dlp binary. It downloads source media and fetches subtitles.
type YtDlp struct {
	Path         string
	SubtitlesDir string
	ChunkWindow  time.Duration

	runner   commandRunner
	glob     func(pattern string) ([]string, error)
	stat     func(name string) (os.FileInfo, error)
	mkdirAll func(path string, perm os.FileMode) error
	rename   func(oldpath, newpath string) error
	open     func(name string) (*os.File, error)
}

func NewYtDlp(path, subtitlesDir string, chunkWindow time.Duration) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDlp{
		Path:         path,
		SubtitlesDir: subtitlesDir,
		ChunkWindow:  chunkWindow,
		runner:       &execRunner{},
		glob:         filepath.Glob,
		stat:         os.Stat,
		mkdirAll:     os.MkdirAll,
		rename:       os.Rename,
		open:         os.Open,
	}
}

// Download fetches the best video and audio streams into destWithoutExt.<ext> and returns the final path.
func (y *YtDlp) Download(ctx context.Context, sourceURL, destWithoutExt string) (string, error) {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"-f", "bestvideo[height<=1080]+bestaudio/best",
		"-o", destWithoutExt + ".%(ext)s",
		"--print", "after_move:filepath",
		sourceURL,
	}
	log.Printf("INFO: downloading %s", sourceURL)
	res, err := y.runner.Run(ctx, y.Path, args...)
	if err != nil {
		return "", err
	}

	if printed := lastLine(res.Stdout); printed != "" {
		if _, err := y.stat(printed); err == nil {
			return printed, nil
		}
	}
	matches, _ := y.glob(destWithoutExt + ".*")
	for _, m := range matches {
		if domain.IsPartialDownload(m) {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("yt-dlp reported success but no file matches %s.*", destWithoutExt)
}

// Chunks returns the video's subtitles split into time windows. The SRT file is kept as
// subs_<video id>.srt and reused on later calls.
func (y *YtDlp) Chunks(ctx context.Context, sourceURL, videoID, language string, autoSubs bool) ([]domain.SubtitleChunk, error) {
	path, err := y.subtitleFile(ctx, sourceURL, videoID, language, autoSubs)
	if err != nil {
		return nil, err
	}
	f, err := y.open(path)
	if err != nil {
		return nil, fmt.Errorf("open subtitles: %w", err)
	}
	defer f.Close()

	cues, err := parseSRT(f)
	if err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("subtitles for %s are empty", videoID)
	}
	return chunkCues(cues, y.ChunkWindow), nil
}

func (y *YtDlp) subtitleFile(ctx context.Context, sourceURL, videoID, language string, autoSubs bool) (string, error) {
	final := filepath.Join(y.SubtitlesDir, "subs_"+videoID+".srt")
	if info, err := y.stat(final); err == nil && info.Size() > 0 {
		log.Printf("INFO: subtitles for %s exist, skipping download", videoID)
		return final, nil
	}
	if err := y.mkdirAll(y.SubtitlesDir, 0o755); err != nil {
		return "", fmt.Errorf("create subtitles directory: %w", err)
	}

	base := filepath.Join(y.SubtitlesDir, "subs_"+videoID)
	args := []string{
		"--no-playlist",
		"--skip-download",
		"--write-subs",
	}
	if autoSubs {
		args = append(args, "--write-auto-subs")
	}
	args = append(args,
		"--sub-langs", language,
		"--convert-subs", "srt",
		"-o", base+".%(ext)s",
		sourceURL,
	)
	log.Printf("INFO: downloading %s subtitles for %s", language, videoID)
	if _, err := y.runner.Run(ctx, y.Path, args...); err != nil {
		return "", fmt.Errorf("subtitle download failed: %w", err)
	}

	// yt-dlp names the file subs_<id>.<lang>.srt
	matches, _ := y.glob(base + ".*.srt")
	if len(matches) == 0 {
		return "", fmt.Errorf("no %s subtitles available for %s", language, videoID)
	}
	sort.Strings(matches)
	if err := y.rename(matches[0], final); err != nil {
		return "", fmt.Errorf("store subtitles: %w", err)
	}
	return final, nil
}

var _ domain.VideoDownloader = (*YtDlp)(nil)
var _ domain.SubtitleSource = (*YtDlp)(nil)
