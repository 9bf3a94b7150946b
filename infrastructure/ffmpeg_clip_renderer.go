// infrastructure/ffmpeg_clip_renderer.go
package infrastructure

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

const (
	shortWidth  = 1080
	shortHeight = 1920
)

var gameplayExtensions = map[string]bool{".mp4": true, ".webm": true, ".mkv": true, ".mov": true}

// FFmpegClipRenderer cuts one highlight into a vertical short. When gameplay footage is
// available the clip is stacked on top of it, otherwise the source is center-cropped to 9:16.
type FFmpegClipRenderer struct {
	Path         string
	GameplaysDir string

	runner  commandRunner
	readDir func(name string) ([]os.DirEntry, error)
}

func NewFFmpegClipRenderer(path, gameplaysDir string) *FFmpegClipRenderer {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegClipRenderer{
		Path:         path,
		GameplaysDir: gameplaysDir,
		runner:       &execRunner{},
		readDir:      os.ReadDir,
	}
}

// Render writes out_<segment id>.mp4 into outputDir.
func (r *FFmpegClipRenderer) Render(ctx context.Context, sourcePath, outputDir string, segment domain.HighlightSegment) (string, error) {
	segment = segment.Normalize()
	if segment.Duration <= 0 {
		return "", fmt.Errorf("highlight %d has no duration", segment.ID)
	}
	output := filepath.Join(outputDir, fmt.Sprintf("out_%d.mp4", segment.ID))
	args := r.buildArgs(sourcePath, output, segment, r.pickGameplay(segment.ID))

	if _, err := r.runner.Run(ctx, r.Path, args...); err != nil {
		return "", fmt.Errorf("render highlight %d: %w", segment.ID, err)
	}
	return output, nil
}

func (r *FFmpegClipRenderer) buildArgs(sourcePath, output string, segment domain.HighlightSegment, gameplay string) []string {
	start := formatSeconds(segment.Start)
	duration := formatSeconds(segment.Duration)

	args := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-ss", start, "-t", duration, "-i", sourcePath,
	}
	half := shortHeight / 2
	if gameplay != "" {
		args = append(args,
			"-stream_loop", "-1", "-t", duration, "-i", gameplay,
			"-filter_complex", fmt.Sprintf(
				"[0:v]scale=%[1]d:%[2]d:force_original_aspect_ratio=increase,crop=%[1]d:%[2]d[top];"+
					"[1:v]scale=%[1]d:%[2]d:force_original_aspect_ratio=increase,crop=%[1]d:%[2]d[bottom];"+
					"[top][bottom]vstack=inputs=2[v]", shortWidth, half),
			"-map", "[v]", "-map", "0:a?",
		)
	} else {
		args = append(args,
			"-vf", fmt.Sprintf("crop=ih*9/16:ih,scale=%d:%d", shortWidth, shortHeight),
			"-map", "0:v:0", "-map", "0:a?",
		)
	}
	return append(args,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		"-shortest",
		output,
	)
}

// pickGameplay rotates through the gameplay library by highlight id so consecutive shorts differ.
func (r *FFmpegClipRenderer) pickGameplay(id int) string {
	if r.GameplaysDir == "" {
		return ""
	}
	entries, err := r.readDir(r.GameplaysDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARNING: cannot list gameplays in %s: %v", r.GameplaysDir, err)
		}
		return ""
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !gameplayExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(r.GameplaysDir, e.Name()))
	}
	if len(files) == 0 {
		return ""
	}
	sort.Strings(files)
	if id < 0 {
		id = -id
	}
	return files[id%len(files)]
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

var _ domain.ClipRenderer = (*FFmpegClipRenderer)(nil)
