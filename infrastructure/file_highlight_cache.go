// infrastructure/file_highlight_cache.go
package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

// FileHighlightCache keeps one highlights_<video id>.json file per video.
type FileHighlightCache struct {
	Dir string
}

func NewFileHighlightCache(dir string) *FileHighlightCache {
	return &FileHighlightCache{Dir: dir}
}

func (c *FileHighlightCache) path(videoID string) string {
	return filepath.Join(c.Dir, "highlights_"+videoID+".json")
}

func (c *FileHighlightCache) Load(ctx context.Context, videoID string) ([]domain.HighlightSegment, bool, error) {
	data, err := os.ReadFile(c.path(videoID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached highlights: %w", err)
	}
	var highlights []domain.HighlightSegment
	if err := json.Unmarshal(data, &highlights); err != nil {
		return nil, false, fmt.Errorf("parse cached highlights %s: %w", c.path(videoID), err)
	}
	return highlights, true, nil
}

func (c *FileHighlightCache) Save(ctx context.Context, videoID string, highlights []domain.HighlightSegment) error {
	if highlights == nil {
		highlights = []domain.HighlightSegment{}
	}
	data, err := json.MarshalIndent(highlights, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal highlights: %w", err)
	}
	return writeFileAtomic(c.path(videoID), append(data, '\n'))
}

// Ping reports whether the cache directory is usable.
func (c *FileHighlightCache) Ping(ctx context.Context) error {
	return os.MkdirAll(c.Dir, 0o755)
}

// writeFileAtomic writes through a temp file and a rename so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".yapper-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

var _ domain.HighlightCache = (*FileHighlightCache)(nil)
