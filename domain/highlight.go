// domain/highlight.go
package domain

import (
	"fmt"
	"strings"
)

// HighlightSegment is one candidate clip extracted from a video's subtitles.
// Start and End are offsets in seconds from the start of the source video.
type HighlightSegment struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// Normalize trims the title and derives Duration from the time bounds.
func (h HighlightSegment) Normalize() HighlightSegment {
	h.Title = strings.TrimSpace(h.Title)
	h.Duration = h.End - h.Start
	return h
}

func (h HighlightSegment) Validate() error {
	if h.Start < 0 {
		return fmt.Errorf("%w: highlight %d starts before 0", ErrInvalidRequest, h.ID)
	}
	if h.End <= h.Start {
		return fmt.Errorf("%w: highlight %d ends at %.2fs before it starts at %.2fs", ErrInvalidRequest, h.ID, h.End, h.Start)
	}
	return nil
}

// ObeysValidLength reports whether the segment duration lies within [minSeconds, maxSeconds].
func (h HighlightSegment) ObeysValidLength(minSeconds, maxSeconds float64) bool {
	d := h.End - h.Start
	return d >= minSeconds && d <= maxSeconds
}

// SubtitleChunk is a window of subtitle text handed to the highlight extractor.
type SubtitleChunk struct {
	Index int
	Start float64
	End   float64
	Text  string
}
