// infrastructure/srt.go
package infrastructure

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

// subtitleCue is one timed block of an SRT file.
type subtitleCue struct {
	Start float64
	End   float64
	Text  string
}

// parseSRT reads SRT cues. Malformed blocks are skipped rather than failing the whole file.
func parseSRT(r io.Reader) ([]subtitleCue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cues []subtitleCue
	var block []string
	flush := func() {
		if cue, ok := parseCueBlock(block); ok {
			cues = append(cues, cue)
		}
		block = block[:0]
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimPrefix(line, "\ufeff")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}
	return cues, nil
}

func parseCueBlock(lines []string) (subtitleCue, bool) {
	for i, line := range lines {
		if !strings.Contains(line, "-->") {
			continue
		}
		parts := strings.SplitN(line, "-->", 2)
		start, err1 := parseSRTTimestamp(parts[0])
		end, err2 := parseSRTTimestamp(parts[1])
		if err1 != nil || err2 != nil {
			return subtitleCue{}, false
		}
		text := strings.TrimSpace(strings.Join(lines[i+1:], " "))
		if text == "" {
			return subtitleCue{}, false
		}
		return subtitleCue{Start: start, End: end, Text: text}, true
	}
	return subtitleCue{}, false
}

// parseSRTTimestamp parses "HH:MM:SS,mmm" (a "." separator is also accepted) into seconds.
func parseSRTTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	s = strings.Replace(s, ",", ".", 1)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return float64(h*3600+m*60) + sec, nil
}

// chunkCues groups cues into consecutive windows of the given length, keyed on cue start.
// Empty windows produce no chunk.
func chunkCues(cues []subtitleCue, window time.Duration) []domain.SubtitleChunk {
	size := window.Seconds()
	if size <= 0 {
		size = 600
	}

	var chunks []domain.SubtitleChunk
	var current *domain.SubtitleChunk
	var text strings.Builder
	currentWindow := -1

	closeChunk := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(text.String())
		chunks = append(chunks, *current)
		current = nil
		text.Reset()
	}

	for _, cue := range cues {
		w := int(cue.Start / size)
		if w != currentWindow {
			closeChunk()
			currentWindow = w
			current = &domain.SubtitleChunk{Index: len(chunks), Start: cue.Start}
		}
		current.End = cue.End
		fmt.Fprintf(&text, "[%.2f - %.2f] %s\n", cue.Start, cue.End, cue.Text)
	}
	closeChunk()
	return chunks
}
