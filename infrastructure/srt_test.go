package infrastructure

import (
	"strings"
	"testing"
	"time"
)

const sampleSRT = "\ufeff1\r\n00:00:01,000 --> 00:00:03,500\r\nHello there\r\n\r\n" +
	"2\n00:00:04,000 --> 00:00:06,000\nsecond line\nwraps here\n\n" +
	"3\nnot a timestamp\nignored\n\n" +
	"4\n00:10:00,250 --> 00:10:02,000\nnext window\n"

func TestParseSRT(t *testing.T) {
	cues, err := parseSRT(strings.NewReader(sampleSRT))
	if err != nil {
		t.Fatalf("parseSRT: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("cues = %d, want 3: %+v", len(cues), cues)
	}
	if cues[0].Start != 1 || cues[0].End != 3.5 || cues[0].Text != "Hello there" {
		t.Fatalf("cue[0] = %+v", cues[0])
	}
	if cues[1].Text != "second line wraps here" {
		t.Fatalf("cue[1].Text = %q", cues[1].Text)
	}
	if cues[2].Start != 600.25 {
		t.Fatalf("cue[2].Start = %v, want 600.25", cues[2].Start)
	}
}

func TestParseSRTTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"00:00:00,000", 0, true},
		{"01:02:03,500", 3723.5, true},
		{" 00:00:07.250 ", 7.25, true},
		{"00:00:01,000 X1:0", 1, true},
		{"1:2", 0, false},
		{"aa:00:00,000", 0, false},
	}
	for _, tt := range tests {
		got, err := parseSRTTimestamp(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseSRTTimestamp(%q) error = %v, want ok=%t", tt.in, err, tt.ok)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("parseSRTTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestChunkCues(t *testing.T) {
	cues, _ := parseSRT(strings.NewReader(sampleSRT))
	chunks := chunkCues(cues, 10*time.Minute)

	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].Index != 0 || chunks[0].Start != 1 || chunks[0].End != 6 {
		t.Fatalf("chunk[0] = %+v", chunks[0])
	}
	if !strings.Contains(chunks[0].Text, "[1.00 - 3.50] Hello there") {
		t.Fatalf("chunk[0].Text = %q", chunks[0].Text)
	}
	if chunks[1].Index != 1 || !strings.Contains(chunks[1].Text, "next window") {
		t.Fatalf("chunk[1] = %+v", chunks[1])
	}
}

func TestChunkCuesEmpty(t *testing.T) {
	if got := chunkCues(nil, time.Minute); len(got) != 0 {
		t.Fatalf("chunks = %v, want none", got)
	}
}
