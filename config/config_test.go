package config

import (
	"testing"
	"time"
)

func fakeEnv(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg := load(fakeEnv(nil))

	if cfg.Port != DefaultPort {
		t.Fatalf("Port = %q, want %q", cfg.Port, DefaultPort)
	}
	if cfg.MaxVideoWorkers != 4 || cfg.MaxHighlightWorkers != 10 {
		t.Fatalf("workers = %d/%d, want 4/10", cfg.MaxVideoWorkers, cfg.MaxHighlightWorkers)
	}
	if cfg.HighlightCacheBackend != "file" {
		t.Fatalf("HighlightCacheBackend = %q, want file", cfg.HighlightCacheBackend)
	}
	if cfg.StreamInterval != time.Second || cfg.CollaboratorTimeout != 0 {
		t.Fatalf("intervals = %s/%s", cfg.StreamInterval, cfg.CollaboratorTimeout)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
	}
	if cfg.HighlightMinSeconds != 15 || cfg.HighlightMaxSeconds != 90 {
		t.Fatalf("length window = [%v, %v], want [15, 90]", cfg.HighlightMinSeconds, cfg.HighlightMaxSeconds)
	}
	if cfg.SubtitleChunk != 10*time.Minute {
		t.Fatalf("SubtitleChunk = %s, want 10m", cfg.SubtitleChunk)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg := load(fakeEnv(map[string]string{
		"PORT":                    "8080",
		"MAX_VIDEO_WORKERS":       "2",
		"HIGHLIGHT_CACHE_BACKEND": "Redis",
		"REDIS_DB":                "3",
		"STREAM_INTERVAL":         "250ms",
		"COLLABORATOR_TIMEOUT":    "90",
		"ALLOWED_ORIGINS":         "https://a.example, https://b.example,",
		"RATE_LIMIT_RPS":          "2.5",
		"LLM_BASE_URL":            "http://localhost:11434/v1/",
	}))

	if cfg.Port != "8080" || cfg.MaxVideoWorkers != 2 || cfg.RedisDB != 3 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.HighlightCacheBackend != "redis" {
		t.Fatalf("HighlightCacheBackend = %q, want redis", cfg.HighlightCacheBackend)
	}
	if cfg.StreamInterval != 250*time.Millisecond {
		t.Fatalf("StreamInterval = %s, want 250ms", cfg.StreamInterval)
	}
	if cfg.CollaboratorTimeout != 90*time.Second {
		t.Fatalf("CollaboratorTimeout = %s, want 90s", cfg.CollaboratorTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("RateLimitRPS = %v, want 2.5", cfg.RateLimitRPS)
	}
	if cfg.LLMBaseURL != "http://localhost:11434/v1" {
		t.Fatalf("LLMBaseURL = %q", cfg.LLMBaseURL)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	cfg := load(fakeEnv(map[string]string{
		"MAX_VIDEO_WORKERS":       "zero",
		"MAX_HIGHLIGHT_WORKERS":   "-1",
		"HIGHLIGHT_CACHE_BACKEND": "memcached",
		"STREAM_INTERVAL":         "soon",
		"HIGHLIGHT_MIN_SECONDS":   "120",
		"HIGHLIGHT_MAX_SECONDS":   "30",
	}))

	if cfg.MaxVideoWorkers != DefaultMaxVideoWorkers || cfg.MaxHighlightWorkers != DefaultMaxHighlightWorkers {
		t.Fatalf("workers = %d/%d", cfg.MaxVideoWorkers, cfg.MaxHighlightWorkers)
	}
	if cfg.HighlightCacheBackend != DefaultCacheBackend {
		t.Fatalf("HighlightCacheBackend = %q", cfg.HighlightCacheBackend)
	}
	if cfg.StreamInterval != DefaultStreamInterval {
		t.Fatalf("StreamInterval = %s", cfg.StreamInterval)
	}
	if cfg.HighlightMinSeconds != DefaultHighlightMinSeconds || cfg.HighlightMaxSeconds != DefaultHighlightMaxSeconds {
		t.Fatalf("length window = [%v, %v]", cfg.HighlightMinSeconds, cfg.HighlightMaxSeconds)
	}
}
