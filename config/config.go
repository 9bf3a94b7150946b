// config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort                = "5001"
	DefaultMaxVideoWorkers     = 4
	DefaultMaxHighlightWorkers = 10
	DefaultInputDir            = "./input"
	DefaultOutputDir           = "./output"
	DefaultGameplaysDir        = "./gameplays"
	DefaultSubtitlesDir        = "./subtitles"
	DefaultCacheBackend        = "file"
	DefaultCacheDir            = "./cache"
	DefaultSQLitePath          = "./yapper.db"
	DefaultNotificationQueue   = "video_generation_events"
	DefaultStreamInterval      = time.Second
	DefaultAllowedOrigins      = "*"
	DefaultRateLimitBurst      = 10
	DefaultYtDlpPath           = "yt-dlp"
	DefaultFFmpegPath          = "ffmpeg"
	DefaultLLMBaseURL          = "https://api.openai.com/v1"
	DefaultLLMModel            = "gpt-4o-mini"
	DefaultHighlightMinSeconds = 15
	DefaultHighlightMaxSeconds = 90
	DefaultSubtitleChunk       = 600 * time.Second
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port string

	MaxVideoWorkers     int
	MaxHighlightWorkers int

	InputDir     string
	OutputDir    string
	GameplaysDir string
	SubtitlesDir string

	// HighlightCacheBackend is one of file, redis, postgres or sqlite.
	HighlightCacheBackend string
	HighlightCacheDir     string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	DatabaseURL           string
	SQLitePath            string

	// RabbitMQURL enables lifecycle notifications when set.
	RabbitMQURL       string
	NotificationQueue string

	StreamInterval      time.Duration
	CollaboratorTimeout time.Duration

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	YtDlpPath  string
	FFmpegPath string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	HighlightMinSeconds float64
	HighlightMaxSeconds float64
	SubtitleChunk       time.Duration
}

// Load reads the configuration from the process environment.
func Load() *Config {
	return load(os.Getenv)
}

func load(getenv func(string) string) *Config {
	e := env{getenv: getenv}
	cfg := &Config{
		Port:                  e.str("PORT", DefaultPort),
		MaxVideoWorkers:       e.positiveInt("MAX_VIDEO_WORKERS", DefaultMaxVideoWorkers),
		MaxHighlightWorkers:   e.positiveInt("MAX_HIGHLIGHT_WORKERS", DefaultMaxHighlightWorkers),
		InputDir:              e.str("INPUT_DIR", DefaultInputDir),
		OutputDir:             e.str("OUTPUT_DIR", DefaultOutputDir),
		GameplaysDir:          e.str("GAMEPLAYS_DIR", DefaultGameplaysDir),
		SubtitlesDir:          e.str("SUBTITLES_DIR", DefaultSubtitlesDir),
		HighlightCacheBackend: strings.ToLower(e.str("HIGHLIGHT_CACHE_BACKEND", DefaultCacheBackend)),
		HighlightCacheDir:     e.str("HIGHLIGHT_CACHE_DIR", DefaultCacheDir),
		RedisAddr:             e.str("REDIS_ADDR", ""),
		RedisPassword:         e.str("REDIS_PASSWORD", ""),
		RedisDB:               e.nonNegativeInt("REDIS_DB", 0),
		DatabaseURL:           e.str("DATABASE_URL", ""),
		SQLitePath:            e.str("SQLITE_PATH", DefaultSQLitePath),
		RabbitMQURL:           e.str("RABBITMQ_URL", ""),
		NotificationQueue:     e.str("NOTIFICATION_QUEUE", DefaultNotificationQueue),
		StreamInterval:        e.duration("STREAM_INTERVAL", DefaultStreamInterval),
		CollaboratorTimeout:   e.duration("COLLABORATOR_TIMEOUT", 0),
		AllowedOrigins:        splitAndClean(e.str("ALLOWED_ORIGINS", DefaultAllowedOrigins)),
		RateLimitRPS:          e.float("RATE_LIMIT_RPS", 0),
		RateLimitBurst:        e.positiveInt("RATE_LIMIT_BURST", DefaultRateLimitBurst),
		YtDlpPath:             e.str("YTDLP_PATH", DefaultYtDlpPath),
		FFmpegPath:            e.str("FFMPEG_PATH", DefaultFFmpegPath),
		LLMBaseURL:            strings.TrimRight(e.str("LLM_BASE_URL", DefaultLLMBaseURL), "/"),
		LLMAPIKey:             e.str("LLM_API_KEY", ""),
		LLMModel:              e.str("LLM_MODEL", DefaultLLMModel),
		HighlightMinSeconds:   e.float("HIGHLIGHT_MIN_SECONDS", DefaultHighlightMinSeconds),
		HighlightMaxSeconds:   e.float("HIGHLIGHT_MAX_SECONDS", DefaultHighlightMaxSeconds),
		SubtitleChunk:         e.duration("SUBTITLE_CHUNK_SECONDS", DefaultSubtitleChunk),
	}

	if cfg.HighlightMaxSeconds < cfg.HighlightMinSeconds {
		log.Printf("WARNING: HIGHLIGHT_MAX_SECONDS (%.0f) is below HIGHLIGHT_MIN_SECONDS (%.0f), using defaults",
			cfg.HighlightMaxSeconds, cfg.HighlightMinSeconds)
		cfg.HighlightMinSeconds = DefaultHighlightMinSeconds
		cfg.HighlightMaxSeconds = DefaultHighlightMaxSeconds
	}
	switch cfg.HighlightCacheBackend {
	case "file", "redis", "postgres", "sqlite":
	default:
		log.Printf("WARNING: unknown HIGHLIGHT_CACHE_BACKEND %q, using %s", cfg.HighlightCacheBackend, DefaultCacheBackend)
		cfg.HighlightCacheBackend = DefaultCacheBackend
	}
	if cfg.LLMAPIKey == "" {
		log.Println("WARNING: LLM_API_KEY not set. Highlight extraction requests will fail until it is configured.")
	}
	return cfg
}

type env struct {
	getenv func(string) string
}

func (e env) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e env) positiveInt(key string, def int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("INFO: %s=%q is invalid, using default: %d", key, v, def)
		return def
	}
	return n
}

func (e env) nonNegativeInt(key string, def int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("INFO: %s=%q is invalid, using default: %d", key, v, def)
		return def
	}
	return n
}

func (e env) float(key string, def float64) float64 {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		log.Printf("INFO: %s=%q is invalid, using default: %v", key, v, def)
		return def
	}
	return f
}

// duration accepts Go duration strings ("1500ms") or a bare number of seconds.
func (e env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	log.Printf("INFO: %s=%q is invalid, using default: %s", key, v, def)
	return def
}

func splitAndClean(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
