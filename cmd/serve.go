package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitovidale/yapper-shorts-service/config"
	"github.com/vitovidale/yapper-shorts-service/domain"
	"github.com/vitovidale/yapper-shorts-service/infrastructure"
	"github.com/vitovidale/yapper-shorts-service/usecase"
)

var (
	servePort    string
	serveWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the clip generation workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}
		if cmd.Flags().Changed("workers") && serveWorkers > 0 {
			cfg.MaxVideoWorkers = serveWorkers
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", config.DefaultPort, "HTTP port (overrides PORT)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", config.DefaultMaxVideoWorkers, "Concurrent generation jobs (overrides MAX_VIDEO_WORKERS)")
}

type closer func() error

func serve(ctx context.Context, cfg *config.Config) error {
	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Printf("WARNING: shutdown: %v", err)
			}
		}
	}()

	probes := map[string]infrastructure.HealthProbe{}

	cache, cacheProbe, cacheClose, err := openHighlightCache(ctx, cfg)
	if err != nil {
		return err
	}
	probes["highlight_cache"] = cacheProbe
	if cacheClose != nil {
		closers = append(closers, cacheClose)
	}

	var notifier domain.JobNotifier = infrastructure.LogNotifier{}
	if cfg.RabbitMQURL != "" {
		rabbit, err := infrastructure.DialRabbitMQNotifier(ctx, cfg.RabbitMQURL, cfg.NotificationQueue)
		if err != nil {
			return err
		}
		notifier = rabbit
		probes["rabbitmq"] = rabbit.Ping
		closers = append(closers, rabbit.Close)
	}

	metrics := infrastructure.NewPrometheusMetrics()
	jobs := infrastructure.NewInMemoryJobRepository()
	ytdlp := infrastructure.NewYtDlp(cfg.YtDlpPath, cfg.SubtitlesDir, cfg.SubtitleChunk)
	renderer := infrastructure.NewFFmpegClipRenderer(cfg.FFmpegPath, cfg.GameplaysDir)

	scheduler := usecase.NewScheduler(jobs, cfg.MaxVideoWorkers, metrics)
	worker := usecase.NewVideoGenerationWorker(jobs, ytdlp, renderer, notifier, metrics, cfg.InputDir, cfg.OutputDir)
	worker.CollaboratorTimeout = cfg.CollaboratorTimeout
	scheduler.Start(ctx, worker)
	defer scheduler.Stop()

	handlers := infrastructure.NewVideoHandlers(
		&usecase.ExtractHighlightsUseCase{
			Cache:      cache,
			Subtitles:  ytdlp,
			Extractor:  infrastructure.NewLLMHighlightExtractor(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel),
			Metrics:    metrics,
			MaxWorkers: cfg.MaxHighlightWorkers,
			MinSeconds: cfg.HighlightMinSeconds,
			MaxSeconds: cfg.HighlightMaxSeconds,
		},
		usecase.NewGenerateVideosUseCase(scheduler),
		&usecase.JobQueryUseCase{Jobs: jobs, Scheduler: scheduler},
		usecase.NewStatusPublisher(jobs, cfg.StreamInterval),
		cfg.OutputDir,
	)
	handlers.Probes = probes

	router := infrastructure.NewRouter(handlers, infrastructure.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Metrics:        metrics.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("INFO: Yapper API listening on :%s with %d video workers", cfg.Port, cfg.MaxVideoWorkers)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("INFO: shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARNING: http shutdown: %v", err)
	}
	return nil
}

func openHighlightCache(ctx context.Context, cfg *config.Config) (domain.HighlightCache, infrastructure.HealthProbe, closer, error) {
	switch cfg.HighlightCacheBackend {
	case "redis":
		client := infrastructure.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if client == nil {
			return nil, nil, nil, errors.New("HIGHLIGHT_CACHE_BACKEND=redis requires REDIS_ADDR")
		}
		cache := infrastructure.NewRedisHighlightCache(client, 0)
		if err := cache.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		log.Printf("INFO: caching highlights in redis at %s", cfg.RedisAddr)
		return cache, cache.Ping, client.Close, nil
	case "postgres":
		cache, err := infrastructure.OpenSQLHighlightCache(ctx, infrastructure.DriverPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return cache, cache.Ping, cache.Close, nil
	case "sqlite":
		cache, err := infrastructure.OpenSQLHighlightCache(ctx, infrastructure.DriverSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return cache, cache.Ping, cache.Close, nil
	default:
		cache := infrastructure.NewFileHighlightCache(cfg.HighlightCacheDir)
		log.Printf("INFO: caching highlights in %s", cfg.HighlightCacheDir)
		return cache, cache.Ping, nil, nil
	}
}
