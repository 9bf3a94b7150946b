// usecase/extract_highlights.go
package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

const (
	DefaultMaxHighlightWorkers = 10
	DefaultMinHighlightSeconds = 15
	DefaultMaxHighlightSeconds = 90
)

type ExtractHighlightsInput struct {
	VideoURL         string
	SubtitleLanguage string
	NoAutoSubs       bool
}

type ExtractHighlightsOutput struct {
	VideoID    string
	Highlights []domain.HighlightSegment
	TotalCount int
	Cached     bool
}

// ExtractHighlightsUseCase turns a video's subtitles into candidate highlight segments.
// Results are cached per video id; a cache hit skips subtitle download and extraction.
type ExtractHighlightsUseCase struct {
	Cache      domain.HighlightCache
	Subtitles  domain.SubtitleSource
	Extractor  domain.HighlightExtractor
	Metrics    MetricsRecorder
	MaxWorkers int
	MinSeconds float64
	MaxSeconds float64
}

func (uc *ExtractHighlightsUseCase) Execute(ctx context.Context, input ExtractHighlightsInput) (*ExtractHighlightsOutput, error) {
	videoID, err := domain.VideoIDFromURL(input.VideoURL)
	if err != nil {
		return nil, err
	}
	language := input.SubtitleLanguage
	if language == "" {
		language = "en"
	}
	metrics := uc.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}

	if uc.Cache != nil {
		cached, ok, err := uc.Cache.Load(ctx, videoID)
		switch {
		case err != nil:
			log.Printf("WARNING: failed to load cached highlights for %s: %v", videoID, err)
		case ok:
			metrics.HighlightCacheLookup(true)
			log.Printf("INFO: returning %d cached highlights for %s", len(cached), videoID)
			return &ExtractHighlightsOutput{VideoID: videoID, Highlights: cached, TotalCount: len(cached), Cached: true}, nil
		}
		metrics.HighlightCacheLookup(false)
	}

	chunks, err := uc.Subtitles.Chunks(ctx, input.VideoURL, videoID, language, !input.NoAutoSubs)
	if err != nil {
		return nil, fmt.Errorf("failed to load subtitles: %w", err)
	}
	log.Printf("INFO: extracting highlights for %s from %d subtitle chunks", videoID, len(chunks))

	perChunk, err := uc.extractAll(ctx, chunks)
	if err != nil {
		return nil, err
	}

	minSeconds, maxSeconds := uc.MinSeconds, uc.MaxSeconds
	if maxSeconds <= 0 {
		minSeconds, maxSeconds = DefaultMinHighlightSeconds, DefaultMaxHighlightSeconds
	}
	highlights := make([]domain.HighlightSegment, 0)
	for _, segments := range perChunk {
		for _, s := range segments {
			if !s.ObeysValidLength(minSeconds, maxSeconds) {
				continue
			}
			s = s.Normalize()
			s.ID = len(highlights) + 1
			highlights = append(highlights, s)
		}
	}
	log.Printf("INFO: found %d valid highlights for %s", len(highlights), videoID)

	if uc.Cache != nil {
		if err := uc.Cache.Save(ctx, videoID, highlights); err != nil {
			log.Printf("WARNING: failed to cache highlights for %s: %v", videoID, err)
		}
	}

	return &ExtractHighlightsOutput{VideoID: videoID, Highlights: highlights, TotalCount: len(highlights)}, nil
}

// extractAll runs the extractor on every chunk with bounded parallelism and keeps chunk order.
func (uc *ExtractHighlightsUseCase) extractAll(ctx context.Context, chunks []domain.SubtitleChunk) ([][]domain.HighlightSegment, error) {
	limit := uc.MaxWorkers
	if limit <= 0 {
		limit = DefaultMaxHighlightWorkers
	}
	if limit > len(chunks) {
		limit = len(chunks)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]domain.HighlightSegment, len(chunks))
	limiter := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for i, chunk := range chunks {
		wg.Add(1)
		limiter <- struct{}{}
		go func(i int, chunk domain.SubtitleChunk) {
			defer func() {
				<-limiter
				wg.Done()
			}()
			segments, err := uc.Extractor.Extract(ctx, chunk)
			if err != nil {
				once.Do(func() {
					firstErr = fmt.Errorf("highlight extraction failed on chunk %d: %w", chunk.Index, err)
					cancel()
				})
				return
			}
			results[i] = segments
		}(i, chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
