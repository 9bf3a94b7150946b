// infrastructure/gin_handlers.go
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/vitovidale/yapper-shorts-service/domain"
	"github.com/vitovidale/yapper-shorts-service/usecase"
)

// HealthProbe checks one optional backend for the health endpoint.
type HealthProbe func(ctx context.Context) error

type VideoHandlers struct {
	ExtractHighlightsUC *usecase.ExtractHighlightsUseCase
	GenerateVideosUC    *usecase.GenerateVideosUseCase
	JobQueryUC          *usecase.JobQueryUseCase
	StatusPublisher     *usecase.StatusPublisher
	OutputDir           string
	Probes              map[string]HealthProbe
}

func NewVideoHandlers(extractUC *usecase.ExtractHighlightsUseCase, generateUC *usecase.GenerateVideosUseCase, queryUC *usecase.JobQueryUseCase, publisher *usecase.StatusPublisher, outputDir string) *VideoHandlers {
	return &VideoHandlers{
		ExtractHighlightsUC: extractUC,
		GenerateVideosUC:    generateUC,
		JobQueryUC:          queryUC,
		StatusPublisher:     publisher,
		OutputDir:           outputDir,
		Probes:              map[string]HealthProbe{},
	}
}

type highlightsRequest struct {
	VideoURL         string `json:"video_url" binding:"required"`
	SubtitleLanguage string `json:"subtitle_language"`
	NoAutoSubs       bool   `json:"no_auto_subs"`
}

type generateRequest struct {
	VideoURL   string                    `json:"video_url" binding:"required"`
	Highlights []domain.HighlightSegment `json:"highlights"`
}

func (h *VideoHandlers) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Yapper Video Processing API is running!"})
}

func (h *VideoHandlers) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	body := gin.H{}
	up := true
	for name, probe := range h.Probes {
		if err := probe(ctx); err != nil {
			body[name] = fmt.Sprintf("error: %v", err)
			up = false
			continue
		}
		body[name] = "connected"
	}
	if !up {
		body["status"] = "DOWN"
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	body["status"] = "UP"
	c.JSON(http.StatusOK, body)
}

func (h *VideoHandlers) ExtractHighlightsHandler(c *gin.Context) {
	var req highlightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	output, err := h.ExtractHighlightsUC.Execute(c.Request.Context(), usecase.ExtractHighlightsInput{
		VideoURL:         req.VideoURL,
		SubtitleLanguage: req.SubtitleLanguage,
		NoAutoSubs:       req.NoAutoSubs,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidVideoURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("ERROR: extracting highlights for %s: %v", req.VideoURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to extract highlights: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"video_id":    output.VideoID,
		"highlights":  output.Highlights,
		"total_count": output.TotalCount,
	})
}

func (h *VideoHandlers) GenerateVideosHandler(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	output, err := h.GenerateVideosUC.Execute(usecase.GenerateVideosInput{
		VideoURL:   req.VideoURL,
		Highlights: req.Highlights,
	})
	if err != nil {
		respondError(c, err, "Failed to start video generation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": output.JobID, "status": output.Status, "message": output.Message})
}

func (h *VideoHandlers) JobStatusHandler(c *gin.Context) {
	job, err := h.JobQueryUC.Get(c.Param("job_id"))
	if err != nil {
		respondError(c, err, "Failed to load job")
		return
	}
	c.JSON(http.StatusOK, job)
}

// JobStreamHandler pushes a job snapshot as an SSE data event every tick until the job ends.
func (h *VideoHandlers) JobStreamHandler(c *gin.Context) {
	events, err := h.StatusPublisher.Stream(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, err, "Failed to stream job")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for ev := range events {
		var data any = ev.Job
		if ev.Error != "" {
			data = gin.H{"error": ev.Error}
		}
		c.Render(-1, sse.Event{Data: data})
		c.Writer.Flush()
	}
}

func (h *VideoHandlers) ListJobsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.JobQueryUC.List())
}

func (h *VideoHandlers) QueueStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.JobQueryUC.QueueStatus())
}

func (h *VideoHandlers) DeleteJobHandler(c *gin.Context) {
	if err := h.JobQueryUC.Delete(c.Param("job_id")); err != nil {
		respondError(c, err, "Failed to delete job")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted successfully"})
}

func (h *VideoHandlers) ServeFileHandler(c *gin.Context) {
	path, ok := h.resolveArtifact(c)
	if !ok {
		return
	}
	c.File(path)
}

func (h *VideoHandlers) DownloadFileHandler(c *gin.Context) {
	path, ok := h.resolveArtifact(c)
	if !ok {
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// resolveArtifact maps the wildcard path onto a file under the output root. The path may be
// given as returned in finished_videos (relative to the working directory) or relative to the
// output root itself. Anything resolving outside the root is refused before existence is checked.
func (h *VideoHandlers) resolveArtifact(c *gin.Context) (string, bool) {
	root, err := filepath.Abs(h.OutputDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Output directory unavailable"})
		return "", false
	}

	requested := strings.TrimPrefix(c.Param("path"), "/")
	if requested == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return "", false
	}

	candidates := []string{filepath.Clean("/" + requested), filepath.Join(root, requested)}
	if abs, err := filepath.Abs(requested); err == nil {
		candidates = append(candidates, abs)
	}

	allowed := false
	for _, p := range candidates {
		if !withinRoot(root, p) {
			continue
		}
		allowed = true
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return "", false
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
	return "", false
}

func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, domain.ErrInvalidVideoURL), errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", fallback, err)})
	}
}
