// infrastructure/llm_highlight_extractor.go
package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

const highlightSystemPrompt = `You find the most engaging moments in a video transcript for short-form vertical clips.
Each transcript line is "[start - end] text" with times in seconds from the start of the video.
Return JSON of the form {"highlights":[{"title":"...","start":0.0,"end":0.0}]}.
Every highlight must be a self-contained moment between 15 and 90 seconds long whose start and end
come from the transcript timestamps. Titles are short and catchy. Return an empty list when nothing stands out.`

// LLMHighlightExtractor asks an OpenAI-compatible chat completions endpoint for highlights.
type LLMHighlightExtractor struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewLLMHighlightExtractor(baseURL, apiKey, model string) *LLMHighlightExtractor {
	return &LLMHighlightExtractor{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type highlightPayload struct {
	Highlights []struct {
		Title string  `json:"title"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"highlights"`
}

func (e *LLMHighlightExtractor) Extract(ctx context.Context, chunk domain.SubtitleChunk) ([]domain.HighlightSegment, error) {
	if e.APIKey == "" {
		return nil, errors.New("LLM_API_KEY is not configured")
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return nil, nil
	}

	body, err := json.Marshal(chatRequest{
		Model: e.Model,
		Messages: []chatMessage{
			{Role: "system", Content: highlightSystemPrompt},
			{Role: "user", Content: chunk.Text},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("highlight request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read highlight response: %w", err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode highlight response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("highlight request rejected: %s", msg)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("highlight response has no choices")
	}

	return decodeHighlights(parsed.Choices[0].Message.Content, chunk)
}

// decodeHighlights parses the model output and drops segments outside the chunk's time range.
func decodeHighlights(content string, chunk domain.SubtitleChunk) ([]domain.HighlightSegment, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var payload highlightPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("decode highlights: %w", err)
	}

	segments := make([]domain.HighlightSegment, 0, len(payload.Highlights))
	for _, h := range payload.Highlights {
		seg := domain.HighlightSegment{Title: h.Title, Start: h.Start, End: h.End}.Normalize()
		if seg.Validate() != nil {
			continue
		}
		if seg.Start < chunk.Start-1 || seg.End > chunk.End+1 {
			continue
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

var _ domain.HighlightExtractor = (*LLMHighlightExtractor)(nil)
