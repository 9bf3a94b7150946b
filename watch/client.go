// watch/client.go
package watch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

// ErrJobNotFound is returned when the server does not know the job.
var ErrJobNotFound = errors.New("job not found")

// Update is one decoded event from the status stream.
type Update struct {
	Job   *domain.Job
	Error string
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{}}
}

// Stream reads GET /generate/<id>/stream and sends every event to out until the server
// closes the stream or ctx ends. out is closed on return.
func (c *Client) Stream(ctx context.Context, jobID string, out chan<- Update) error {
	defer close(out)

	endpoint := fmt.Sprintf("%s/generate/%s/stream", c.BaseURL, url.PathEscape(jobID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrJobNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("stream request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return readEvents(ctx, resp.Body, out)
}

// readEvents parses SSE data lines. Multi-line data fields are joined with newlines.
func readEvents(ctx context.Context, r io.Reader, out chan<- Update) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var data []string
	dispatch := func() error {
		if len(data) == 0 {
			return nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]

		update, err := decodeUpdate(payload)
		if err != nil {
			return err
		}
		select {
		case out <- update:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return dispatch()
}

func decodeUpdate(payload string) (Update, error) {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return Update{}, fmt.Errorf("decode event: %w", err)
	}
	if envelope.Error != "" {
		return Update{Error: envelope.Error}, nil
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return Update{}, fmt.Errorf("decode job: %w", err)
	}
	return Update{Job: &job}, nil
}
