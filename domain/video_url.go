// domain/video_url.go
package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// VideoIDFromURL extracts the YouTube video id from watch, youtu.be and shorts URLs.
func VideoIDFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidVideoURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidVideoURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %s is not an http(s) url", ErrInvalidVideoURL, raw)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case strings.HasPrefix(u.Path, "/shorts/"):
		id = strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/")
	default:
		if u.RawQuery == "" {
			return "", fmt.Errorf("%w: %s doesn't have a query param", ErrInvalidVideoURL, raw)
		}
		id = u.Query().Get("v")
	}

	if id == "" {
		return "", fmt.Errorf("%w: no video id found in %s", ErrInvalidVideoURL, raw)
	}
	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: malformed video id %q", ErrInvalidVideoURL, id)
	}
	return id, nil
}
