package ics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	appLog "eventcal/internal/log"
)

var ErrEmptyURL = errors.New("source URL is empty")

// Fetcher downloads calendar files (iCalendar or JSON exports) over HTTP.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a Fetcher. A zero timeout uses 15s.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "text/calendar, application/json;q=0.9, */*;q=0.5"),
	}
}

// IsRemote reports whether src names an http(s) or webcal resource rather
// than a file.
func IsRemote(src string) bool {
	for _, p := range []string{"http://", "https://", "webcal://"} {
		if strings.HasPrefix(src, p) {
			return true
		}
	}
	return false
}

// Fetch returns the body at url. Any non-2xx status is an error.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	if strings.HasPrefix(url, "webcal://") {
		url = "https://" + strings.TrimPrefix(url, "webcal://")
	}

	appLog.Info("calendar fetch start", "url", redactURL(url))

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(url), err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: %s", redactURL(url), resp.Status())
	}

	appLog.Info("calendar fetch success", "url", redactURL(url), "status", resp.StatusCode(), "bytes", len(resp.Body()))
	return resp.Body(), nil
}

// LooksLikeICS reports whether body is an iCalendar document.
func LooksLikeICS(body []byte) bool {
	s := strings.TrimSpace(string(body))
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.HasPrefix(strings.ToUpper(s), "BEGIN:VCALENDAR")
}

// redactURL keeps only the scheme and host of u for logging.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	i += 3

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}
