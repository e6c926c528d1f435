// Package texrender renders LaTeX formula bodies to PNG via an external
// rendering service.
package texrender

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://latex.codecogs.com/png.image"
	defaultDPI     = 160

	// maxImageBytes bounds a single rendered formula image.
	maxImageBytes = 8 << 20
)

type Client struct {
	http    *http.Client
	baseURL string
	dpi     int
}

func New(httpClient *http.Client, baseURL string, dpi int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if dpi <= 0 {
		dpi = defaultDPI
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		dpi:     dpi,
	}
}

// Render rasterizes formula to a transparent-background PNG at the configured
// density. Implements mathspan.Rasterizer.
func (c *Client) Render(ctx context.Context, formula string) ([]byte, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("texrender client is not initialized")
	}
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return nil, fmt.Errorf("formula is required")
	}

	expr := `\dpi{` + strconv.Itoa(c.dpi) + `}\bg{transparent}` + formula
	target := c.baseURL + "?" + url.QueryEscape(expr)

	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		status := 0
		if err != nil {
			lastErr = err
		} else {
			status = resp.StatusCode
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = readErr
			case status < 200 || status >= 300:
				lastErr = fmt.Errorf("texrender http %d", status)
			case len(raw) == 0:
				lastErr = fmt.Errorf("texrender returned empty image")
			default:
				return raw, nil
			}
		}

		if attempt >= maxAttempts {
			break
		}
		wait, retryable := retryDelay(status, attempt)
		if !retryable {
			break
		}
		if err := sleepWithContext(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func retryDelay(status int, attempt int) (time.Duration, bool) {
	switch {
	case status == 0 || status == http.StatusTooManyRequests:
		return time.Duration(attempt) * time.Second, true
	case status >= 500 && status <= 599:
		switch attempt {
		case 1:
			return 300 * time.Millisecond, true
		default:
			return 1 * time.Second, true
		}
	default:
		return 0, false
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
