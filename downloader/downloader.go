package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type GetOptions struct {
	MaxSize  int
	Timeout  time.Duration
	Cache    bool
	CacheTTL time.Duration
}

// A thing capable of downloading a file, optionally with caching
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}

// Response body exceeded GetOptions.MaxSize.
var ErrTooLarge = errors.New("response too large")

// Non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// Client errors won't go away by asking again. Except for 408 and
// 429, which might.
func (e *StatusError) Temporary() bool {
	if e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests {
		return true
	}
	return e.Code < 400 || e.Code >= 500
}

// Gets a file. Doesn't cache. Provided as convenience for
// implementing custom Downloaders.
func HTTPGet(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	client := &http.Client{
		Timeout: options.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		// One extra byte tells a body of exactly MaxSize
		// from one that was cut short.
		reader = io.LimitReader(resp.Body, int64(options.MaxSize)+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if options.MaxSize > 0 && len(body) > options.MaxSize {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", url, ErrTooLarge, options.MaxSize)
	}

	return body, nil
}

// Downloader without any caching.
type HTTP struct{}

func (HTTP) Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	return HTTPGet(ctx, url, headers, options)
}
