package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"restock-route-service/internal/ports"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// Unwrap lets callers match a 429 answer with errors.Is(err, ports.ErrThrottled).
func (e *httpStatusError) Unwrap() error {
	if e.Code == http.StatusTooManyRequests {
		return ports.ErrThrottled
	}
	return nil
}

// transport is the HTTP plumbing shared by the oracle adapters.
type transport struct {
	client      *http.Client
	header      http.Header
	maxAttempts int
	backoff     time.Duration
}

func newTransport(client *http.Client, header http.Header) *transport {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")

	return &transport{
		client:      client,
		header:      header,
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
	}
}

func (t *transport) newRequest(
	ctx context.Context,
	method string,
	url string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range t.header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (t *transport) do(req *http.Request) (*http.Response, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 5xx responses)
// with exponential backoff while respecting context cancellation. A 429 is
// returned at once: throttling is handled by the caller's own backoff.
func (t *transport) doWithRetry(
	ctx context.Context,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	backoff := t.backoff

	var lastErr error

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := t.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 500, 502, 503, 504:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == t.maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}
