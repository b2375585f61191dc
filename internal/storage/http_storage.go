package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "go-roi-inspector/internal/errors"
)

// HTTPTemplateStore fetches templates with GET and publishes them with PUT.
type HTTPTemplateStore struct {
	client     *http.Client
	attempts   int
	retryDelay time.Duration
}

// NewHTTPTemplateStore creates an HTTP template store
func NewHTTPTemplateStore(timeout time.Duration) *HTTPTemplateStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		// templates are small and come from a handful of hosts
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return NewHTTPTemplateStoreWithClient(&http.Client{
		Transport: transport,
		Timeout:   timeout,

		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("too many redirects (limit: 3)")
			}
			return nil
		},
	})
}

// NewHTTPTemplateStoreWithClient uses the given client as is.
func NewHTTPTemplateStoreWithClient(client *http.Client) *HTTPTemplateStore {
	return &HTTPTemplateStore{
		client:     client,
		attempts:   3,
		retryDelay: time.Second,
	}
}

func (h *HTTPTemplateStore) ReadTemplate(ctx context.Context, ref string) ([]byte, error) {
	resp, err := h.do(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxTemplateSize+1))
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read template %s", ref), err)
	}
	if len(data) > MaxTemplateSize {
		return nil, apperrors.NewStorageError(fmt.Sprintf("template %s exceeds %d bytes", ref, MaxTemplateSize), nil)
	}
	return data, nil
}

func (h *HTTPTemplateStore) WriteTemplate(ctx context.Context, ref string, data []byte) error {
	resp, err := h.do(ctx, http.MethodPut, ref, data)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// do retries transport errors and 5xx responses with linear backoff.
// 4xx responses are final.
func (h *HTTPTemplateStore) do(ctx context.Context, method, ref string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < h.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, h.contextError(ctx, ref)
			case <-time.After(time.Duration(attempt) * h.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, ref, bytes.NewReader(body))
		if err != nil {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("invalid template URL %q", ref), err)
		}
		req.Header.Set("User-Agent", "go-roi-inspector/1.0")
		if method == http.MethodGet {
			req.Header.Set("Accept", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, h.contextError(ctx, ref)
			}
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("template %s not found", ref),
				fmt.Errorf("client error: status code %d", resp.StatusCode))
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, apperrors.NewStorageError(fmt.Sprintf("template request rejected for %s", ref),
				fmt.Errorf("client error: status code %d", resp.StatusCode))
		default:
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, apperrors.NewStorageError(
		fmt.Sprintf("%s %s failed after %d attempts", method, ref, h.attempts), lastErr)
}

func (h *HTTPTemplateStore) contextError(ctx context.Context, ref string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(fmt.Sprintf("template request to %s timed out", ref), ctx.Err())
	}
	return ctx.Err()
}
