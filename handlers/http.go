package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tracefan/tracefan"
)

// HTTPOptions configures an HTTP handler beyond the Base options.
type HTTPOptions struct {
	Options

	// URL of the ingestion endpoint. Required.
	URL string

	// Method defaults to POST.
	Method string

	// Headers are added to every request.
	Headers map[string]string

	// BearerToken sets an Authorization: Bearer header.
	BearerToken string

	// BasicUser and BasicPassword enable HTTP basic auth.
	BasicUser     string
	BasicPassword string

	// Timeout bounds each HTTP request. Default 10s.
	Timeout time.Duration

	// MaxRetries bounds retry attempts after the first request.
	// Default 2. Retries apply to transport errors and 5xx responses;
	// 4xx responses fail immediately.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per attempt.
	// Default 500ms.
	RetryBackoff time.Duration

	// Client overrides the HTTP client, for tests.
	Client *http.Client
}

// HTTP ships batches of records to a remote endpoint as JSON.
type HTTP struct {
	*Base

	url          string
	method       string
	headers      map[string]string
	bearer       string
	basicUser    string
	basicPass    string
	maxRetries   int
	retryBackoff time.Duration
	client       *http.Client
}

type httpPayload struct {
	Records []json.RawMessage `json:"records"`
	Count   int               `json:"count"`
}

// NewHTTP builds an HTTP handler.
func NewHTTP(opts HTTPOptions) (*HTTP, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: http handler requires a url", tracefan.ErrConfiguration)
	}
	if opts.Name == "" {
		opts.Name = "http"
	}
	if opts.Method == "" {
		opts.Method = http.MethodPost
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = 2
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	h := &HTTP{
		url:          opts.URL,
		method:       opts.Method,
		headers:      opts.Headers,
		bearer:       opts.BearerToken,
		basicUser:    opts.BasicUser,
		basicPass:    opts.BasicPassword,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		client:       client,
	}
	h.Base = NewBase(h, opts.Options)
	return h, nil
}

// EmitSync implements Emitter.
func (h *HTTP) EmitSync(formatted string, record *tracefan.Record) error {
	return h.EmitBatch([]string{formatted}, []*tracefan.Record{record})
}

// EmitBatch implements Emitter. The whole batch is a single request;
// transport errors and 5xx responses are retried with exponential
// backoff, 4xx responses fail immediately.
func (h *HTTP) EmitBatch(formatted []string, records []*tracefan.Record) error {
	body, err := h.encode(records)
	if err != nil {
		return err
	}

	backoff := h.retryBackoff
	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		retryable, err := h.send(body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts: %v",
		tracefan.ErrHandlerEmit, h.maxRetries+1, lastErr)
}

func (h *HTTP) encode(records []*tracefan.Record) ([]byte, error) {
	payload := httpPayload{
		Records: make([]json.RawMessage, 0, len(records)),
		Count:   len(records),
	}
	for _, record := range records {
		raw, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record: %w", err)
		}
		payload.Records = append(payload.Records, raw)
	}
	return json.Marshal(payload)
}

// send issues one request. The bool reports whether the failure is
// retryable.
func (h *HTTP) send(body []byte) (bool, error) {
	req, err := http.NewRequest(h.method, h.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	if h.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+h.bearer)
	} else if h.basicUser != "" {
		req.SetBasicAuth(h.basicUser, h.basicPass)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("server returned %s", resp.Status)
	default:
		return false, fmt.Errorf("server rejected batch with %s", resp.Status)
	}
}
