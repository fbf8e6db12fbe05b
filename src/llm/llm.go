package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"llm-assistant/src/logutil"
)

const (
	// MaxErrorBodySize limits how much of an error response body is read.
	MaxErrorBodySize = 1 * 1024 * 1024
	// MaxStreamedResponseSize limits the total size of a streamed or buffered response.
	MaxStreamedResponseSize = 50 * 1024 * 1024

	initialDelay = 1 * time.Second
)

var (
	ErrTimeout   = errors.New("llm: request timed out")
	ErrTransport = errors.New("llm: transport failure")

	errMalformed = fmt.Errorf("%w: malformed response", ErrTransport)
)

// StatusError is returned for non-2xx responses. It matches ErrTransport.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API returned status %d", e.Code)
	}
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrTransport }

// Request describes one chat completion call. Everything the call needs comes
// from the request, so callers pass values from their own config snapshot.
type Request struct {
	Endpoint string
	APIKey   string
	Model    string
	Prompt   string
	// ImageURL is a data URL (see EncodePNG); empty for text-only requests.
	ImageURL string
	// Timeout bounds a buffered call end to end, or the wait for response
	// headers of a streaming call. Zero means no limit.
	Timeout time.Duration
	// MaxAttempts applies to buffered calls; values below 1 mean one attempt.
	MaxAttempts int
	// ShouldStop is polled between retry attempts.
	ShouldStop func() bool
}

func (r Request) validate() error {
	switch {
	case r.Endpoint == "":
		return errors.New("llm: endpoint is required")
	case r.APIKey == "":
		return errors.New("llm: API key is required")
	case r.Model == "":
		return errors.New("llm: model is required")
	}
	return nil
}

type Client struct {
	http    *http.Client
	backoff time.Duration
}

// New returns a client. A nil httpClient uses a fresh http.Client without an
// overall timeout; per-request timeouts come from Request.Timeout.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{http: httpClient, backoff: initialDelay}
}

// Complete sends a buffered request and returns choices[0].message.content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	attempts := req.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if req.ShouldStop != nil && req.ShouldStop() {
				return "", lastErr
			}
			delay := time.Duration(float64(c.backoff) * (1.5 * float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			log.Printf("LLM: retrying %s (attempt %d/%d) after: %v", req.Model, attempt+1, attempts, lastErr)
		}

		text, err := c.completeOnce(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (c *Client) completeOnce(ctx context.Context, req Request) (string, error) {
	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := newHTTPRequest(callCtx, req, false)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		return "", &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxStreamedResponseSize)).Decode(&parsed); err != nil {
		if cerr := classify(ctx, err); errors.Is(cerr, ErrTimeout) || errors.Is(cerr, context.Canceled) {
			return "", cerr
		}
		return "", fmt.Errorf("%w: %v", errMalformed, err)
	}
	if parsed.Error != nil {
		return "", parsed.Error
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", errMalformed)
	}

	text := parsed.Choices[0].Message.Content
	log.Printf("LLM: %s answered in %v: %s", req.Model, time.Since(start).Round(time.Millisecond), logutil.Sanitize(text))
	return text, nil
}

func newHTTPRequest(ctx context.Context, req Request, stream bool) (*http.Request, error) {
	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Stream:   stream,
		Messages: []Message{{Role: "user", Text: req.Prompt, ImageURL: req.ImageURL}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	return httpReq, nil
}

// classify maps a transport error to ErrTimeout or ErrTransport. Cancellation
// of the caller's own context is returned unchanged.
func classify(parent context.Context, err error) error {
	if parent.Err() != nil && errors.Is(err, parent.Err()) {
		return parent.Err()
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func retryable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return errors.Is(err, errMalformed)
}
