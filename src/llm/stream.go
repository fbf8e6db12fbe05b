package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Stream is a lazy, finite sequence of text deltas from one streaming call.
// It cannot be restarted. Next and Close are meant for the consuming goroutine;
// Close may also be called from elsewhere to abandon the stream.
type Stream struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	reader *bufio.Reader

	read     int64
	finished bool
	done     bool
	err      error

	closeOnce sync.Once
	closed    atomic.Bool
}

// Stream opens a streaming request. Request.Timeout bounds the wait for the
// response headers; once they arrive the stream itself has no deadline and
// ends on [DONE], EOF, an error, or Close.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	httpReq, err := newHTTPRequest(streamCtx, req, true)
	if err != nil {
		cancel()
		return nil, err
	}

	var timer *time.Timer
	timedOut := make(chan struct{})
	if req.Timeout > 0 {
		timer = time.AfterFunc(req.Timeout, func() {
			close(timedOut)
			cancel()
		})
	}

	resp, err := c.http.Do(httpReq)
	if timer != nil && !timer.Stop() {
		// Headers did not arrive in time; the timer already cancelled the request.
		<-timedOut
		if err == nil {
			resp.Body.Close()
		}
		cancel()
		return nil, fmt.Errorf("%w: no response headers within %v", ErrTimeout, req.Timeout)
	}
	if err != nil {
		cancel()
		return nil, classify(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	return &Stream{
		body:   resp.Body,
		cancel: cancel,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// Next returns the next non-empty delta. It returns false once the stream has
// ended; Err then tells whether it ended cleanly.
func (s *Stream) Next() (string, bool) {
	for !s.finished {
		line, readErr := s.reader.ReadBytes('\n')
		s.read += int64(len(line))
		if s.read > MaxStreamedResponseSize {
			s.finish(fmt.Errorf("%w: streamed response exceeds %d bytes", ErrTransport, MaxStreamedResponseSize))
			return "", false
		}

		if len(line) > 0 {
			delta, err := s.parseLine(line)
			if err != nil {
				s.finish(err)
				return "", false
			}
			if s.done {
				s.finish(nil)
				return "", false
			}
			if delta != "" {
				return delta, true
			}
		}

		if readErr != nil {
			switch {
			case errors.Is(readErr, io.EOF):
				// Some servers close without [DONE]; what arrived is the answer.
				s.finish(nil)
			case s.closed.Load():
				s.finish(nil)
			default:
				s.finish(fmt.Errorf("%w: read stream: %v", ErrTransport, readErr))
			}
			return "", false
		}
	}
	return "", false
}

func (s *Stream) parseLine(line []byte) (string, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || !bytes.HasPrefix(line, []byte("data:")) {
		return "", nil
	}
	data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
	if string(data) == "[DONE]" {
		s.done = true
		return "", nil
	}

	var chunk streamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		log.Printf("LLM: skipping malformed stream frame: %v", err)
		return "", nil
	}
	if chunk.Error != nil {
		return "", chunk.Error
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}

func (s *Stream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.err = err
	s.Close()
}

// Err returns the error that ended the stream, nil for a clean end or Close.
func (s *Stream) Err() error { return s.err }

// Done reports whether the explicit [DONE] marker was received.
func (s *Stream) Done() bool { return s.done }

// Close abandons the stream and releases the connection. Safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		err = s.body.Close()
	})
	return err
}
