package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"llm-assistant/src/llm"
)

// ErrNoResponse is returned when a call succeeds but yields no text.
var ErrNoResponse = errors.New("no response received")

// LLMRunner runs stages against a chat completion endpoint. Image stages are
// buffered calls; text stages stream, falling back to one buffered call when
// the stream cannot be opened.
type LLMRunner struct {
	client *llm.Client
}

func NewLLMRunner(client *llm.Client) *LLMRunner {
	return &LLMRunner{client: client}
}

func (r *LLMRunner) RunStage(ctx context.Context, req StageRequest, mon Monitor) (string, error) {
	cfg := req.Config
	base := llm.Request{
		Endpoint:    cfg.APIURL,
		APIKey:      cfg.APIKey,
		Prompt:      req.Prompt(),
		MaxAttempts: cfg.MaxAttempts,
		ShouldStop:  mon.Cancelled,
	}

	if req.Stage.Kind.NeedsImage() {
		base.ImageURL = req.ImageURL
		base.Model = cfg.VisionModel
		if req.Stage.Kind == StageOCR {
			base.Model = cfg.OCRModel
		}
		base.Timeout = cfg.VisionTimeout
		return nonEmpty(r.client.Complete(ctx, base))
	}

	base.Model = cfg.ActiveTextModel()
	streamReq := base
	streamReq.Timeout = cfg.StreamConnectTimeout
	stream, err := r.client.Stream(ctx, streamReq)
	if err != nil {
		if mon.Cancelled() {
			return "", ErrCancelled
		}
		log.Printf("Pipeline: stream for %s failed (%v), falling back to buffered call", req.Stage.Kind, err)
		fallback := base
		fallback.Timeout = cfg.FallbackTimeout
		return nonEmpty(r.client.Complete(ctx, fallback))
	}
	defer stream.Close()

	var sb strings.Builder
	chars := 0
	for {
		if mon.Cancelled() {
			return "", ErrCancelled
		}
		delta, ok := stream.Next()
		if !ok {
			break
		}
		sb.WriteString(delta)
		chars += utf8.RuneCountInString(delta)
		mon.Report(chars)
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("stream: %w", err)
	}
	if !stream.Done() {
		log.Printf("Pipeline: stream for %s ended without [DONE], keeping %d chars", req.Stage.Kind, chars)
	}
	return nonEmpty(sb.String(), nil)
}

func nonEmpty(text string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoResponse
	}
	return text, nil
}
