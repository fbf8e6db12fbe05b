package runtimeinit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-assistant/src/config"
	"llm-assistant/src/operation"
	"llm-assistant/src/session"
)

func isolate(t *testing.T) config.LoadOptions {
	t.Helper()
	for _, k := range []string{"API_URL", "API_KEY", config.APIKeyPathEnvVar, "TEXT_MODEL", "ENABLE_FILE_LOGGING"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	return config.LoadOptions{
		EnvPathOverride:    filepath.Join(dir, ".env"),
		APIKeyPathOverride: filepath.Join(dir, "missing-key"),
	}
}

func TestBootstrapRequiresAPIKey(t *testing.T) {
	opts := isolate(t)
	var logging []bool
	_, err := Bootstrap(Options{LoadOptions: opts, SetupLogging: func(b bool) { logging = append(logging, b) }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key missing")
	assert.Equal(t, []bool{false}, logging)

	t.Setenv("API_KEY", "sk-test")
	cfg, err := Bootstrap(Options{LoadOptions: opts})
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.APIKey)
}

// chatServer answers streaming requests with SSE and buffered ones with JSON.
func chatServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		_ = json.Unmarshal(body, &req)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, answer)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, r := range answer {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", string(r))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCoreRunsOperationEndToEnd(t *testing.T) {
	srv := chatServer(t, "Hallo Welt")
	cfg := &config.Config{
		APIURL:               srv.URL,
		APIKey:               "sk-test",
		DefaultLanguage:      "German",
		TextModel:            "text-model",
		VisionModel:          "vision-model",
		OCRModel:             "ocr-model",
		VisionTimeout:        5 * time.Second,
		FallbackTimeout:      5 * time.Second,
		StreamConnectTimeout: 5 * time.Second,
		MaxAttempts:          1,
	}
	surface := &session.HeadlessSurface{}
	core := NewCore(CoreOptions{
		Config:  cfg,
		Surface: surface,
		Inputs:  session.StaticInputs{Text: "Hello world"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = core.Loop.Run(ctx) }()
	defer core.Close()

	var out bytes.Buffer
	done := make(chan error, 1)
	target := &doneTarget{inner: session.StdoutTarget{Writer: &out}, done: done}
	require.True(t, core.Loop.Post(func() { _ = core.Controller.Trigger(operation.TranslateClipboard, target) }))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("operation did not finish")
	}
	assert.Equal(t, "Hallo Welt", out.String())
	assert.Empty(t, surface.Errors())
}

type doneTarget struct {
	inner session.ResultTarget
	done  chan error
}

func (t *doneTarget) OnSuccess(text string) error {
	err := t.inner.OnSuccess(text)
	t.done <- err
	return err
}

func (t *doneTarget) OnFailure(err error) error {
	t.done <- err
	return nil
}
