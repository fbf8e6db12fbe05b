package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-assistant/src/config"
	"llm-assistant/src/session"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"llm-assistant", "-run", "3", "-api-key-path", "/tmp/key"},
			out:  []string{"llm-assistant", "--run", "3", "--api-key-path", "/tmp/key"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"llm-assistant", "-run=ocr-translate", "-stdout=true"},
			out:  []string{"llm-assistant", "--run=ocr-translate", "--stdout=true"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{"llm-assistant", "--run", "1", "--other", "-x"},
			out:  []string{"llm-assistant", "--run", "1", "--other", "-x"},
		},
		{
			name: "Empty args",
			in:   nil,
			out:  []string{"llm-assistant"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, normalizeLegacyArgs(tt.in))
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--run", "query-image", "--stdout", "--query", "what?", "--api-key-path", "/tmp/key"}))
	assert.Equal(t, "query-image", opts.run)
	assert.True(t, opts.stdout)
	assert.Equal(t, "what?", opts.query)
	assert.Equal(t, "/tmp/key", opts.apiKeyPath)
}

func TestRunOnceRejectsUnknownOperation(t *testing.T) {
	err := runOnce(mainOptions{run: "nope"}, config.LoadOptions{})
	assert.Error(t, err)
}

type recorded struct {
	text string
	fail error
}

func (r *recorded) OnSuccess(text string) error { r.text = text; return nil }

func (r *recorded) OnFailure(err error) error { r.fail = err; return nil }

func TestWaitTargetReportsOutcome(t *testing.T) {
	done := make(chan error, 2)
	inner := &recorded{}
	target := &waitTarget{inner: inner, done: done}

	require.NoError(t, target.OnSuccess("ok"))
	assert.NoError(t, <-done)
	assert.Equal(t, "ok", inner.text)

	boom := errors.New("boom")
	require.NoError(t, target.OnFailure(boom))
	assert.ErrorIs(t, <-done, boom)
	assert.ErrorIs(t, inner.fail, boom)

	var _ session.ResultTarget = target
}
