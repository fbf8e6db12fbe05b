package main

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-assistant/src/singleinstance"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{}))
	assert.Equal(t, 50, opts.n)
	assert.Equal(t, "translate-clipboard", opts.op)
	assert.Equal(t, "std", opts.mode)
	assert.Equal(t, 5*time.Second, opts.deadline)
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{"--n", "3", "--op", "4", "--mode", "window", "--deadline", "7s"}))
	assert.Equal(t, 3, opts.n)
	assert.Equal(t, "4", opts.op)
	assert.Equal(t, "window", opts.mode)
	assert.Equal(t, 7*time.Second, opts.deadline)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, outcomeOK, classify(true, nil))
	assert.Equal(t, outcomeBusy, classify(true, errors.New("Operation already running")))
	assert.Equal(t, outcomeErr, classify(true, errors.New("Translation failed: timeout")))
	assert.Equal(t, outcomeErr, classify(false, nil))
}

// scriptedClient accepts the first call and reports the rest as busy.
type scriptedClient struct {
	calls *atomic.Int32
	seen  chan string
}

func (c scriptedClient) TryRun(ctx context.Context, op string, stdout bool) (bool, string, error) {
	c.seen <- op
	if c.calls.Add(1) == 1 {
		return true, "ok", nil
	}
	return true, "", errors.New("operation already running")
}

func TestRunWithOptionsCounts(t *testing.T) {
	var calls atomic.Int32
	seen := make(chan string, 4)
	newClient := func() singleinstance.Client { return scriptedClient{calls: &calls, seen: seen} }

	var out bytes.Buffer
	opts := stressOptions{n: 4, op: "2", mode: "std", deadline: time.Second}
	require.NoError(t, runWithOptions(opts, newClient, &out))

	assert.Contains(t, out.String(), "op=explain-clipboard launched=4 ok=1 busy=3 err=0")
	for i := 0; i < 4; i++ {
		assert.Equal(t, "explain-clipboard", <-seen)
	}
}

func TestRunWithOptionsRejectsBadInput(t *testing.T) {
	newClient := func() singleinstance.Client { t.Fatal("no client expected"); return nil }

	err := runWithOptions(stressOptions{n: 1, op: "nope", mode: "std"}, newClient, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown operation")

	err = runWithOptions(stressOptions{n: 1, op: "1", mode: "clip"}, newClient, &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid mode")
}
