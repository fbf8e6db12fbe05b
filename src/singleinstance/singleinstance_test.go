package singleinstance

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// usePort points the configured range at a single free loopback port.
func usePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	t.Setenv("LLM_ASSISTANT_PORT_START", strconv.Itoa(port))
	t.Setenv("LLM_ASSISTANT_PORT_END", strconv.Itoa(port))
	return port
}

func startServer(t *testing.T, ctx context.Context) Server {
	t.Helper()
	srv := NewServer()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback port unavailable in this environment: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestServerClientRoundTrip(t *testing.T) {
	port := usePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx)
	assert.Equal(t, port, srv.Port())

	type reply struct {
		delegated bool
		text      string
		err       error
	}
	done := make(chan reply, 1)
	go func() {
		delegated, text, err := NewClient().TryRun(ctx, "ocr-translate", true)
		done <- reply{delegated, text, err}
	}()

	conn, err := srv.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, Request{Operation: "ocr-translate", OutputToStdout: true}, conn.Request())
	require.NoError(t, conn.RespondSuccess("übersetzt\nline two"))
	require.NoError(t, conn.Close())

	r := <-done
	require.NoError(t, r.err)
	assert.True(t, r.delegated)
	assert.Equal(t, "übersetzt\nline two", r.text)
}

func TestServerClientError(t *testing.T) {
	usePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx)

	done := make(chan error, 1)
	go func() {
		_, _, err := NewClient().TryRun(ctx, "query-text", false)
		done <- err
	}()

	conn, err := srv.Next(ctx)
	require.NoError(t, err)
	assert.False(t, conn.Request().OutputToStdout)
	require.NoError(t, conn.RespondError("Operation already running"))
	require.NoError(t, conn.Close())

	err = <-done
	require.Error(t, err)
	assert.Equal(t, "Operation already running", err.Error())
}

func TestNoResident(t *testing.T) {
	usePort(t)
	delegated, _, err := NewClient().TryRun(context.Background(), "ocr-translate", true)
	assert.NoError(t, err)
	assert.False(t, delegated)
}

func TestPingAnswersOnlyForResident(t *testing.T) {
	port := usePort(t)
	addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
	assert.False(t, ping(addr, 300*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	startServer(t, ctx)
	assert.True(t, ping(addr, time.Second))
}

func TestSecondServerFails(t *testing.T) {
	usePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startServer(t, ctx)
	assert.Error(t, NewServer().Start(ctx))
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		line    string
		want    Request
		wantErr bool
	}{
		{"RUN ocr-translate STDOUT\n", Request{Operation: "ocr-translate", OutputToStdout: true}, false},
		{"RUN 3 WINDOW\n", Request{Operation: "3"}, false},
		{"RUN x CLIPBOARD\n", Request{}, true},
		{"STDOUT\n", Request{}, true},
		{"", Request{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseRequest(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.line, FormatRequest(got))
		})
	}
}

func TestPortRangeClamps(t *testing.T) {
	t.Setenv("LLM_ASSISTANT_PORT_START", "80")
	t.Setenv("LLM_ASSISTANT_PORT_END", "bogus")
	start, end := PortRange()
	assert.Equal(t, 1024, start)
	assert.Equal(t, defaultPortEnd, end)
}
