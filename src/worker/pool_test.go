package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsJobs(t *testing.T) {
	p := New(2, 4)
	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		require.True(t, p.Submit(func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	p.Close()
	assert.Equal(t, int32(4), n.Load())
}

func TestPoolRefusesWhenFull(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started
	require.True(t, p.Submit(func() {}))
	assert.False(t, p.Submit(func() {}), "queue is full")
	close(release)
}

func TestPoolRefusesAfterClose(t *testing.T) {
	p := New(1, 1)
	p.Close()
	p.Close()
	assert.False(t, p.Submit(func() {}))
}

func TestPoolRecoversPanics(t *testing.T) {
	p := New(1, 1)
	got := make(chan error, 1)
	p.OnPanic(func(err error) { got <- err })

	require.True(t, p.Submit(func() { panic("boom") }))
	select {
	case err := <-got:
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(2 * time.Second):
		t.Fatal("panic handler not called")
	}

	done := make(chan struct{})
	require.True(t, p.Submit(func() { close(done) }))
	<-done
	p.Close()
}
