package pipeline

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"llm-assistant/src/config"
)

// ErrCancelled ends a run the user cancelled. It is never shown to the user.
var ErrCancelled = errors.New("pipeline: cancelled")

type State int

const (
	StateCreated State = iota
	StateAwaitingInput
	StateRunning
	StateCancelled
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAwaitingInput:
		return "awaiting-input"
	case StateRunning:
		return "running"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == StateCancelled || s == StateCompleted || s == StateFailed
}

type ResultKind int

const (
	ResultSuccess ResultKind = iota + 1
	ResultCancelled
	ResultFailed
)

// Result is the terminal outcome of a run.
type Result struct {
	Kind ResultKind
	Text string
	Err  error
}

func successResult(text string) Result { return Result{Kind: ResultSuccess, Text: text} }
func cancelledResult() Result { return Result{Kind: ResultCancelled, Err: ErrCancelled} }
func failedResult(err error) Result { return Result{Kind: ResultFailed, Err: err} }

// Progress reports the stage being executed. Chars is the number of characters
// streamed so far by that stage, zero when nothing has streamed yet.
type Progress struct {
	Stage  int
	Stages int
	Status string
	Chars  int
}

// Observer receives a run's progress and its terminal result. Both callbacks
// run inside the presentation context. OnDone is called exactly once and no
// OnProgress follows it.
type Observer struct {
	OnProgress func(Progress)
	OnDone     func(Result)
}

// Run is one execution of a Definition.
type Run struct {
	ID  string
	def Definition
	cfg config.Config
	obs Observer

	poster Poster

	cancelled atomic.Bool

	mu    sync.Mutex
	state State
	stage int

	// latest is the newest progress; progressQueued is set while a task that
	// will report it waits in the presentation context.
	latest         Progress
	progressQueued bool

	// delivered is only touched inside the presentation context.
	delivered bool
}

func newRun(def Definition, snap config.Config, obs Observer, poster Poster) *Run {
	return &Run{
		ID:     uuid.NewString(),
		def:    def,
		cfg:    snap,
		obs:    obs,
		poster: poster,
		state:  StateCreated,
	}
}

func (r *Run) Definition() Definition { return r.def }

// Snapshot is the configuration the run was created with.
func (r *Run) Snapshot() config.Config { return r.cfg }

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stage returns the index of the stage currently (or last) executed.
func (r *Run) Stage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// Cancelled reports whether Cancel has been called.
func (r *Run) Cancelled() bool { return r.cancelled.Load() }

// AwaitInput marks the run as waiting for confirmation or a question.
func (r *Run) AwaitInput() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateCreated {
		r.state = StateAwaitingInput
	}
}

// Cancel requests cancellation. A run that has not started is cancelled right
// away; a running one stops at its next checkpoint and its result is discarded.
// Calling Cancel on a finished run has no effect.
func (r *Run) Cancel() {
	if r.cancelled.Swap(true) {
		return
	}
	r.mu.Lock()
	pending := r.state == StateCreated || r.state == StateAwaitingInput
	r.mu.Unlock()
	if pending {
		r.finish(cancelledResult())
	}
}

// Fail ends a run that never started, for example because its input could
// not be collected. It has no effect once the run is running or finished.
func (r *Run) Fail(err error) {
	r.mu.Lock()
	pending := r.state == StateCreated || r.state == StateAwaitingInput
	r.mu.Unlock()
	if pending {
		r.finish(failedResult(err))
	}
}

func (r *Run) setStage(i int) {
	r.mu.Lock()
	r.stage = i
	r.mu.Unlock()
}

// finish records the terminal state and posts delivery. Only the first call wins.
func (r *Run) finish(res Result) {
	r.mu.Lock()
	if r.state.Terminal() {
		r.mu.Unlock()
		return
	}
	switch res.Kind {
	case ResultSuccess:
		r.state = StateCompleted
	case ResultCancelled:
		r.state = StateCancelled
	default:
		r.state = StateFailed
	}
	r.mu.Unlock()

	if !r.poster.Post(func() { r.deliver(res) }) {
		log.Printf("Pipeline: %s %s: presentation context gone, dropping result", r.def.Name, r.ID)
	}
}

// deliver runs inside the presentation context.
func (r *Run) deliver(res Result) {
	if r.delivered {
		return
	}
	r.delivered = true
	if res.Kind == ResultSuccess && r.cancelled.Load() {
		// Cancel arrived after the last checkpoint; the result is discarded.
		r.mu.Lock()
		r.state = StateCancelled
		r.mu.Unlock()
		res = cancelledResult()
	}
	if r.obs.OnDone != nil {
		r.obs.OnDone(res)
	}
}

// progress records p and makes sure one task will report it. Reports made
// while that task is still queued only replace the value it will show.
func (r *Run) progress(p Progress) {
	r.mu.Lock()
	r.latest = p
	if r.progressQueued {
		r.mu.Unlock()
		return
	}
	r.progressQueued = true
	r.mu.Unlock()

	r.poster.Post(func() {
		r.mu.Lock()
		p := r.latest
		r.progressQueued = false
		r.mu.Unlock()
		if r.delivered || r.cancelled.Load() {
			return
		}
		if r.obs.OnProgress != nil {
			r.obs.OnProgress(p)
		}
	})
}
