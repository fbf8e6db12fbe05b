package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"llm-assistant/src/config"
	"llm-assistant/src/llm"
	"llm-assistant/src/worker"
)

var ErrBusy = errors.New("pipeline: no worker available")

// Poster marshals a task into the presentation context. Post must not block:
// runs finish from inside that context too, for example on Cancel.
type Poster interface {
	Post(fn func()) bool
}

// Scheduler runs a job on a worker goroutine without blocking the caller.
type Scheduler interface {
	Submit(job worker.Job) bool
}

// StageRequest is everything a stage needs. Text is the stage input: the
// captured text for a first text stage, otherwise the previous stage output.
type StageRequest struct {
	Stage    Stage
	Index    int
	Text     string
	Outputs  []string
	ImageURL string
	Query    string
	Config   config.Config
}

// Prompt renders the stage prompt for this request.
func (r StageRequest) Prompt() string {
	return Render(r.Stage.Prompt, r.Config.DefaultLanguage, r.Text, r.Query, r.Outputs)
}

// Monitor is the cancellation token and progress sink handed to a stage.
type Monitor interface {
	Cancelled() bool
	// Report publishes the number of characters received so far.
	Report(chars int)
}

// StageRunner performs one stage. It should return ErrCancelled when it
// notices Monitor.Cancelled and stops early.
type StageRunner interface {
	RunStage(ctx context.Context, req StageRequest, mon Monitor) (string, error)
}

// Engine executes runs on worker goroutines and delivers their outcome
// through the presentation context.
type Engine struct {
	runner StageRunner
	poster Poster
	sched  Scheduler

	ctx    context.Context
	cancel context.CancelFunc
}

func NewEngine(runner StageRunner, poster Poster, sched Scheduler) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{runner: runner, poster: poster, sched: sched, ctx: ctx, cancel: cancel}
}

// Close aborts in-flight calls. Runs still executing finish as cancelled or failed.
func (e *Engine) Close() { e.cancel() }

// NewRun creates a run in the Created state. snap is copied into the run.
func (e *Engine) NewRun(def Definition, snap config.Config, obs Observer) *Run {
	return newRun(def, snap, obs, e.poster)
}

// Submit creates a run and starts it.
func (e *Engine) Submit(def Definition, snap config.Config, in Input, obs Observer) (*Run, error) {
	r := e.NewRun(def, snap, obs)
	return r, e.Start(r, in)
}

// Start validates the input and schedules the stages. Errors are also
// delivered to the observer as a failed result, so callers may only log them.
func (e *Engine) Start(r *Run, in Input) error {
	r.mu.Lock()
	if r.state.Terminal() {
		r.mu.Unlock()
		return fmt.Errorf("pipeline %s: run already %s", r.def.Name, r.state)
	}
	if r.state == StateRunning {
		r.mu.Unlock()
		return fmt.Errorf("pipeline %s: run already started", r.def.Name)
	}
	r.mu.Unlock()

	if r.cancelled.Load() {
		r.finish(cancelledResult())
		return nil
	}
	if err := r.def.Validate(); err != nil {
		r.finish(failedResult(err))
		return err
	}
	if err := r.def.checkInput(in); err != nil {
		r.finish(failedResult(err))
		return err
	}

	var imageURL string
	if len(in.Image) > 0 {
		imageURL = llm.EncodePNG(in.Image)
		in.Image = nil
	}

	r.mu.Lock()
	if r.state.Terminal() {
		// Cancelled between the checks above and here.
		r.mu.Unlock()
		return nil
	}
	r.state = StateRunning
	r.mu.Unlock()

	log.Printf("Pipeline: starting %s run %s (%d stages)", r.def.Name, r.ID, len(r.def.Stages))
	if !e.sched.Submit(func() { e.execute(r, in, imageURL) }) {
		r.finish(failedResult(ErrBusy))
		return ErrBusy
	}
	return nil
}

func (e *Engine) execute(r *Run, in Input, imageURL string) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Printf("Pipeline: %s run %s panicked: %v\n%s", r.def.Name, r.ID, p, debug.Stack())
			r.finish(failedResult(fmt.Errorf("internal error in %s: %v", r.def.Name, p)))
		}
	}()

	stages := r.def.Stages
	outputs := make([]string, 0, len(stages))
	text := in.Text
	for i, st := range stages {
		if r.cancelled.Load() {
			log.Printf("Pipeline: %s run %s cancelled before stage %d", r.def.Name, r.ID, i)
			r.finish(cancelledResult())
			return
		}
		r.setStage(i)
		r.progress(Progress{Stage: i, Stages: len(stages), Status: st.Status})

		req := StageRequest{
			Stage:   st,
			Index:   i,
			Text:    text,
			Outputs: append([]string(nil), outputs...),
			Query:   in.Query,
			Config:  r.cfg,
		}
		if st.Kind.NeedsImage() {
			req.ImageURL = imageURL
		}

		out, err := e.runner.RunStage(e.ctx, req, &monitor{run: r, stage: i, stages: len(stages), status: st.Status})

		if r.cancelled.Load() || errors.Is(err, ErrCancelled) {
			log.Printf("Pipeline: %s run %s cancelled during stage %d, discarding output", r.def.Name, r.ID, i)
			r.finish(cancelledResult())
			return
		}
		if err != nil {
			log.Printf("Pipeline: %s run %s failed at stage %d (%s): %v", r.def.Name, r.ID, i, st.Kind, err)
			r.finish(failedResult(fmt.Errorf("%s: %w", st.Kind, err)))
			return
		}
		outputs = append(outputs, out)
		text = out
	}

	log.Printf("Pipeline: %s run %s completed in %v", r.def.Name, r.ID, time.Since(start).Round(time.Millisecond))
	r.finish(successResult(text))
}

type monitor struct {
	run    *Run
	stage  int
	stages int
	status string
}

func (m *monitor) Cancelled() bool { return m.run.cancelled.Load() }

func (m *monitor) Report(chars int) {
	m.run.progress(Progress{Stage: m.stage, Stages: m.stages, Status: m.status, Chars: chars})
}
