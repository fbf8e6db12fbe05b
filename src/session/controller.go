package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"llm-assistant/src/config"
	"llm-assistant/src/dispatcher"
	"llm-assistant/src/logutil"
	"llm-assistant/src/operation"
	"llm-assistant/src/pipeline"
)

const appTitle = "LLM Assistant"

// Poster marshals a task into the event loop.
type Poster interface {
	Post(fn func()) bool
}

// ConfigStore is the configuration owned by the event loop.
type ConfigStore interface {
	Snapshot() config.Config
	Reload() (config.Config, error)
	SetPremium(on bool) error
}

type Options struct {
	Loop    Poster
	Engine  *pipeline.Engine
	Store   ConfigStore
	Surface Surface
	Inputs  Inputs
	// OnConfig is called inside the loop after the configuration changed.
	OnConfig func(config.Config)
}

// Controller turns triggers into pipeline runs. Every method except Post-ed
// replies must be called inside the event loop.
type Controller struct {
	loop     Poster
	engine   *pipeline.Engine
	store    ConfigStore
	surface  Surface
	inputs   Inputs
	onConfig func(config.Config)

	ctx    context.Context
	cancel context.CancelFunc

	active map[operation.ID]*job
}

// job is one triggered operation, from input collection to delivery.
type job struct {
	op       operation.Operation
	run      *pipeline.Run
	target   ResultTarget
	progress ProgressView

	stopCapture context.CancelFunc
	done        bool
}

func NewController(opts Options) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		loop:     opts.Loop,
		engine:   opts.Engine,
		store:    opts.Store,
		surface:  opts.Surface,
		inputs:   opts.Inputs,
		onConfig: opts.OnConfig,
		ctx:      ctx,
		cancel:   cancel,
		active:   make(map[operation.ID]*job),
	}
}

// HandleChord is the dispatcher handler. Results go to a window.
func (c *Controller) HandleChord(ev dispatcher.Event) {
	log.Printf("Session: chord %s -> %s", ev.Chord, ev.Action)
	c.TriggerWindow(operation.ID(ev.Action))
}

// TriggerWindow starts an operation whose result is shown in a window.
func (c *Controller) TriggerWindow(id operation.ID) {
	op, ok := operation.Lookup(id)
	if !ok {
		log.Printf("Session: unknown operation %q", id)
		return
	}
	_ = c.Trigger(op.ID, WindowTarget{Surface: c.surface, Title: op.Definition.Title})
}

// Trigger starts collecting input for id. A second trigger of an operation
// that is still active is rejected.
func (c *Controller) Trigger(id operation.ID, target ResultTarget) error {
	op, ok := operation.Lookup(id)
	if !ok {
		err := fmt.Errorf("unknown operation %q", id)
		_ = target.OnFailure(err)
		return err
	}
	if _, busy := c.active[id]; busy {
		log.Printf("Session: %s already running, ignoring trigger", id)
		c.surface.Notify(op.Label, "Operation already running")
		_ = target.OnFailure(ErrAlreadyRunning)
		return ErrAlreadyRunning
	}

	j := &job{op: op, target: target}
	j.run = c.engine.NewRun(op.Definition, c.store.Snapshot(), pipeline.Observer{
		OnProgress: func(p pipeline.Progress) { c.progress(j, p) },
		OnDone:     func(res pipeline.Result) { c.finish(j, res) },
	})
	c.active[id] = j
	j.run.AwaitInput()
	log.Printf("Session: %s run %s collecting input", id, j.run.ID)

	switch op.Source {
	case operation.SourceScreen:
		c.collectImage(j)
	default:
		c.collectText(j)
	}
	return nil
}

// Cancel stops the active run of id, if any.
func (c *Controller) Cancel(id operation.ID) {
	if j, ok := c.active[id]; ok {
		c.cancelJob(j)
	}
}

// CancelAll stops every active run and aborts pending selections.
func (c *Controller) CancelAll() {
	for _, j := range c.active {
		c.cancelJob(j)
	}
}

// Close cancels everything. Results still in flight are dropped by the loop.
func (c *Controller) Close() {
	c.CancelAll()
	c.cancel()
}

// Active returns the operations that are collecting input or running.
func (c *Controller) Active() []operation.ID {
	ids := make([]operation.ID, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}

// SetPremium switches the text model and persists the choice.
func (c *Controller) SetPremium(on bool) {
	if err := c.store.SetPremium(on); err != nil {
		log.Printf("Session: failed to save premium setting: %v", err)
		c.surface.ShowError(appTitle, fmt.Errorf("failed to save premium setting: %w", err))
	}
	cfg := c.store.Snapshot()
	state := "disabled"
	if cfg.UsePremium {
		state = "enabled"
	}
	c.surface.Notify(appTitle, fmt.Sprintf("Premium model %s: %s", state, cfg.ActiveTextModel()))
	c.configChanged(cfg)
}

// ReloadConfig re-reads the configuration. Running runs keep their snapshot.
func (c *Controller) ReloadConfig() {
	cfg, err := c.store.Reload()
	if err != nil {
		log.Printf("Session: config reload failed: %v", err)
		c.surface.Notify(appTitle, fmt.Sprintf("Configuration not reloaded: %v", err))
		return
	}
	log.Printf("Session: configuration reloaded (text model %s, key %s)", cfg.ActiveTextModel(), logutil.RedactKey(cfg.APIKey))
	c.configChanged(cfg)
}

func (c *Controller) configChanged(cfg config.Config) {
	if c.onConfig != nil {
		c.onConfig(cfg)
	}
}

func (c *Controller) cancelJob(j *job) {
	if j.stopCapture != nil {
		j.stopCapture()
	}
	j.run.Cancel()
}

// post marshals fn into the loop, skipping it once the job has finished.
func (c *Controller) post(j *job, fn func()) {
	if !c.loop.Post(func() {
		if j.done {
			return
		}
		fn()
	}) {
		log.Printf("Session: event loop stopped, dropping %s reply", j.op.ID)
	}
}

func (c *Controller) collectText(j *job) {
	go func() {
		text, err := c.inputs.ClipboardText()
		c.post(j, func() {
			if err != nil {
				j.run.Fail(err)
				return
			}
			c.confirmText(j, text)
		})
	}()
}

func (c *Controller) confirmText(j *job, text string) {
	title := j.op.Definition.Title
	switch j.op.Confirmation {
	case operation.AskTextQuery:
		c.surface.AskTextQuery(title, text, operation.TextQueryPresets, func(query string, ok bool) {
			c.post(j, func() {
				if !ok || strings.TrimSpace(query) == "" {
					j.run.Cancel()
					return
				}
				c.start(j, pipeline.Input{Text: text, Query: query})
			})
		})
	default:
		c.surface.ConfirmText(title, text, func(edited string, ok bool) {
			c.post(j, func() {
				if !ok {
					j.run.Cancel()
					return
				}
				if strings.TrimSpace(edited) == "" {
					j.run.Fail(ErrClipboardEmpty)
					return
				}
				c.start(j, pipeline.Input{Text: edited})
			})
		})
	}
}

func (c *Controller) collectImage(j *job) {
	if promptsForRegion(c.inputs) {
		c.surface.Notify(appTitle, "Select screen area...")
	}
	ctx, stop := context.WithCancel(c.ctx)
	j.stopCapture = stop
	go func() {
		png, cancelled, err := c.inputs.CaptureImage(ctx)
		c.post(j, func() {
			switch {
			case err != nil:
				j.run.Fail(err)
			case cancelled:
				log.Printf("Session: %s selection cancelled", j.op.ID)
				j.run.Cancel()
			default:
				c.confirmImage(j, png)
			}
		})
	}()
}

func (c *Controller) confirmImage(j *job, png []byte) {
	title := j.op.Definition.Title
	switch j.op.Confirmation {
	case operation.AskImageQuery:
		c.surface.AskImageQuery(title, png, func(query string, ok bool) {
			c.post(j, func() {
				if !ok || strings.TrimSpace(query) == "" {
					j.run.Cancel()
					return
				}
				c.start(j, pipeline.Input{Image: png, Query: query})
			})
		})
	default:
		c.surface.ConfirmImage(title, png, func(ok bool) {
			c.post(j, func() {
				if !ok {
					j.run.Cancel()
					return
				}
				c.start(j, pipeline.Input{Image: png})
			})
		})
	}
}

func (c *Controller) start(j *job, in pipeline.Input) {
	run := j.run
	j.progress = c.surface.ShowProgress(j.op.Definition.Title, run.Cancel)
	if err := c.engine.Start(run, in); err != nil {
		log.Printf("Session: %s run %s not started: %v", j.op.ID, run.ID, err)
	}
}

func (c *Controller) progress(j *job, p pipeline.Progress) {
	if j.progress == nil {
		return
	}
	status := p.Status
	if p.Chars > 0 {
		status = fmt.Sprintf("Receiving response... (%d chars)", p.Chars)
	}
	if p.Stages > 1 {
		status = fmt.Sprintf("[%d/%d] %s", p.Stage+1, p.Stages, status)
	}
	j.progress.SetStatus(status)
}

func (c *Controller) finish(j *job, res pipeline.Result) {
	j.done = true
	if c.active[j.op.ID] == j {
		delete(c.active, j.op.ID)
	}
	if j.stopCapture != nil {
		j.stopCapture()
	}
	if j.progress != nil {
		j.progress.Close()
	}

	title := j.op.Definition.Title
	switch res.Kind {
	case pipeline.ResultSuccess:
		log.Printf("Session: %s run %s succeeded (%d chars): %q", j.op.ID, j.run.ID, len([]rune(res.Text)), logutil.Sanitize(res.Text))
		if err := j.target.OnSuccess(res.Text); err != nil {
			log.Printf("Session: delivering %s result failed: %v", j.op.ID, err)
			c.surface.ShowError(title, err)
		}
	case pipeline.ResultCancelled:
		log.Printf("Session: %s run %s cancelled", j.op.ID, j.run.ID)
		_ = j.target.OnFailure(res.Err)
	default:
		log.Printf("Session: %s run %s failed: %v", j.op.ID, j.run.ID, res.Err)
		if errors.Is(res.Err, ErrInputUnavailable) {
			c.surface.Notify(title, res.Err.Error())
		} else {
			c.surface.ShowError(title, res.Err)
		}
		_ = j.target.OnFailure(res.Err)
	}
}

// promptsForRegion reports whether capturing waits for the user. Inputs that
// do not say are assumed to.
func promptsForRegion(in Inputs) bool {
	i, ok := in.(interface{ Interactive() bool })
	return !ok || i.Interactive()
}
