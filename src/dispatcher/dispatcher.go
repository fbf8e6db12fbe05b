package dispatcher

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"llm-assistant/src/hotkey"
)

var (
	ErrUnmappableKey  = errors.New("key cannot be detected")
	ErrDuplicateChord = errors.New("chord appears more than once in the same registration")
	ErrChordInUse     = errors.New("chord already registered")
)

// Binding maps a chord to a logical action identifier.
type Binding struct {
	Chord  hotkey.Chord
	Action string
}

// Event is one detected chord, delivered to the handler inside the loop.
type Event struct {
	Action string
	Chord  hotkey.Chord
	When   time.Time
}

// BindingStatus is the outcome of registering one binding. Err is nil on success.
type BindingStatus struct {
	Binding Binding
	Err     error
}

// RegistrationError lists every binding that could not be registered.
type RegistrationError struct {
	Failed []BindingStatus
}

func (e *RegistrationError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, s := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s (%s): %v", s.Binding.Chord, s.Binding.Action, s.Err))
	}
	return "hotkey registration failed: " + strings.Join(parts, "; ")
}

// Poster marshals a task into the presentation context. It returns false when
// the context is shutting down.
type Poster interface {
	Post(fn func()) bool
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Dispatcher reads key events on its own goroutine and posts each matching
// chord into the presentation context, one Post per chord, in detection order.
type Dispatcher struct {
	source  hotkey.Source
	poster  Poster
	handler func(Event)

	bindMu   sync.RWMutex
	bindings map[hotkey.Chord]string

	mu      sync.Mutex
	state   state
	stopped chan struct{}
	exited  chan struct{}
}

// New creates a dispatcher. handler runs inside the presentation context.
func New(source hotkey.Source, poster Poster, handler func(Event)) *Dispatcher {
	return &Dispatcher{
		source:   source,
		poster:   poster,
		handler:  handler,
		bindings: make(map[hotkey.Chord]string),
		stopped:  make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Register installs bindings. Every binding gets a status; a failing binding
// never prevents the others from being installed. Conflicts are detected within
// this process only: the hook listens without grabbing, so a chord also reaches
// the focused application and another program binding it goes unnoticed.
func (d *Dispatcher) Register(bindings []Binding) ([]BindingStatus, error) {
	counts := make(map[hotkey.Chord]int, len(bindings))
	for _, b := range bindings {
		counts[b.Chord]++
	}

	d.bindMu.Lock()
	defer d.bindMu.Unlock()

	statuses := make([]BindingStatus, 0, len(bindings))
	var failed []BindingStatus
	for _, b := range bindings {
		st := BindingStatus{Binding: b}
		switch {
		case counts[b.Chord] > 1:
			st.Err = ErrDuplicateChord
		case !mappable(b.Chord):
			st.Err = ErrUnmappableKey
		default:
			if owner, taken := d.bindings[b.Chord]; taken {
				st.Err = fmt.Errorf("%w by %q", ErrChordInUse, owner)
			} else {
				d.bindings[b.Chord] = b.Action
				log.Printf("Dispatcher: registered %s -> %s", b.Chord, b.Action)
			}
		}
		if st.Err != nil {
			log.Printf("Dispatcher: cannot register %s -> %s: %v", b.Chord, b.Action, st.Err)
			failed = append(failed, st)
		}
		statuses = append(statuses, st)
	}

	if len(failed) > 0 {
		return statuses, &RegistrationError{Failed: failed}
	}
	return statuses, nil
}

func mappable(c hotkey.Chord) bool {
	_, ok := hotkey.KeyCode(c.Key)
	return ok
}

// Unregister removes the bindings for the given chords.
func (d *Dispatcher) Unregister(chords ...hotkey.Chord) {
	d.bindMu.Lock()
	defer d.bindMu.Unlock()
	for _, c := range chords {
		delete(d.bindings, c)
	}
}

// Lookup returns the action bound to c.
func (d *Dispatcher) Lookup(c hotkey.Chord) (string, bool) {
	d.bindMu.RLock()
	defer d.bindMu.RUnlock()
	action, ok := d.bindings[c]
	return action, ok
}

// Start launches the detection goroutine. Calling it again, or after Stop, does nothing.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != stateIdle {
		return
	}
	d.state = stateRunning
	go d.run()
}

// Stop signals the detection goroutine and closes the source. It does not wait
// for the goroutine, so it is safe to call from inside the presentation context.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == stateStopped {
		return
	}
	wasRunning := d.state == stateRunning
	d.state = stateStopped
	close(d.stopped)
	if err := d.source.Close(); err != nil {
		log.Printf("Dispatcher: closing source: %v", err)
	}
	if !wasRunning {
		close(d.exited)
	}
}

// Exited is closed once the detection goroutine has returned.
func (d *Dispatcher) Exited() <-chan struct{} { return d.exited }

func (d *Dispatcher) run() {
	defer close(d.exited)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Dispatcher: PANIC in detection goroutine: %v", r)
		}
	}()

	detector := hotkey.NewDetector()
	events := d.source.Events()
	for {
		select {
		case <-d.stopped:
			return
		case ev, ok := <-events:
			if !ok {
				log.Printf("Dispatcher: source closed")
				return
			}
			chord, fired := detector.Feed(ev)
			if !fired {
				continue
			}
			action, bound := d.Lookup(chord)
			if !bound {
				continue
			}
			when := ev.When
			if when.IsZero() {
				when = time.Now()
			}
			d.route(Event{Action: action, Chord: chord, When: when})
		}
	}
}

func (d *Dispatcher) route(e Event) {
	select {
	case <-d.stopped:
		log.Printf("Dispatcher: stopped, dropping %s", e.Action)
		return
	default:
	}
	if !d.poster.Post(func() { d.handler(e) }) {
		log.Printf("Dispatcher: presentation context unavailable, dropping %s", e.Action)
	}
}
