package hotkey

import (
	"errors"
	"log"
	"sync"
	"time"

	gohook "github.com/robotn/gohook"
)

// KeyEvent is one key transition from the system-wide input stream.
type KeyEvent struct {
	Code uint16
	Down bool
	When time.Time
}

// Source delivers key events until it is closed. The channel is closed when the
// source stops.
type Source interface {
	Events() <-chan KeyEvent
	Close() error
}

// HookSource reads global key events through gohook.
type HookSource struct {
	out  chan KeyEvent
	done chan struct{}
	once sync.Once
}

// OpenHookSource starts the global hook. Only one hook can run per process.
func OpenHookSource() (*HookSource, error) {
	evChan := gohook.Start()
	if evChan == nil {
		return nil, errors.New("hotkey: gohook.Start returned nil channel")
	}
	s := &HookSource{
		out:  make(chan KeyEvent, 64),
		done: make(chan struct{}),
	}
	go s.pump(evChan)
	return s, nil
}

func (s *HookSource) pump(evChan chan gohook.Event) {
	defer close(s.out)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Hotkey: PANIC in hook goroutine: %v", r)
		}
	}()

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-evChan:
			if !ok {
				log.Printf("Hotkey: event channel closed")
				return
			}
			ke, ok := translate(ev)
			if !ok {
				continue
			}
			select {
			case s.out <- ke:
			case <-s.done:
				return
			}
		}
	}
}

// translate keeps key press/release events. KeyHold is the press (and its
// auto-repeat); KeyDown is the "typed" event and usually carries no keycode.
func translate(ev gohook.Event) (KeyEvent, bool) {
	switch ev.Kind {
	case gohook.KeyHold, gohook.KeyDown:
		if ev.Keycode == 0 {
			return KeyEvent{}, false
		}
		return KeyEvent{Code: ev.Keycode, Down: true, When: ev.When}, true
	case gohook.KeyUp:
		return KeyEvent{Code: ev.Keycode, Down: false, When: ev.When}, true
	}
	return KeyEvent{}, false
}

func (s *HookSource) Events() <-chan KeyEvent { return s.out }

// Close stops the hook. Safe to call more than once.
func (s *HookSource) Close() error {
	s.once.Do(func() {
		close(s.done)
		gohook.End()
	})
	return nil
}
