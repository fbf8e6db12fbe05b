package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"llm-assistant/src/clipboard"
	"llm-assistant/src/pipeline"
	"llm-assistant/src/singleinstance"
)

// ResultTarget receives the terminal outcome of one triggered operation.
// Exactly one of its methods is called, inside the event loop. Failures are
// already shown on the surface; OnFailure only reports to the target itself.
type ResultTarget interface {
	OnSuccess(text string) error
	OnFailure(err error) error
}

// WindowTarget shows the result in a result window.
type WindowTarget struct {
	Surface Surface
	Title   string
}

func (t WindowTarget) OnSuccess(text string) error {
	t.Surface.ShowResult(t.Title, text)
	return nil
}

func (WindowTarget) OnFailure(err error) error {
	return nil
}

type ClipboardTarget struct{}

func (ClipboardTarget) OnSuccess(text string) error {
	return clipboard.Write(text)
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(text string) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprint(w, text)
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// DelegatedTarget answers a request forwarded by another process. In window
// mode the result is also shown locally and the client gets an empty success.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	OutputToStdout bool
	Window         ResultTarget
}

func (t DelegatedTarget) OnSuccess(text string) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	reply := text
	if !t.OutputToStdout {
		if t.Window != nil {
			if err := t.Window.OnSuccess(text); err != nil {
				return err
			}
		}
		reply = ""
	}
	t.respond(func(c singleinstance.Conn) error { return c.RespondSuccess(reply) })
	return nil
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	msg := "unknown session error"
	switch {
	case errors.Is(err, pipeline.ErrCancelled):
		msg = "cancelled"
	case err != nil:
		msg = err.Error()
	}
	t.respond(func(c singleinstance.Conn) error { return c.RespondError(msg) })
	return nil
}

// respond writes off the event loop; the client may be slow to read.
func (t DelegatedTarget) respond(write func(singleinstance.Conn) error) {
	conn := t.Conn
	go func() {
		if err := write(conn); err != nil {
			log.Printf("Session: delegated response failed: %v", err)
		}
		_ = conn.Close()
	}()
}
