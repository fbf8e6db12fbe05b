package session

import "errors"

// ErrInputUnavailable means the operation's input could not be collected.
// It is reported as a notification and no request is sent.
var ErrInputUnavailable = errors.New("input unavailable")

var ErrAlreadyRunning = errors.New("operation already running")

// InputError is an ErrInputUnavailable with a message meant for the user.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Unwrap() error { return ErrInputUnavailable }

var (
	ErrClipboardImage = &InputError{Message: "Clipboard contains an image, not text"}
	ErrClipboardFile  = &InputError{Message: "Clipboard contains a file, not text"}
	ErrClipboardEmpty = &InputError{Message: "Clipboard does not contain text"}
)
