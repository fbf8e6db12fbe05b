package session

import (
	"context"
	"fmt"
	"log"

	"llm-assistant/src/clipboard"
	"llm-assistant/src/overlay"
	"llm-assistant/src/screenshot"
)

// Inputs collects operation input. Both methods may block and are never
// called on the event loop.
type Inputs interface {
	ClipboardText() (string, error)
	// CaptureImage lets the user pick a screen region and returns it as PNG.
	// cancelled is true when the user aborted the selection.
	CaptureImage(ctx context.Context) (png []byte, cancelled bool, err error)
}

// DesktopInputs reads the system clipboard and captures the screen.
type DesktopInputs struct {
	Selector overlay.Selector
}

// Interactive reports whether CaptureImage waits for the user to select.
func (in DesktopInputs) Interactive() bool { return overlay.Interactive(in.Selector) }

func (DesktopInputs) ClipboardText() (string, error) {
	text, kind, err := clipboard.Read()
	if err != nil {
		return "", &InputError{Message: fmt.Sprintf("Clipboard unavailable: %v", err)}
	}
	switch kind {
	case clipboard.KindImage:
		return "", ErrClipboardImage
	case clipboard.KindFile:
		return "", ErrClipboardFile
	case clipboard.KindEmpty:
		return "", ErrClipboardEmpty
	}
	return text, nil
}

func (in DesktopInputs) CaptureImage(ctx context.Context) ([]byte, bool, error) {
	region, cancelled, err := in.Selector.Select(ctx)
	if err != nil {
		return nil, false, &InputError{Message: fmt.Sprintf("Region selection failed: %v", err)}
	}
	if cancelled {
		return nil, true, nil
	}
	log.Printf("Session: capturing region %s", region)
	png, err := screenshot.CaptureRegion(region)
	if err != nil {
		return nil, false, &InputError{Message: fmt.Sprintf("Screen capture failed: %v", err)}
	}
	return png, false, nil
}

// StaticInputs serves fixed input, for headless runs.
type StaticInputs struct {
	Text  string
	Image []byte
}

func (StaticInputs) Interactive() bool { return false }

func (in StaticInputs) ClipboardText() (string, error) {
	if in.Text == "" {
		return "", ErrClipboardEmpty
	}
	return in.Text, nil
}

func (in StaticInputs) CaptureImage(ctx context.Context) ([]byte, bool, error) {
	if len(in.Image) == 0 {
		return nil, false, &InputError{Message: "No image provided"}
	}
	return in.Image, false, nil
}
