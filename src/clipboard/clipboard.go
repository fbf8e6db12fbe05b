package clipboard

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"golang.design/x/clipboard"
)

// Kind classifies what the clipboard currently holds.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindImage
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindFile:
		return "file"
	}
	return "empty"
}

var ErrUnavailable = errors.New("clipboard: not initialized")

var (
	writeMu     sync.Mutex
	initialized atomic.Bool
)

func Init() error {
	if err := clipboard.Init(); err != nil {
		return err
	}
	initialized.Store(true)
	return nil
}

// Read returns the clipboard text and what kind of content was found. The
// text is only set for KindText.
func Read() (string, Kind, error) {
	if !initialized.Load() {
		return "", KindEmpty, ErrUnavailable
	}
	text := clipboard.Read(clipboard.FmtText)
	var img []byte
	if len(bytes.TrimSpace(text)) == 0 {
		img = clipboard.Read(clipboard.FmtImage)
	}
	s, kind := Classify(text, img)
	return s, kind, nil
}

// Classify decides the clipboard kind from its text and image payloads.
// Copied files show up as a text list of file:// URIs.
func Classify(text, image []byte) (string, Kind) {
	s := strings.TrimSpace(string(text))
	if s == "" {
		if len(image) > 0 {
			return "", KindImage
		}
		return "", KindEmpty
	}
	if isURIList(s) {
		return "", KindFile
	}
	return string(text), KindText
}

func isURIList(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "file://") {
			return false
		}
	}
	return true
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	if !initialized.Load() {
		return ErrUnavailable
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
