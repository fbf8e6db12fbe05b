package session

import (
	"log"
	"strings"
	"sync"

	"llm-assistant/src/logutil"
)

// HeadlessSurface accepts every confirmation and answers query dialogs with
// Query. Messages go to the log, or to NotifyFunc when set.
type HeadlessSurface struct {
	Query      string
	NotifyFunc func(title, message string)

	mu     sync.Mutex
	errors []error
}

func (s *HeadlessSurface) Notify(title, message string) {
	if s.NotifyFunc != nil {
		s.NotifyFunc(title, message)
		return
	}
	log.Printf("Session: %s: %s", title, message)
}

func (s *HeadlessSurface) ConfirmText(title, text string, reply func(string, bool)) {
	reply(text, true)
}

func (s *HeadlessSurface) ConfirmImage(title string, png []byte, reply func(bool)) {
	reply(true)
}

func (s *HeadlessSurface) AskTextQuery(title, text string, presets []string, reply func(string, bool)) {
	q := strings.TrimSpace(s.Query)
	if q == "" && len(presets) > 0 {
		q = presets[0]
	}
	reply(q, q != "")
}

func (s *HeadlessSurface) AskImageQuery(title string, png []byte, reply func(string, bool)) {
	q := strings.TrimSpace(s.Query)
	reply(q, q != "")
}

func (s *HeadlessSurface) ShowProgress(title string, cancel func()) ProgressView {
	return logProgress{title: title}
}

func (s *HeadlessSurface) ShowResult(title, text string) {
	log.Printf("Session: %s result: %q", title, logutil.Sanitize(text))
}

func (s *HeadlessSurface) ShowError(title string, err error) {
	s.mu.Lock()
	s.errors = append(s.errors, err)
	s.mu.Unlock()
	log.Printf("Session: %s failed: %v", title, err)
}

// Errors returns the errors shown so far.
func (s *HeadlessSurface) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}

type logProgress struct {
	title string
}

func (p logProgress) SetStatus(status string) { log.Printf("Session: %s: %s", p.title, status) }

func (logProgress) Close() {}
