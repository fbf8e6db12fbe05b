package session

// Surface is the user-facing side of the presentation context. Methods are
// called from the event loop and must not block. Reply callbacks may be
// invoked from any goroutine; the controller marshals them back into the loop.
type Surface interface {
	Notify(title, message string)
	ConfirmText(title, text string, reply func(text string, ok bool))
	ConfirmImage(title string, png []byte, reply func(ok bool))
	AskTextQuery(title, text string, presets []string, reply func(query string, ok bool))
	AskImageQuery(title string, png []byte, reply func(query string, ok bool))
	// ShowProgress opens a progress view. cancel is called when the user asks to stop.
	ShowProgress(title string, cancel func()) ProgressView
	ShowResult(title, text string)
	ShowError(title string, err error)
}

type ProgressView interface {
	SetStatus(status string)
	Close()
}
