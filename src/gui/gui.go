package gui

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"llm-assistant/src/clipboard"
	"llm-assistant/src/session"
)

// CustomQuestion is the last choice of the text query dialog.
const CustomQuestion = "Custom question..."

// Surface implements session.Surface with fyne windows. Methods may be called
// from any goroutine; widget work is marshaled onto the fyne thread.
type Surface struct {
	app fyne.App
}

var _ session.Surface = (*Surface)(nil)

func New(app fyne.App) *Surface {
	return &Surface{app: app}
}

func (s *Surface) Notify(title, message string) {
	log.Printf("GUI: notify %s: %s", title, message)
	s.app.SendNotification(fyne.NewNotification(title, message))
}

func (s *Surface) ConfirmText(title, text string, reply func(string, bool)) {
	fyne.Do(func() {
		w := s.app.NewWindow(title)
		var once sync.Once
		entry := widget.NewMultiLineEntry()
		entry.Wrapping = fyne.TextWrapWord
		entry.SetText(text)

		submit := widget.NewButtonWithIcon("Submit", theme.ConfirmIcon(), func() {
			once.Do(func() { reply(entry.Text, true) })
			w.Close()
		})
		submit.Importance = widget.HighImportance
		cancel := widget.NewButton("Cancel", func() { w.Close() })
		w.SetOnClosed(func() { once.Do(func() { reply("", false) }) })

		hint := widget.NewLabel("Review or edit the text before sending:")
		w.SetContent(container.NewBorder(hint, buttonRow(cancel, submit), nil, nil, entry))
		w.Resize(fyne.NewSize(560, 360))
		w.CenterOnScreen()
		w.Show()
	})
}

func (s *Surface) ConfirmImage(title string, png []byte, reply func(bool)) {
	fyne.Do(func() {
		w := s.app.NewWindow(title)
		var once sync.Once
		send := widget.NewButtonWithIcon("Send", theme.ConfirmIcon(), func() {
			once.Do(func() { reply(true) })
			w.Close()
		})
		send.Importance = widget.HighImportance
		cancel := widget.NewButton("Cancel", func() { w.Close() })
		w.SetOnClosed(func() { once.Do(func() { reply(false) }) })

		w.SetContent(container.NewBorder(nil, buttonRow(cancel, send), nil, nil, preview(png)))
		w.Resize(fyne.NewSize(640, 480))
		w.CenterOnScreen()
		w.Show()
	})
}

func (s *Surface) AskTextQuery(title, text string, presets []string, reply func(string, bool)) {
	fyne.Do(func() {
		w := s.app.NewWindow(title)
		var once sync.Once
		custom := widget.NewMultiLineEntry()
		custom.SetPlaceHolder("Type your question")
		custom.Disable()

		options := append(append([]string(nil), presets...), CustomQuestion)
		choice := widget.NewRadioGroup(options, func(selected string) {
			if selected == CustomQuestion {
				custom.Enable()
				w.Canvas().Focus(custom)
			} else {
				custom.Disable()
			}
		})
		if len(presets) > 0 {
			choice.SetSelected(presets[0])
		}
		status := widget.NewLabel("")
		ask := widget.NewButtonWithIcon("Ask", theme.ConfirmIcon(), func() {
			query, ok := QueryFromChoice(choice.Selected, custom.Text)
			if !ok {
				status.SetText("Please enter a question.")
				return
			}
			once.Do(func() { reply(query, true) })
			w.Close()
		})
		ask.Importance = widget.HighImportance
		cancel := widget.NewButton("Cancel", func() { w.Close() })
		w.SetOnClosed(func() { once.Do(func() { reply("", false) }) })

		excerpt := widget.NewLabel(Excerpt(text, 300))
		excerpt.Wrapping = fyne.TextWrapWord
		body := container.NewVBox(excerpt, widget.NewSeparator(), choice, custom, status)
		w.SetContent(container.NewBorder(nil, buttonRow(cancel, ask), nil, nil, container.NewVScroll(body)))
		w.Resize(fyne.NewSize(560, 420))
		w.CenterOnScreen()
		w.Show()
	})
}

func (s *Surface) AskImageQuery(title string, png []byte, reply func(string, bool)) {
	fyne.Do(func() {
		w := s.app.NewWindow(title)
		var once sync.Once
		question := widget.NewEntry()
		question.SetPlaceHolder("What do you want to know about this area?")
		status := widget.NewLabel("")
		submit := func() {
			q := strings.TrimSpace(question.Text)
			if q == "" {
				status.SetText("Please enter a question.")
				return
			}
			once.Do(func() { reply(q, true) })
			w.Close()
		}
		question.OnSubmitted = func(string) { submit() }
		ask := widget.NewButtonWithIcon("Ask", theme.ConfirmIcon(), submit)
		ask.Importance = widget.HighImportance
		cancel := widget.NewButton("Cancel", func() { w.Close() })
		w.SetOnClosed(func() { once.Do(func() { reply("", false) }) })

		bottom := container.NewVBox(question, status, buttonRow(cancel, ask))
		w.SetContent(container.NewBorder(nil, bottom, nil, nil, preview(png)))
		w.Resize(fyne.NewSize(640, 520))
		w.CenterOnScreen()
		w.Show()
		w.Canvas().Focus(question)
	})
}

func (s *Surface) ShowProgress(title string, cancel func()) session.ProgressView {
	p := &progressWindow{}
	fyne.Do(func() {
		w := s.app.NewWindow(title)
		p.w = w
		p.status = widget.NewLabel("Starting...")
		stop := widget.NewButtonWithIcon("Cancel", theme.CancelIcon(), func() {
			p.status.SetText("Cancelling...")
			cancel()
		})
		w.SetOnClosed(func() {
			if !p.closing {
				cancel()
			}
		})
		w.SetContent(container.NewVBox(p.status, widget.NewProgressBarInfinite(), buttonRow(stop)))
		w.Resize(fyne.NewSize(380, 120))
		w.CenterOnScreen()
		w.Show()
	})
	return p
}

// progressWindow fields are only touched on the fyne thread.
type progressWindow struct {
	w       fyne.Window
	status  *widget.Label
	closing bool
}

func (p *progressWindow) SetStatus(status string) {
	fyne.Do(func() {
		if p.status != nil && !p.closing {
			p.status.SetText(status)
		}
	})
}

func (p *progressWindow) Close() {
	fyne.Do(func() {
		if p.w == nil || p.closing {
			return
		}
		p.closing = true
		p.w.Close()
	})
}

func (s *Surface) ShowResult(title, text string) {
	fyne.Do(func() {
		w := s.app.NewWindow(title)
		md := widget.NewRichTextFromMarkdown(text)
		md.Wrapping = fyne.TextWrapWord
		copyBtn := widget.NewButtonWithIcon("Copy to Clipboard", theme.ContentCopyIcon(), nil)
		copyBtn.OnTapped = func() {
			if err := clipboard.Write(text); err != nil {
				log.Printf("GUI: copy failed: %v", err)
				return
			}
			copyBtn.SetText("Copied")
		}
		closeBtn := widget.NewButton("Close", func() { w.Close() })
		w.SetContent(container.NewBorder(nil, buttonRow(copyBtn, closeBtn), nil, nil, container.NewVScroll(md)))
		w.Resize(fyne.NewSize(640, 480))
		w.CenterOnScreen()
		w.Show()
	})
}

func (s *Surface) ShowError(title string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	fyne.Do(func() {
		w := s.app.NewWindow(fmt.Sprintf("%s failed", title))
		label := widget.NewLabel(msg)
		label.Wrapping = fyne.TextWrapWord
		closeBtn := widget.NewButton("Close", func() { w.Close() })
		w.SetContent(container.NewBorder(nil, buttonRow(closeBtn), nil, nil, label))
		w.Resize(fyne.NewSize(420, 160))
		w.CenterOnScreen()
		w.Show()
	})
}

func buttonRow(buttons ...fyne.CanvasObject) fyne.CanvasObject {
	return container.NewHBox(append([]fyne.CanvasObject{layout.NewSpacer()}, buttons...)...)
}

func preview(png []byte) fyne.CanvasObject {
	img := canvas.NewImageFromReader(bytes.NewReader(png), "selection.png")
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(320, 200))
	return img
}

// QueryFromChoice resolves the text query dialog: a preset is used as is, the
// custom choice needs a non-empty question.
func QueryFromChoice(selected, custom string) (string, bool) {
	if selected == "" {
		return "", false
	}
	if selected != CustomQuestion {
		return selected, true
	}
	q := strings.TrimSpace(custom)
	return q, q != ""
}

// Excerpt shortens text for display in a dialog.
func Excerpt(text string, max int) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}
