package gui

import (
	"context"
	"image"
	"image/color"
	"log"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"llm-assistant/src/overlay"
	"llm-assistant/src/screenshot"
)

type selection struct {
	region    screenshot.Region
	cancelled bool
}

// regionSelector freezes the primary display in a full-screen window and lets
// the user drag a rectangle over it. Escape, a right click or closing the
// window cancels.
type regionSelector struct {
	app fyne.App
}

// RegionSelector returns the interactive selector used when no external
// selection command is configured.
func (s *Surface) RegionSelector() overlay.Selector {
	return &regionSelector{app: s.app}
}

func (r *regionSelector) Interactive() bool { return true }

func (r *regionSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	bounds, err := screenshot.PrimaryBounds()
	if err != nil {
		return screenshot.Region{}, false, err
	}
	shot, err := screenshot.CaptureImage(bounds)
	if err != nil {
		return screenshot.Region{}, false, err
	}

	done := make(chan selection, 1)
	var w fyne.Window
	fyne.Do(func() { w = r.show(shot, bounds, done) })

	select {
	case sel := <-done:
		if !sel.cancelled {
			log.Printf("GUI: selected region %s", sel.region)
		}
		return sel.region, sel.cancelled, nil
	case <-ctx.Done():
		fyne.Do(func() {
			if w != nil {
				w.Close()
			}
		})
		return screenshot.Region{}, true, nil
	}
}

func (r *regionSelector) show(shot image.Image, bounds image.Rectangle, done chan<- selection) fyne.Window {
	w := r.app.NewWindow("Select area")
	var once sync.Once
	finish := func(sel selection) {
		once.Do(func() { done <- sel })
		w.Close()
	}

	area := newDragArea(shot,
		func(start, end fyne.Position, size fyne.Size) {
			region := overlay.ViewToScreen(start.X, start.Y, end.X, end.Y, size.Width, size.Height, bounds)
			if overlay.TooSmall(region) {
				finish(selection{cancelled: true})
				return
			}
			finish(selection{region: region})
		},
		func() { finish(selection{cancelled: true}) },
	)
	w.SetPadded(false)
	w.SetContent(area)
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape {
			finish(selection{cancelled: true})
		}
	})
	w.SetOnClosed(func() { once.Do(func() { done <- selection{cancelled: true} }) })
	w.SetFullScreen(true)
	w.Show()
	return w
}

// dragArea shows the frozen screen and tracks one drag across it.
type dragArea struct {
	widget.BaseWidget

	image *canvas.Image
	frame *canvas.Rectangle

	start, end fyne.Position
	dragging   bool

	onSelect func(start, end fyne.Position, size fyne.Size)
	onCancel func()
}

var (
	_ desktop.Mouseable = (*dragArea)(nil)
	_ fyne.Draggable    = (*dragArea)(nil)
)

func newDragArea(shot image.Image, onSelect func(start, end fyne.Position, size fyne.Size), onCancel func()) *dragArea {
	img := canvas.NewImageFromImage(shot)
	img.FillMode = canvas.ImageFillStretch
	frame := canvas.NewRectangle(color.NRGBA{R: 0x33, G: 0x99, B: 0xff, A: 0x40})
	frame.StrokeColor = color.NRGBA{R: 0x33, G: 0x99, B: 0xff, A: 0xff}
	frame.StrokeWidth = 2
	frame.Hide()

	a := &dragArea{image: img, frame: frame, onSelect: onSelect, onCancel: onCancel}
	a.ExtendBaseWidget(a)
	return a
}

func (a *dragArea) CreateRenderer() fyne.WidgetRenderer {
	hint := canvas.NewText("Drag to select an area. Esc cancels.", color.White)
	hint.TextStyle = fyne.TextStyle{Bold: true}
	hint.Move(fyne.NewPos(12, 12))
	hint.Resize(hint.MinSize())
	return widget.NewSimpleRenderer(container.NewStack(a.image, container.NewWithoutLayout(a.frame, hint)))
}

func (a *dragArea) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button == desktop.MouseButtonSecondary {
		a.dragging = false
		a.onCancel()
		return
	}
	a.start, a.end = ev.Position, ev.Position
	a.dragging = true
	a.updateFrame()
}

func (a *dragArea) MouseUp(ev *desktop.MouseEvent) {
	if a.dragging {
		a.end = ev.Position
	}
	a.release()
}

func (a *dragArea) Dragged(ev *fyne.DragEvent) {
	if !a.dragging {
		return
	}
	a.end = ev.Position
	a.updateFrame()
}

func (a *dragArea) DragEnd() { a.release() }

func (a *dragArea) release() {
	if !a.dragging {
		return
	}
	a.dragging = false
	a.onSelect(a.start, a.end, a.Size())
}

func (a *dragArea) updateFrame() {
	x0, x1 := min(a.start.X, a.end.X), max(a.start.X, a.end.X)
	y0, y1 := min(a.start.Y, a.end.Y), max(a.start.Y, a.end.Y)
	a.frame.Move(fyne.NewPos(x0, y0))
	a.frame.Resize(fyne.NewSize(x1-x0, y1-y0))
	a.frame.Show()
	a.frame.Refresh()
}
