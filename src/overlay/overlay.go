package overlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os/exec"
	"strings"

	"llm-assistant/src/screenshot"
)

// MinSelectionSize is the smallest width or height accepted from a selector.
// Anything smaller is treated as an accidental click.
const MinSelectionSize = 10

// Selector defines a blocking region-selection API.
// It MUST NOT be invoked on the event-loop goroutine.
// Returns (region, cancelled, error). If cancelled is true, region is undefined and err is nil.
type Selector interface {
	Select(ctx context.Context) (screenshot.Region, bool, error)
}

// Interactive reports whether s waits for the user to draw a region.
// Selectors that pick a region on their own return false.
func Interactive(s Selector) bool {
	i, ok := s.(interface{ Interactive() bool })
	return ok && i.Interactive()
}

// NewSelector returns a selector that runs command (for example "slurp") and
// parses its "X,Y WxH" output. An empty command selects the primary display.
func NewSelector(command string) Selector {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return primaryDisplaySelector{bounds: screenshot.PrimaryBounds}
	}
	return &commandSelector{argv: argv}
}

type commandSelector struct {
	argv []string
}

func (s *commandSelector) Interactive() bool { return true }

func (s *commandSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	out, err := cmd.Output()
	if ctx.Err() != nil {
		return screenshot.Region{}, true, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(strings.TrimSpace(string(out))) == 0 {
			// Selection tools exit non-zero when the user presses Escape.
			log.Printf("Overlay: %s exited with %d, treating as cancel", s.argv[0], exitErr.ExitCode())
			return screenshot.Region{}, true, nil
		}
		return screenshot.Region{}, false, fmt.Errorf("region selector %q failed: %w", s.argv[0], err)
	}
	region, err := ParseGeometry(string(out))
	if err != nil {
		return screenshot.Region{}, false, err
	}
	if TooSmall(region) {
		log.Printf("Overlay: selection %s below minimum size, treating as cancel", region)
		return screenshot.Region{}, true, nil
	}
	return region, false, nil
}

// ParseGeometry parses the "X,Y WxH" format printed by slurp-like tools.
func ParseGeometry(s string) (screenshot.Region, error) {
	var r screenshot.Region
	s = strings.TrimSpace(s)
	if _, err := fmt.Sscanf(s, "%d,%d %dx%d", &r.X, &r.Y, &r.Width, &r.Height); err != nil {
		return screenshot.Region{}, fmt.Errorf("invalid region geometry %q: %w", s, err)
	}
	if r.Width < 0 || r.Height < 0 {
		return screenshot.Region{}, fmt.Errorf("invalid region geometry %q: negative size", s)
	}
	return r, nil
}

func TooSmall(r screenshot.Region) bool {
	return r.Width < MinSelectionSize || r.Height < MinSelectionSize
}

// ViewToScreen converts a drag from (x0,y0) to (x1,y1), made on a view of
// viewW x viewH units that shows all of screen, into screen pixels. The drag
// may go in any direction and is clamped to the view.
func ViewToScreen(x0, y0, x1, y1, viewW, viewH float32, screen image.Rectangle) screenshot.Region {
	if viewW <= 0 || viewH <= 0 {
		return screenshot.Region{X: screen.Min.X, Y: screen.Min.Y}
	}
	clamp := func(v, max float32) float32 {
		if v < 0 {
			return 0
		}
		if v > max {
			return max
		}
		return v
	}
	x0, x1 = clamp(x0, viewW), clamp(x1, viewW)
	y0, y1 = clamp(y0, viewH), clamp(y1, viewH)
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	sx := float32(screen.Dx()) / viewW
	sy := float32(screen.Dy()) / viewH
	left, top := int(x0*sx+0.5), int(y0*sy+0.5)
	right, bottom := int(x1*sx+0.5), int(y1*sy+0.5)
	return screenshot.Region{
		X:      screen.Min.X + left,
		Y:      screen.Min.Y + top,
		Width:  right - left,
		Height: bottom - top,
	}
}

type primaryDisplaySelector struct {
	bounds func() (image.Rectangle, error)
}

func (s primaryDisplaySelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	if ctx.Err() != nil {
		return screenshot.Region{}, true, nil
	}
	b, err := s.bounds()
	if err != nil {
		return screenshot.Region{}, false, err
	}
	return screenshot.Region{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}, false, nil
}
