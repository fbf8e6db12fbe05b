package tray

import (
	_ "embed"

	"fyne.io/fyne/v2"
)

// Embedded SVG icon data
//
//go:embed icon.svg
var iconSVG []byte

// Icon is the tray and window icon.
var Icon = fyne.NewStaticResource("llm-assistant.svg", iconSVG)
