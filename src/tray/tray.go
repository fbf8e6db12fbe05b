package tray

import (
	"fmt"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"

	"llm-assistant/src/hotkey"
	"llm-assistant/src/operation"
)

// Handlers are called on the fyne thread when a menu item is clicked.
type Handlers struct {
	OnOperation func(operation.ID)
	OnPremium   func(on bool)
	OnReload    func()
	OnQuit      func()
}

// Menu is the tray menu. Premium reflects the persisted setting.
type Menu struct {
	menu    *fyne.Menu
	premium *fyne.MenuItem
	app     desktop.App
}

// NewMenu builds the menu: one item per operation with its chord, the premium
// toggle, reload and quit.
func NewMenu(mods hotkey.Modifier, premium bool, h Handlers) *Menu {
	m := &Menu{}
	var items []*fyne.MenuItem
	for _, op := range operation.All() {
		id := op.ID
		label := fmt.Sprintf("%s\t%s", op.Label, op.Chord(mods))
		items = append(items, fyne.NewMenuItem(label, func() {
			if h.OnOperation != nil {
				h.OnOperation(id)
			}
		}))
	}
	m.premium = fyne.NewMenuItem("Use premium text model", nil)
	m.premium.Checked = premium
	m.premium.Action = func() {
		on := !m.premium.Checked
		m.SetPremium(on)
		if h.OnPremium != nil {
			h.OnPremium(on)
		}
	}
	reload := fyne.NewMenuItem("Reload configuration", func() {
		if h.OnReload != nil {
			h.OnReload()
		}
	})
	quit := fyne.NewMenuItem("Quit", func() {
		if h.OnQuit != nil {
			h.OnQuit()
		}
	})
	quit.IsQuit = true

	items = append(items, fyne.NewMenuItemSeparator(), m.premium, reload, fyne.NewMenuItemSeparator(), quit)
	m.menu = fyne.NewMenu("LLM Assistant", items...)
	return m
}

// Install shows the menu in the system tray. It returns false when the
// driver has no tray support.
func (m *Menu) Install(a fyne.App) bool {
	desk, ok := a.(desktop.App)
	if !ok {
		log.Printf("Tray: system tray not supported by this driver")
		return false
	}
	m.app = desk
	desk.SetSystemTrayIcon(Icon)
	desk.SetSystemTrayMenu(m.menu)
	return true
}

// SetPremium updates the checkbox. Must run on the fyne thread.
func (m *Menu) SetPremium(on bool) {
	if m.premium.Checked == on {
		return
	}
	m.premium.Checked = on
	if m.app != nil {
		m.menu.Refresh()
	}
}

func (m *Menu) Items() []*fyne.MenuItem { return m.menu.Items }
