package tray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-assistant/src/hotkey"
	"llm-assistant/src/operation"
)

func TestMenuItems(t *testing.T) {
	var triggered []operation.ID
	var premium []bool
	m := NewMenu(hotkey.ModCtrl|hotkey.ModShift, false, Handlers{
		OnOperation: func(id operation.ID) { triggered = append(triggered, id) },
		OnPremium:   func(on bool) { premium = append(premium, on) },
	})

	items := m.Items()
	ops := operation.All()
	require.Len(t, items, len(ops)+5)
	assert.Contains(t, items[0].Label, "Ctrl+Shift+1")

	items[2].Action()
	assert.Equal(t, []operation.ID{ops[2].ID}, triggered)

	toggle := items[len(ops)+1]
	assert.False(t, toggle.Checked)
	toggle.Action()
	assert.True(t, toggle.Checked)
	toggle.Action()
	assert.Equal(t, []bool{true, false}, premium)

	quit := items[len(items)-1]
	assert.True(t, quit.IsQuit)
	quit.Action()
}

func TestIconIsSVG(t *testing.T) {
	assert.Contains(t, string(Icon.Content()), "<svg")
}
