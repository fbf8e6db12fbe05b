package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	codeLCtrl  uint16 = 0x001D
	codeLShift uint16 = 0x002A
	codeRShift uint16 = 0x0036
	codeLAlt   uint16 = 0x0038
	code1      uint16 = 0x0002
	code2      uint16 = 0x0003
)

func TestParseChord(t *testing.T) {
	tests := []struct {
		in      string
		want    Chord
		wantErr bool
	}{
		{in: "Ctrl+Shift+1", want: Chord{Mods: ModCtrl | ModShift, Key: "1"}},
		{in: "ctrl + alt + Q", want: Chord{Mods: ModCtrl | ModAlt, Key: "q"}},
		{in: "Super+F12", want: Chord{Mods: ModSuper, Key: "f12"}},
		{in: "Cmd+Return", want: Chord{Mods: ModSuper, Key: "enter"}},
		{in: "F5", want: Chord{Key: "f5"}},
		{in: "Ctrl+Shift", wantErr: true},
		{in: "Ctrl+A+B", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChord(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChordString(t *testing.T) {
	assert.Equal(t, "Ctrl+Shift+1", Chord{Mods: ModCtrl | ModShift, Key: "1"}.String())
	assert.Equal(t, "Alt+Super+F3", Chord{Mods: ModAlt | ModSuper, Key: "f3"}.String())
	assert.Equal(t, "Ctrl+space", Chord{Mods: ModCtrl, Key: "space"}.String())
}

func TestParseModifiers(t *testing.T) {
	m, err := ParseModifiers("Ctrl+Shift")
	require.NoError(t, err)
	assert.Equal(t, ModCtrl|ModShift, m)

	_, err = ParseModifiers("Ctrl+1")
	assert.Error(t, err)
	_, err = ParseModifiers("")
	assert.Error(t, err)
}

func TestKeyCode(t *testing.T) {
	tests := []struct {
		key  string
		code uint16
		ok   bool
	}{
		{"1", 0x0002, true},
		{"7", 0x0008, true},
		{"0", 0x000B, true},
		{"q", 0x0010, true},
		{"F12", 0x0058, true},
		{"escape", 0x0001, true},
		{"unknown", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			code, ok := KeyCode(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func down(code uint16) KeyEvent { return KeyEvent{Code: code, Down: true} }
func up(code uint16) KeyEvent   { return KeyEvent{Code: code, Down: false} }

func TestDetectorFiresOnPressEdge(t *testing.T) {
	d := NewDetector()
	_, fired := d.Feed(down(codeLCtrl))
	assert.False(t, fired)
	_, fired = d.Feed(down(codeLShift))
	assert.False(t, fired)

	c, fired := d.Feed(down(code1))
	require.True(t, fired)
	assert.Equal(t, Chord{Mods: ModCtrl | ModShift, Key: "1"}, c)
}

func TestDetectorIgnoresAutoRepeat(t *testing.T) {
	d := NewDetector()
	d.Feed(down(codeLCtrl))
	d.Feed(down(codeLShift))

	fires := 0
	for i := 0; i < 5; i++ {
		if _, ok := d.Feed(down(code1)); ok {
			fires++
		}
		// modifiers repeat as well while held
		d.Feed(down(codeLShift))
	}
	assert.Equal(t, 1, fires)

	d.Feed(up(code1))
	_, ok := d.Feed(down(code1))
	assert.True(t, ok, "release then press fires again")
}

func TestDetectorExactModifiers(t *testing.T) {
	d := NewDetector()
	d.Feed(down(codeLCtrl))
	d.Feed(down(codeRShift))
	d.Feed(down(codeLAlt))
	c, ok := d.Feed(down(code2))
	require.True(t, ok)
	assert.Equal(t, ModCtrl|ModShift|ModAlt, c.Mods)
	assert.NotEqual(t, Chord{Mods: ModCtrl | ModShift, Key: "2"}, c)

	d.Feed(up(codeLAlt))
	d.Feed(up(code2))
	c, ok = d.Feed(down(code2))
	require.True(t, ok)
	assert.Equal(t, Chord{Mods: ModCtrl | ModShift, Key: "2"}, c)
}

func TestDetectorIgnoresUnknownAndZero(t *testing.T) {
	d := NewDetector()
	_, ok := d.Feed(down(0))
	assert.False(t, ok)
	_, ok = d.Feed(down(0x0E4F)) // End
	assert.False(t, ok)
}
