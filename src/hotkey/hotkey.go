package hotkey

import (
	"fmt"
	"strings"
)

// Modifier is a bit set of held modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

// Chord is a modifier set plus one non-modifier key. Key is the normalized
// lowercase key name. Chord is comparable and used directly as a map key.
type Chord struct {
	Mods Modifier
	Key  string
}

func (c Chord) String() string {
	var parts []string
	if c.Mods&ModCtrl != 0 {
		parts = append(parts, "Ctrl")
	}
	if c.Mods&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if c.Mods&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if c.Mods&ModSuper != 0 {
		parts = append(parts, "Super")
	}
	key := c.Key
	if len(key) == 1 {
		key = strings.ToUpper(key)
	} else if strings.HasPrefix(key, "f") && len(key) <= 3 {
		key = strings.ToUpper(key)
	}
	parts = append(parts, key)
	return strings.Join(parts, "+")
}

// ParseChord converts a string like "Ctrl+Shift+1" into a Chord. It only checks
// the syntax; whether the key can be detected is answered by KeyCodes.
func ParseChord(s string) (Chord, error) {
	var c Chord
	for _, part := range splitParts(s) {
		if m, ok := modifierByName(part); ok {
			c.Mods |= m
			continue
		}
		if c.Key != "" {
			return Chord{}, fmt.Errorf("hotkey %q: more than one non-modifier key", s)
		}
		c.Key = normalizeKey(part)
	}
	if c.Key == "" {
		return Chord{}, fmt.Errorf("hotkey %q: missing key", s)
	}
	return c, nil
}

// ParseModifiers parses a modifier-only string such as "Ctrl+Shift".
func ParseModifiers(s string) (Modifier, error) {
	var mods Modifier
	for _, part := range splitParts(s) {
		m, ok := modifierByName(part)
		if !ok {
			return 0, fmt.Errorf("hotkey modifiers %q: %q is not a modifier", s, part)
		}
		mods |= m
	}
	if mods == 0 {
		return 0, fmt.Errorf("hotkey modifiers %q: empty", s)
	}
	return mods, nil
}

func splitParts(s string) []string {
	var parts []string
	for _, p := range strings.Split(strings.ToLower(s), "+") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func modifierByName(name string) (Modifier, bool) {
	switch name {
	case "ctrl", "control":
		return ModCtrl, true
	case "shift":
		return ModShift, true
	case "alt", "option":
		return ModAlt, true
	case "win", "cmd", "super", "meta":
		return ModSuper, true
	}
	return 0, false
}

func normalizeKey(name string) string {
	switch name {
	case "return":
		return "enter"
	case "escape":
		return "esc"
	}
	return name
}

// Virtual keycodes reported by the hook (libuiohook VC_* values). They are the
// same on every platform, unlike the raw codes.
var modifierCodes = map[uint16]Modifier{
	0x001D: ModCtrl, 0x0E1D: ModCtrl,
	0x002A: ModShift, 0x0036: ModShift,
	0x0038: ModAlt, 0x0E38: ModAlt,
	0x0E5B: ModSuper, 0x0E5C: ModSuper,
}

var keyCodes = map[string]uint16{
	"1": 0x0002, "2": 0x0003, "3": 0x0004, "4": 0x0005, "5": 0x0006,
	"6": 0x0007, "7": 0x0008, "8": 0x0009, "9": 0x000A, "0": 0x000B,

	"q": 0x0010, "w": 0x0011, "e": 0x0012, "r": 0x0013, "t": 0x0014,
	"y": 0x0015, "u": 0x0016, "i": 0x0017, "o": 0x0018, "p": 0x0019,
	"a": 0x001E, "s": 0x001F, "d": 0x0020, "f": 0x0021, "g": 0x0022,
	"h": 0x0023, "j": 0x0024, "k": 0x0025, "l": 0x0026,
	"z": 0x002C, "x": 0x002D, "c": 0x002E, "v": 0x002F, "b": 0x0030,
	"n": 0x0031, "m": 0x0032,

	"f1": 0x003B, "f2": 0x003C, "f3": 0x003D, "f4": 0x003E, "f5": 0x003F,
	"f6": 0x0040, "f7": 0x0041, "f8": 0x0042, "f9": 0x0043, "f10": 0x0044,
	"f11": 0x0057, "f12": 0x0058,

	"esc":   0x0001,
	"tab":   0x000F,
	"enter": 0x001C,
	"space": 0x0039,
}

var keyByCode = func() map[uint16]string {
	m := make(map[uint16]string, len(keyCodes))
	for name, code := range keyCodes {
		m[code] = name
	}
	return m
}()

// KeyCode returns the hook keycode for a normalized key name.
func KeyCode(key string) (uint16, bool) {
	code, ok := keyCodes[normalizeKey(strings.ToLower(strings.TrimSpace(key)))]
	return code, ok
}

// IsModifierCode reports whether code belongs to a modifier key.
func IsModifierCode(code uint16) bool {
	_, ok := modifierCodes[code]
	return ok
}
