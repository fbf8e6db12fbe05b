package hotkey

// Detector turns a stream of key up/down events into chord presses.
// It fires once per up-to-down transition of a non-modifier key, with the
// modifiers held at that moment. Auto-repeat downs for a key already held do
// not fire again. Not safe for concurrent use; the dispatcher owns one.
type Detector struct {
	held map[uint16]bool
}

func NewDetector() *Detector {
	return &Detector{held: make(map[uint16]bool)}
}

// Feed records ev and returns the chord it completes, if any.
func (d *Detector) Feed(ev KeyEvent) (Chord, bool) {
	if ev.Code == 0 {
		return Chord{}, false
	}
	if !ev.Down {
		delete(d.held, ev.Code)
		return Chord{}, false
	}
	if d.held[ev.Code] {
		return Chord{}, false
	}
	d.held[ev.Code] = true

	if IsModifierCode(ev.Code) {
		return Chord{}, false
	}
	key, ok := keyByCode[ev.Code]
	if !ok {
		return Chord{}, false
	}
	return Chord{Mods: d.mods(), Key: key}, true
}

func (d *Detector) mods() Modifier {
	var m Modifier
	for code := range d.held {
		m |= modifierCodes[code]
	}
	return m
}
