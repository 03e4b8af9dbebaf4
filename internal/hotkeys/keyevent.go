package hotkeys

import "strings"

// KeyEvent carries the KeyboardEvent fields the recorder reads.
// Location follows the DOM convention (1 = left, 2 = right); it is
// informational only, both sides map to the same modifier token.
type KeyEvent struct {
	Key      string `json:"key"`
	Code     string `json:"code"`
	Meta     bool   `json:"metaKey"`
	Ctrl     bool   `json:"ctrlKey"`
	Alt      bool   `json:"altKey"`
	Shift    bool   `json:"shiftKey"`
	Location int    `json:"location"`
}

var modifierByKey = map[string]string{
	"Meta":    "command",
	"OS":      "command",
	"Control": "control",
	"Alt":     "option",
	"Shift":   "shift",
}

// keyAliases maps logical key names that differ from their token.
var keyAliases = map[string]string{
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
	"esc":        "escape",
	"spacebar":   "space",
}

// punctuationByCode resolves punctuation from the physical key when the
// logical key was changed by Shift (e.g. "?" on the Slash key).
var punctuationByCode = map[string]string{
	"Slash":        "/",
	"Backslash":    `\`,
	"BracketLeft":  "[",
	"BracketRight": "]",
	"Minus":        "-",
	"Equal":        "=",
	"Period":       ".",
	"Comma":        ",",
	"Backquote":    "`",
	"Semicolon":    ";",
	"Quote":        "'",
}

// ModifierForKey reports the modifier token for a pure modifier key.
func ModifierForKey(key string) (string, bool) {
	token, ok := modifierByKey[key]
	return token, ok
}

// IsModifierKey reports whether ev is a press of a modifier key alone.
func (ev KeyEvent) IsModifierKey() bool {
	_, ok := modifierByKey[ev.Key]
	return ok
}

// ModifierMask returns the modifier flags carried by the event.
func (ev KeyEvent) ModifierMask() Modifier {
	var mods Modifier
	if ev.Meta {
		mods |= ModCommand
	}
	if ev.Ctrl {
		mods |= ModControl
	}
	if ev.Alt {
		mods |= ModOption
	}
	if ev.Shift {
		mods |= ModShift
	}
	return mods
}

// Modifiers returns the event's modifier flags as canonical tokens.
func (ev KeyEvent) Modifiers() []string {
	return ev.ModifierMask().Tokens()
}

// PrimaryFromEvent derives the primary token from a physical key event.
// It reports false when the key cannot complete a chord.
func PrimaryFromEvent(ev KeyEvent) (string, bool) {
	if rest, ok := strings.CutPrefix(ev.Code, "Key"); ok && len(rest) == 1 {
		token := strings.ToLower(rest)
		if IsPrimary(token) {
			return token, true
		}
	}
	if rest, ok := strings.CutPrefix(ev.Code, "Digit"); ok && len(rest) == 1 {
		if IsPrimary(rest) {
			return rest, true
		}
	}
	if ev.Key == " " {
		return "space", true
	}

	lowered := strings.ToLower(ev.Key)
	if IsFunctionKey(lowered) {
		return lowered, true
	}
	if alias, ok := keyAliases[lowered]; ok {
		lowered = alias
	}
	if _, ok := namedPrimaries[lowered]; ok {
		return lowered, true
	}
	if punct, ok := punctuationByCode[ev.Code]; ok {
		return punct, true
	}
	return "", false
}

// ChordFromEvent builds the chord committed by a primary key-down. Modifiers
// come from the event flags, never from previously observed modifier presses.
func ChordFromEvent(ev KeyEvent) (Chord, bool) {
	primary, ok := PrimaryFromEvent(ev)
	if !ok {
		return Chord{}, false
	}
	return Chord{modifiers: ev.ModifierMask(), primary: primary}, true
}
