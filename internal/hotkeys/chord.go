package hotkeys

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedChord reports a token list or string that is not a chord.
	ErrMalformedChord = errors.New("malformed chord")
	// ErrUnsafeChord reports a chord whose primary would capture plain typing.
	ErrUnsafeChord = errors.New("unsafe chord: a modifier is required unless the key is F1-F12")
)

// Modifier is a bitmask of modifier keys.
type Modifier uint8

const (
	ModCommand Modifier = 1 << iota
	ModControl
	ModOption
	ModShift
)

// modifierOrder is the canonical serialization order.
var modifierOrder = []struct {
	mod   Modifier
	token string
}{
	{ModCommand, "command"},
	{ModControl, "control"},
	{ModOption, "option"},
	{ModShift, "shift"},
}

var modifierByToken = map[string]Modifier{
	"command": ModCommand,
	"control": ModControl,
	"option":  ModOption,
	"shift":   ModShift,
}

// namedPrimaries are the non-alphanumeric, non-function primary tokens.
var namedPrimaries = map[string]struct{}{
	"space":     {},
	"enter":     {},
	"backspace": {},
	"delete":    {},
	"escape":    {},
	"tab":       {},
	"capslock":  {},
	"up":        {},
	"down":      {},
	"left":      {},
	"right":     {},
	"/":         {},
	`\`:         {},
	"[":         {},
	"]":         {},
	"-":         {},
	"=":         {},
	".":         {},
	",":         {},
	"`":         {},
	";":         {},
	"'":         {},
}

// Tokens returns the canonical modifier tokens set in m.
func (m Modifier) Tokens() []string {
	var tokens []string
	for _, entry := range modifierOrder {
		if m&entry.mod != 0 {
			tokens = append(tokens, entry.token)
		}
	}
	return tokens
}

// IsModifier reports whether token is a canonical modifier token.
func IsModifier(token string) bool {
	_, ok := modifierByToken[token]
	return ok
}

// ParseModifier returns the bit for a canonical modifier token.
func ParseModifier(token string) (Modifier, bool) {
	mod, ok := modifierByToken[token]
	return mod, ok
}

// IsFunctionKey reports whether token is one of f1..f12.
func IsFunctionKey(token string) bool {
	if len(token) < 2 || len(token) > 3 || token[0] != 'f' {
		return false
	}
	n := 0
	for _, ch := range token[1:] {
		if ch < '0' || ch > '9' {
			return false
		}
		n = n*10 + int(ch-'0')
	}
	if token[1] == '0' {
		return false
	}
	return n >= 1 && n <= 12
}

// IsPrimary reports whether token may complete a chord.
func IsPrimary(token string) bool {
	if len(token) == 1 {
		ch := token[0]
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			return true
		}
	}
	if IsFunctionKey(token) {
		return true
	}
	_, ok := namedPrimaries[token]
	return ok
}

// SortModifiers returns the modifier tokens of tokens in canonical order
// without duplicates. Non-modifier tokens are dropped.
func SortModifiers(tokens []string) []string {
	var mods Modifier
	for _, token := range tokens {
		mods |= modifierByToken[token]
	}
	return mods.Tokens()
}

// Chord is a canonical modifier+primary combination. The zero value is the
// empty chord, meaning no hotkey is bound.
// Construct only via Canonicalize or Parse to keep the invariants.
type Chord struct {
	modifiers Modifier
	primary   string
}

// Canonicalize builds a chord from canonical tokens: zero or more modifiers
// followed by exactly one primary. Duplicate modifiers are folded and the
// modifier order is normalized. An empty list yields the empty chord.
func Canonicalize(parts []string) (Chord, error) {
	if len(parts) == 0 {
		return Chord{}, nil
	}

	primary := parts[len(parts)-1]
	if IsModifier(primary) {
		return Chord{}, fmt.Errorf("%w: missing primary key in %q", ErrMalformedChord, strings.Join(parts, "+"))
	}
	if !IsPrimary(primary) {
		return Chord{}, fmt.Errorf("%w: unknown key %q", ErrMalformedChord, primary)
	}

	var mods Modifier
	for _, token := range parts[:len(parts)-1] {
		mod, ok := modifierByToken[token]
		if !ok {
			if IsPrimary(token) {
				return Chord{}, fmt.Errorf("%w: more than one primary key in %q", ErrMalformedChord, strings.Join(parts, "+"))
			}
			return Chord{}, fmt.Errorf("%w: unknown modifier %q", ErrMalformedChord, token)
		}
		mods |= mod
	}
	return Chord{modifiers: mods, primary: primary}, nil
}

// Parse reads a persisted chord string. Tokens are split on "+", lowercased
// and alias-resolved. Legacy "<cmd>" style tokens are accepted.
func Parse(s string) (Chord, error) {
	raw := strings.Join(strings.Fields(s), "")
	if raw == "" {
		return Chord{}, nil
	}

	rawParts := strings.Split(raw, "+")
	parts := make([]string, 0, len(rawParts))
	for _, part := range rawParts {
		part = strings.TrimSuffix(strings.TrimPrefix(part, "<"), ">")
		if part == "" {
			return Chord{}, fmt.Errorf("%w: empty token in %q", ErrMalformedChord, s)
		}
		parts = append(parts, CanonicalToken(part))
	}
	return Canonicalize(parts)
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Chord {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String serializes c to its canonical "+"-joined form.
func (c Chord) String() string {
	return strings.Join(c.Tokens(), "+")
}

// IsEmpty reports whether c is the empty chord.
func (c Chord) IsEmpty() bool { return c.primary == "" }

// ModifierMask returns the modifier bitmask.
func (c Chord) ModifierMask() Modifier { return c.modifiers }

// Modifiers returns the modifier tokens in canonical order.
func (c Chord) Modifiers() []string { return c.modifiers.Tokens() }

// Primary returns the primary token, or "" for the empty chord.
func (c Chord) Primary() string { return c.primary }

// HasModifiers reports whether at least one modifier is set.
func (c Chord) HasModifiers() bool { return c.modifiers != 0 }

// Tokens returns modifiers then primary. The empty chord has no tokens.
func (c Chord) Tokens() []string {
	if c.IsEmpty() {
		return nil
	}
	return append(c.modifiers.Tokens(), c.primary)
}

// IsSafe reports whether c may be bound globally: it carries a modifier or
// its primary is a function key. The empty chord is not safe.
func (c Chord) IsSafe() bool {
	if c.IsEmpty() {
		return false
	}
	return c.HasModifiers() || IsFunctionKey(c.primary)
}

// Equal reports whether c and other are the same chord.
func (c Chord) Equal(other Chord) bool { return c == other }
