package hotkeys

import "strings"

// symbolByToken maps canonical tokens to their display glyphs.
// Tokens absent from this table render as their uppercase form.
var symbolByToken = map[string]string{
	"command":   "⌘",
	"control":   "⌃",
	"option":    "⌥",
	"shift":     "⇧",
	"enter":     "↵",
	"space":     "␣",
	"backspace": "⌫",
	"delete":    "⌦",
	"escape":    "⎋",
	"up":        "↑",
	"down":      "↓",
	"left":      "←",
	"right":     "→",
}

// tokenAliases lists spellings accepted on input only. Output always uses the
// canonical token.
var tokenAliases = map[string]string{
	"cmd":  "command",
	"ctrl": "control",
	"opt":  "option",
	"alt":  "option",
	"esc":  "escape",
}

// CanonicalToken lowercases token and resolves input aliases.
func CanonicalToken(token string) string {
	lowered := strings.ToLower(strings.TrimSpace(token))
	if canonical, ok := tokenAliases[lowered]; ok {
		return canonical
	}
	return lowered
}

// SymbolOf returns the display glyph for token.
func SymbolOf(token string) string {
	if token == "" {
		return ""
	}
	canonical := CanonicalToken(token)
	if symbol, ok := symbolByToken[canonical]; ok {
		return symbol
	}
	return strings.ToUpper(canonical)
}
