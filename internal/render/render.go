// Package render draws hotkey chords into the recorder element.
package render

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"snaptext/internal/dom"
	"snaptext/internal/hotkeys"
)

// ClearID is the element id of the clear affordance.
const ClearID = "clear_hotkey"

// RecordingClass marks the recorder element while a session is active.
const RecordingClass = "recording"

// Message keys.
const (
	MsgClickToRecord    = "click_to_record"
	MsgPressHotkey      = "press_hotkey"
	MsgModifierRequired = "modifier_required"
)

// DefaultMessages is the built-in English message set.
var DefaultMessages = Messages{
	MsgClickToRecord:    "Click to record",
	MsgPressHotkey:      "Press a hotkey...",
	MsgModifierRequired: "Modifier required (⌘/⌃/⌥/⇧)",
}

// Messages maps message keys to display strings.
type Messages map[string]string

// Lookup resolves key, falling back to DefaultMessages and finally the key.
func (m Messages) Lookup(key string) string {
	if msg, ok := m[key]; ok && msg != "" {
		return msg
	}
	if msg, ok := DefaultMessages[key]; ok {
		return msg
	}
	return key
}

const clearIcon = `<svg xmlns="http://www.w3.org/2000/svg" width="14" height="14" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M18 6 6 18"></path><path d="m6 6 12 12"></path></svg>`

type viewKind uint8

const (
	kindChord viewKind = iota
	kindPartial
	kindRejected
)

// View is one renderable recorder state.
type View struct {
	kind      viewKind
	chord     hotkeys.Chord
	tokens    []string
	showClear bool
}

// ChordView renders a finalized chord. showClear adds the clear affordance
// when the chord is not empty.
func ChordView(c hotkeys.Chord, showClear bool) View {
	return View{kind: kindChord, chord: c, showClear: showClear}
}

// PartialView renders the modifiers held during recording.
func PartialView(tokens []string) View {
	return View{kind: kindPartial, tokens: append([]string(nil), tokens...)}
}

// RejectedView renders the modifier-required error.
func RejectedView() View {
	return View{kind: kindRejected}
}

// Renderer replaces the content of a recorder element. It holds no state
// besides its message table and is safe for concurrent use on distinct
// trees. Callers serialize access to a shared tree (see dom.Document.Update).
type Renderer struct {
	Messages Messages
}

// New returns a renderer using messages, or DefaultMessages when nil.
func New(messages Messages) *Renderer {
	if messages == nil {
		messages = DefaultMessages
	}
	return &Renderer{Messages: messages}
}

// Render empties container, removes any stale clear affordance elsewhere in
// the tree, and draws v.
func (r *Renderer) Render(container *html.Node, v View) {
	if container == nil {
		return
	}
	dom.RemoveChildren(container)
	dom.Detach(dom.FindByID(dom.TopAncestor(container), ClearID))

	switch v.kind {
	case kindRejected:
		container.AppendChild(r.placeholder(MsgModifierRequired, "placeholder error"))
		return
	case kindPartial:
		if len(v.tokens) == 0 {
			container.AppendChild(r.placeholder(MsgPressHotkey, "placeholder"))
			return
		}
		appendKeys(container, v.tokens)
	default:
		if v.chord.IsEmpty() {
			container.AppendChild(r.placeholder(MsgClickToRecord, "placeholder"))
			return
		}
		appendKeys(container, v.chord.Tokens())
		if v.showClear {
			container.AppendChild(clearButton())
		}
	}
}

// MarkRecording toggles the recording class on container.
func MarkRecording(container *html.Node, on bool) {
	if container != nil {
		dom.SetClass(container, RecordingClass, on)
	}
}

// InnerHTML serializes the rendered content of container.
func InnerHTML(container *html.Node) (string, error) {
	return dom.InnerHTML(container)
}

// Text returns the symbols shown for tokens, joined without separators.
func Text(tokens []string) string {
	var b strings.Builder
	for _, token := range tokens {
		b.WriteString(hotkeys.SymbolOf(token))
	}
	return b.String()
}

func (r *Renderer) placeholder(key, class string) *html.Node {
	span := dom.NewElement(atom.Span, "class", class)
	span.AppendChild(dom.NewText(r.Messages.Lookup(key)))
	return span
}

func appendKeys(container *html.Node, tokens []string) {
	for _, token := range tokens {
		kbd := dom.NewElement(atom.Kbd, "class", "hotkey-key")
		kbd.AppendChild(dom.NewText(hotkeys.SymbolOf(token)))
		container.AppendChild(kbd)
	}
}

func clearButton() *html.Node {
	btn := dom.NewElement(atom.Div, "id", ClearID, "class", "clear-btn", "title", "Clear")
	icon, err := html.ParseFragment(strings.NewReader(clearIcon), btn)
	if err != nil {
		slog.Debug("[DEBUG-RENDER] clear icon parse failed, using text", "error", err)
		btn.AppendChild(dom.NewText("×"))
		return btn
	}
	for _, n := range icon {
		btn.AppendChild(n)
	}
	return btn
}
