// Package wsserver serves the settings page to a plain browser during
// development and relays page events over a single WebSocket.
//
// # Text frame protocol
//
// Client to server, one JSON object per frame:
//
//	{"type":"keydown","event":{"key":"s","code":"KeyS","metaKey":true,...}}
//	{"type":"keyup","event":{...}}
//	{"type":"click","target":"clear_hotkey"}
//
// Server to client:
//
//	{"type":"view","view":{"state":"idle","html":"...","hotkey":"..."}}
//	{"type":"error","message":"..."}
package wsserver

import (
	"encoding/json"
	"fmt"

	"snaptext/internal/hotkeys"
)

// Page message types accepted from the client.
const (
	TypeKeyDown = "keydown"
	TypeKeyUp   = "keyup"
	TypeClick   = "click"
)

const (
	typeView  = "view"
	typeError = "error"
)

// PageMessage is one event forwarded from the browser.
type PageMessage struct {
	Type string `json:"type"`
	// Event is set for keydown and keyup.
	Event *hotkeys.KeyEvent `json:"event,omitempty"`
	// Target is the id of the clicked element, or "" for the page body.
	Target string `json:"target,omitempty"`
}

type viewMsg struct {
	Type string `json:"type"`
	View any    `json:"view"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DecodePageMessage parses and validates a client frame.
func DecodePageMessage(raw []byte) (PageMessage, error) {
	var msg PageMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return PageMessage{}, fmt.Errorf("wsserver: decode page message: %w", err)
	}
	switch msg.Type {
	case TypeKeyDown, TypeKeyUp:
		if msg.Event == nil {
			return PageMessage{}, fmt.Errorf("wsserver: decode page message: %s without event", msg.Type)
		}
	case TypeClick:
	default:
		return PageMessage{}, fmt.Errorf("wsserver: decode page message: unknown type %q", msg.Type)
	}
	return msg, nil
}

// EncodeView wraps a rendered view in a server frame.
func EncodeView(view any) ([]byte, error) {
	raw, err := json.Marshal(viewMsg{Type: typeView, View: view})
	if err != nil {
		return nil, fmt.Errorf("wsserver: encode view: %w", err)
	}
	return raw, nil
}
