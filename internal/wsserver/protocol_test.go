package wsserver

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodePageMessage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
		check   func(t *testing.T, msg PageMessage)
	}{
		{
			name: "keydown",
			raw:  `{"type":"keydown","event":{"key":"s","code":"KeyS","metaKey":true,"shiftKey":true}}`,
			check: func(t *testing.T, msg PageMessage) {
				if msg.Event == nil || msg.Event.Code != "KeyS" || !msg.Event.Meta || !msg.Event.Shift {
					t.Fatalf("event = %+v", msg.Event)
				}
			},
		},
		{
			name: "keyup",
			raw:  `{"type":"keyup","event":{"key":"Shift","code":"ShiftLeft","location":1}}`,
			check: func(t *testing.T, msg PageMessage) {
				if msg.Event.Location != 1 {
					t.Fatalf("location = %d, want 1", msg.Event.Location)
				}
			},
		},
		{
			name: "click on element",
			raw:  `{"type":"click","target":"clear_hotkey"}`,
			check: func(t *testing.T, msg PageMessage) {
				if msg.Target != "clear_hotkey" {
					t.Fatalf("target = %q", msg.Target)
				}
			},
		},
		{
			name: "click on body",
			raw:  `{"type":"click"}`,
			check: func(t *testing.T, msg PageMessage) {
				if msg.Target != "" {
					t.Fatalf("target = %q, want empty", msg.Target)
				}
			},
		},
		{name: "keydown without event", raw: `{"type":"keydown"}`, wantErr: "without event"},
		{name: "unknown type", raw: `{"type":"scroll"}`, wantErr: "unknown type"},
		{name: "invalid json", raw: `{`, wantErr: "decode page message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodePageMessage([]byte(tt.raw))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("DecodePageMessage() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePageMessage() error = %v", err)
			}
			tt.check(t, msg)
		})
	}
}

func TestEncodeView(t *testing.T) {
	raw, err := EncodeView(map[string]string{"state": "idle", "html": "<span>⌘</span>"})
	if err != nil {
		t.Fatalf("EncodeView() error = %v", err)
	}
	var decoded struct {
		Type string            `json:"type"`
		View map[string]string `json:"view"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "view" || decoded.View["state"] != "idle" || decoded.View["html"] != "<span>⌘</span>" {
		t.Fatalf("decoded = %+v", decoded)
	}

	if _, err := EncodeView(func() {}); err == nil {
		t.Fatal("EncodeView(func) expected error")
	}
}
