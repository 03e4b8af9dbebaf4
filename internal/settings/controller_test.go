package settings

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"snaptext/internal/bridge"
	"snaptext/internal/dom"
	"snaptext/internal/hotkeys"
	"snaptext/internal/recorder"
	"snaptext/internal/testutil"
)

const page = `<!doctype html><html><body>
<section id="general"><input id="launch_at_login" type="checkbox"></section>
<section id="shortcuts"><div id="hotkey_recorder" class="hotkey-recorder"></div></section>
</body></html>`

type fakeBridge struct {
	mu       sync.Mutex
	hotkey   string
	loadErr  error
	saveErr  error
	saves    []string
	pauses   []bool
	notReady bool

	gate    chan struct{}
	entered chan struct{}
}

func (b *fakeBridge) WhenReady(ctx context.Context) error {
	if b.notReady {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (b *fakeBridge) LoadHotkey(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hotkey, b.loadErr
}

func (b *fakeBridge) SaveHotkey(_ context.Context, c hotkeys.Chord) error {
	if b.gate != nil {
		b.entered <- struct{}{}
		<-b.gate
		b.gate = nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves = append(b.saves, c.String())
	if b.saveErr != nil {
		return b.saveErr
	}
	b.hotkey = c.String()
	return nil
}

func (b *fakeBridge) PauseGlobalHotkey(paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pauses = append(b.pauses, paused)
}

func (b *fakeBridge) savedSnapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.saves)
}

func (b *fakeBridge) pauseSnapshot() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.pauses)
}

func (b *fakeBridge) setHotkey(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hotkey = s
}

type renderLog struct {
	mu    sync.Mutex
	views []View
}

func (l *renderLog) add(v View) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.views = append(l.views, v)
}

func (l *renderLog) states() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.views))
	for _, v := range l.views {
		out = append(out, v.State)
	}
	return out
}

func newController(t *testing.T, b Bridge, opts ...func(*Options)) (*Controller, *renderLog) {
	t.Helper()
	doc, err := dom.ParseString(page)
	require.NoError(t, err)
	log := &renderLog{}
	o := Options{
		Document:     doc,
		Bridge:       b,
		ReadyTimeout: 20 * time.Millisecond,
		Clock:        testutil.NewFakeClock(),
		OnRender:     log.add,
	}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := New(o)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, log
}

func startController(t *testing.T, b Bridge, opts ...func(*Options)) (*Controller, *renderLog) {
	t.Helper()
	c, log := newController(t, b, opts...)
	require.NoError(t, c.Start(context.Background()))
	return c, log
}

func waitSaves(t *testing.T, b *fakeBridge, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return slices.Equal(b.savedSnapshot(), want)
	}, time.Second, 5*time.Millisecond, "saves = %v, want %v", b.savedSnapshot(), want)
}

func TestNewRequiresRecorderElement(t *testing.T) {
	doc, err := dom.ParseString(`<html><body></body></html>`)
	require.NoError(t, err)
	_, err = New(Options{Document: doc, Bridge: &fakeBridge{}})
	require.ErrorContains(t, err, "hotkey_recorder")

	_, err = New(Options{Bridge: &fakeBridge{}})
	require.Error(t, err)
}

func TestStartRendersPersistedChord(t *testing.T) {
	c, log := startController(t, &fakeBridge{hotkey: "command+shift+s"})

	view := c.View()
	require.Equal(t, "idle", view.State)
	require.Equal(t, "command+shift+s", view.Hotkey)
	require.Contains(t, view.HTML, `<kbd class="hotkey-key">⌘</kbd><kbd class="hotkey-key">⇧</kbd><kbd class="hotkey-key">S</kbd>`)
	require.Contains(t, view.HTML, `id="clear_hotkey"`)
	require.Equal(t, []string{"idle"}, log.states())
}

func TestStartTwiceFails(t *testing.T) {
	c, _ := startController(t, &fakeBridge{})
	require.Error(t, c.Start(context.Background()))
}

func TestBindThroughPage(t *testing.T) {
	b := &fakeBridge{}
	c, log := startController(t, b)
	require.Contains(t, c.View().HTML, "Click to record")

	click := c.DispatchClick(RecorderID)
	require.True(t, click.PropagationStopped())
	require.Equal(t, recorder.StateRecording, c.Recorder().State())
	require.True(t, dom.HasClass(c.Document().GetElementByID(RecorderID), "recording"))

	c.DispatchKey(dom.KeyDown, hotkeys.KeyEvent{Key: "Meta", Meta: true})
	require.Contains(t, c.View().HTML, "⌘")
	c.DispatchKey(dom.KeyDown, hotkeys.KeyEvent{Key: "Shift", Meta: true, Shift: true})
	ev := c.DispatchKey(dom.KeyDown, hotkeys.KeyEvent{Key: "S", Code: "KeyS", Meta: true, Shift: true})
	require.True(t, ev.DefaultPrevented())

	view := c.View()
	require.Equal(t, "idle", view.State)
	require.Equal(t, "command+shift+s", view.Hotkey)
	require.Contains(t, view.HTML, `id="clear_hotkey"`)
	require.False(t, dom.HasClass(c.Document().GetElementByID(RecorderID), "recording"))
	waitSaves(t, b, "command+shift+s")
	require.Equal(t, []bool{true, false}, b.pauseSnapshot())
	require.Equal(t, []string{"idle", "recording", "recording", "recording", "idle"}, log.states())
}

func TestRejectedStateIsPublished(t *testing.T) {
	b := &fakeBridge{}
	c, log := startController(t, b)
	c.DispatchClick(RecorderID)
	c.DispatchKey(dom.KeyDown, hotkeys.KeyEvent{Key: "o", Code: "KeyO"})

	view := c.View()
	require.Equal(t, "rejected", view.State)
	require.Contains(t, view.HTML, `class="placeholder error"`)
	require.Equal(t, "rejected", log.states()[len(log.states())-1])
	require.Empty(t, b.savedSnapshot())
}

func TestClearBinding(t *testing.T) {
	b := &fakeBridge{hotkey: "f5"}
	c, _ := startController(t, b)
	require.Contains(t, c.View().HTML, "F5")

	ev := c.DispatchClick("clear_hotkey")
	require.True(t, ev.PropagationStopped())

	view := c.View()
	require.Equal(t, "idle", view.State)
	require.Equal(t, "", view.Hotkey)
	require.Contains(t, view.HTML, "Click to record")
	require.NotContains(t, view.HTML, "clear_hotkey")
	require.Equal(t, recorder.StateIdle, c.Recorder().State())
	require.Empty(t, b.pauseSnapshot(), "clearing must not start a recording session")
	waitSaves(t, b, "")
}

func TestCancelByOutsideClickKeepsPersisted(t *testing.T) {
	b := &fakeBridge{hotkey: "command+shift+s"}
	c, _ := startController(t, b)

	c.DispatchClick(RecorderID)
	c.DispatchKey(dom.KeyDown, hotkeys.KeyEvent{Key: "Meta", Meta: true})
	c.DispatchClick("launch_at_login")

	view := c.View()
	require.Equal(t, "idle", view.State)
	require.Equal(t, "command+shift+s", view.Hotkey)
	require.Contains(t, view.HTML, "⌘")
	require.Equal(t, []bool{true, false}, b.pauseSnapshot())
	require.Empty(t, b.savedSnapshot())
}

func TestClickInsideRecorderWhileRecordingKeepsSession(t *testing.T) {
	c, _ := startController(t, &fakeBridge{})
	c.DispatchClick(RecorderID)
	session := c.Recorder().SessionID()
	c.DispatchClick(RecorderID)
	require.Equal(t, recorder.StateRecording, c.Recorder().State())
	require.Equal(t, session, c.Recorder().SessionID())
}

func TestUnknownClickTargetIsOutside(t *testing.T) {
	c, _ := startController(t, &fakeBridge{})
	c.DispatchClick(RecorderID)
	c.DispatchClick("no-such-element")
	require.Equal(t, recorder.StateIdle, c.Recorder().State())
}

func TestBridgeMissing(t *testing.T) {
	logs := testutil.CaptureLogBuffer(t, slog.LevelWarn)
	adapter := bridge.New()
	c, _ := startController(t, adapter)

	require.Contains(t, c.View().HTML, "Click to record")
	c.DispatchClick(RecorderID)
	require.Equal(t, recorder.StateRecording, c.Recorder().State())
	c.DispatchKey(dom.KeyDown, hotkeys.KeyEvent{Key: "F5", Code: "F5"})

	view := c.View()
	require.Equal(t, "idle", view.State)
	require.Contains(t, view.HTML, `<kbd class="hotkey-key">F5</kbd>`)

	c.Close()
	require.Contains(t, logs.String(), "host bridge not ready")
	require.Contains(t, logs.String(), "set_config")
}

func TestLoadFailureTreatedAsEmpty(t *testing.T) {
	logs := testutil.CaptureLogBuffer(t, slog.LevelWarn)
	c, _ := startController(t, &fakeBridge{hotkey: "f5", loadErr: errors.New("ipc closed")})
	require.Equal(t, "", c.View().Hotkey)
	require.Contains(t, c.View().HTML, "Click to record")
	require.Contains(t, logs.String(), "failed to load hotkey")
}

func TestMalformedPersistedHotkeyTreatedAsEmpty(t *testing.T) {
	logs := testutil.CaptureLogBuffer(t, slog.LevelWarn)
	c, _ := startController(t, &fakeBridge{hotkey: "command+shift"})
	require.Equal(t, "", c.View().Hotkey)
	require.Contains(t, logs.String(), "malformed")
}

func TestSaveFailureIsLoggedOnly(t *testing.T) {
	logs := testutil.CaptureLogBuffer(t, slog.LevelWarn)
	b := &fakeBridge{saveErr: bridge.ErrPersistFailed}
	c, _ := startController(t, b)

	c.DispatchClick(RecorderID)
	c.DispatchKey(dom.KeyDown, hotkeys.KeyEvent{Key: "F7", Code: "F7"})
	waitSaves(t, b, "f7")
	c.Close()

	require.Equal(t, "f7", c.View().Hotkey)
	require.Contains(t, logs.String(), "failed to save hotkey")
}

func TestSavesAreCoalesced(t *testing.T) {
	b := &fakeBridge{hotkey: "f5", gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	c, _ := startController(t, b)

	c.DispatchClick("clear_hotkey")
	<-b.entered

	for _, key := range []string{"F6", "F8"} {
		c.DispatchClick(RecorderID)
		c.DispatchKey(dom.KeyDown, hotkeys.KeyEvent{Key: key, Code: key})
	}
	close(b.gate)

	waitSaves(t, b, "", "f8")
}

func TestCloseFlushesPendingSave(t *testing.T) {
	b := &fakeBridge{}
	c, _ := startController(t, b)
	c.DispatchClick(RecorderID)
	c.DispatchKey(dom.KeyDown, hotkeys.KeyEvent{Key: "k", Code: "KeyK", Ctrl: true})
	c.Close()
	require.Equal(t, []string{"control+k"}, b.savedSnapshot())
}

func TestCloseDuringRecording(t *testing.T) {
	b := &fakeBridge{}
	c, _ := startController(t, b)
	c.DispatchClick(RecorderID)
	c.Close()
	c.Close()

	require.Equal(t, []bool{true, false}, b.pauseSnapshot())
	require.Zero(t, c.Document().ListenerCount())
	ev := c.DispatchClick(RecorderID)
	require.False(t, ev.Consumed())
	require.Equal(t, recorder.StateIdle, c.Recorder().State())
}

func TestReload(t *testing.T) {
	b := &fakeBridge{hotkey: "f5"}
	c, _ := startController(t, b)

	b.setHotkey("control+option+p")
	c.Reload(context.Background())
	require.Equal(t, "control+option+p", c.View().Hotkey)
	require.Contains(t, c.View().HTML, "⌃")

	c.DispatchClick(RecorderID)
	b.setHotkey("f9")
	c.Reload(context.Background())
	view := c.View()
	require.Equal(t, "recording", view.State)
	require.Contains(t, view.HTML, "Press a hotkey")
	require.Equal(t, "f9", c.Recorder().Persisted().String())

	c.DispatchClick("launch_at_login")
	require.Contains(t, c.View().HTML, "F9")
}

func TestStartWaitsForSlowBridge(t *testing.T) {
	logs := testutil.CaptureLogBuffer(t, slog.LevelWarn)
	b := &fakeBridge{notReady: true, hotkey: "f4"}
	start := time.Now()
	c, _ := startController(t, b, func(o *Options) { o.ReadyTimeout = 30 * time.Millisecond })
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	require.Equal(t, "f4", c.View().Hotkey)
	require.Contains(t, logs.String(), "not ready")
}
