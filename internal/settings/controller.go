// Package settings drives the hotkey section of the settings page: it loads
// the persisted chord through the host bridge, renders it, and owns the
// recorder and its persistence.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"

	"snaptext/internal/dom"
	"snaptext/internal/hotkeys"
	"snaptext/internal/recorder"
	"snaptext/internal/render"
	"snaptext/internal/workerutil"
)

// RecorderID is the id of the recorder element on the page.
const RecorderID = "hotkey_recorder"

// DefaultReadyTimeout bounds the wait for the host bridge at start.
const DefaultReadyTimeout = 3 * time.Second

// Bridge is the subset of the host bridge adapter the controller uses.
type Bridge interface {
	WhenReady(ctx context.Context) error
	LoadHotkey(ctx context.Context) (string, error)
	SaveHotkey(ctx context.Context, c hotkeys.Chord) error
	PauseGlobalHotkey(paused bool)
}

// View is a snapshot of the recorder as the page should show it.
type View struct {
	State  string `json:"state"`
	HTML   string `json:"html"`
	Hotkey string `json:"hotkey"`
}

// Options configures a Controller.
type Options struct {
	Document *dom.Document
	Bridge   Bridge
	// Messages overrides display strings; nil uses render.DefaultMessages.
	Messages render.Messages
	// ReadyTimeout defaults to DefaultReadyTimeout.
	ReadyTimeout time.Duration
	// Clock drives the reject timeout; nil uses the system clock.
	Clock recorder.Clock
	// OnRender receives every freshly rendered view. It may run while the
	// recorder is handling an event, so it must not block or call back into
	// the Controller.
	OnRender func(View)
}

// Controller owns the recorder for one page.
type Controller struct {
	doc          *dom.Document
	bridge       Bridge
	renderer     *render.Renderer
	element      *html.Node
	rec          *recorder.Recorder
	readyTimeout time.Duration
	onRender     func(View)

	saves *workerutil.Mailbox[hotkeys.Chord]
	wg    sync.WaitGroup

	// persistedMu is a leaf lock; sink methods take it under the recorder lock.
	persistedMu sync.Mutex
	persisted   hotkeys.Chord

	mu          sync.Mutex
	started     bool
	removeClick func()
	cancel      context.CancelFunc
	closing     atomic.Bool
}

// New locates the recorder element and builds an idle controller.
func New(opts Options) (*Controller, error) {
	if opts.Document == nil {
		return nil, errors.New("document is required")
	}
	if opts.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	element := opts.Document.GetElementByID(RecorderID)
	if element == nil {
		return nil, fmt.Errorf("recorder element #%s not found", RecorderID)
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}

	c := &Controller{
		doc:          opts.Document,
		bridge:       opts.Bridge,
		renderer:     render.New(opts.Messages),
		element:      element,
		readyTimeout: opts.ReadyTimeout,
		onRender:     opts.OnRender,
		saves:        workerutil.NewMailbox[hotkeys.Chord](),
	}
	rec, err := recorder.New(recorder.Options{
		Element: element,
		Target:  opts.Document,
		Sink:    pageSink{c},
		Clock:   opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("create recorder: %w", err)
	}
	c.rec = rec
	return c, nil
}

// Start waits for the bridge, loads and renders the persisted chord, and
// installs the recorder click handler. It blocks for at most ReadyTimeout
// plus one bridge call.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.closing.Load() {
		c.mu.Unlock()
		return errors.New("controller already started or closed")
	}
	c.started = true
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.mu.Unlock()

	workerutil.Run(workerCtx, "hotkey-persist", &c.wg, c.persistLoop, workerutil.Options{
		IsShutdown: c.closing.Load,
	})

	readyCtx, readyCancel := context.WithTimeout(ctx, c.readyTimeout)
	err := c.bridge.WhenReady(readyCtx)
	readyCancel()
	if err != nil {
		slog.Warn("[WARN-SETTINGS] host bridge not ready, continuing without it", "error", err)
	}

	chord := c.load(ctx)
	c.rec.SetPersisted(chord)
	pageSink{c}.RenderIdle(chord)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing.Load() {
		return nil
	}
	c.removeClick = c.doc.AddEventListener(c.element, dom.Click, c.onRecorderClick)
	slog.Debug("[DEBUG-SETTINGS] hotkey recorder ready", "hotkey", chord.String())
	return nil
}

// Reload re-reads the persisted chord. The page is re-rendered unless a
// recording session is in progress.
func (c *Controller) Reload(ctx context.Context) {
	chord := c.load(ctx)
	c.rec.SetPersisted(chord)
	c.remember(chord)
	if c.rec.State() == recorder.StateIdle {
		pageSink{c}.RenderIdle(chord)
	}
}

// Close removes the click handler, ends any recording session, and waits
// for pending saves to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closing.Swap(true) {
		c.mu.Unlock()
		return
	}
	if c.removeClick != nil {
		c.removeClick()
		c.removeClick = nil
	}
	cancel := c.cancel
	c.mu.Unlock()

	c.rec.Close()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// View returns the current recorder view.
func (c *Controller) View() View {
	return c.view(string(c.rec.State()), c.Persisted())
}

// Persisted returns the chord last loaded, saved, or cleared.
func (c *Controller) Persisted() hotkeys.Chord {
	c.persistedMu.Lock()
	defer c.persistedMu.Unlock()
	return c.persisted
}

func (c *Controller) remember(chord hotkeys.Chord) {
	c.persistedMu.Lock()
	c.persisted = chord
	c.persistedMu.Unlock()
}

// Recorder exposes the recorder for inspection.
func (c *Controller) Recorder() *recorder.Recorder {
	return c.rec
}

// Document returns the page document.
func (c *Controller) Document() *dom.Document {
	return c.doc
}

// DispatchKey delivers a keyboard event at document level.
func (c *Controller) DispatchKey(typ dom.EventType, ev hotkeys.KeyEvent) *dom.Event {
	return c.doc.Dispatch(dom.NewKeyEvent(typ, nil, ev))
}

// DispatchClick delivers a click to the element with targetID. An unknown
// id is treated as a click on the page outside every element.
func (c *Controller) DispatchClick(targetID string) *dom.Event {
	target := c.doc.GetElementByID(targetID)
	if target == nil {
		target = c.doc.Root()
	}
	return c.doc.Dispatch(dom.NewClickEvent(target))
}

func (c *Controller) onRecorderClick(ev *dom.Event) {
	ev.StopPropagation()
	if clear := c.doc.GetElementByID(render.ClearID); clear != nil && c.doc.Contains(clear, ev.Target) {
		c.clear()
		return
	}
	c.rec.Activate()
}

func (c *Controller) clear() {
	slog.Debug("[DEBUG-SETTINGS] hotkey cleared", "previous", c.rec.Persisted().String())
	c.rec.SetPersisted(hotkeys.Chord{})
	pageSink{c}.RenderIdle(hotkeys.Chord{})
	c.queueSave(hotkeys.Chord{})
}

func (c *Controller) load(ctx context.Context) hotkeys.Chord {
	raw, err := c.bridge.LoadHotkey(ctx)
	if err != nil {
		slog.Warn("[WARN-SETTINGS] failed to load hotkey, treating as unbound", "error", err)
		return hotkeys.Chord{}
	}
	chord, err := hotkeys.Parse(raw)
	if err != nil {
		slog.Warn("[WARN-SETTINGS] persisted hotkey is malformed, treating as unbound",
			"hotkey", raw, "error", err)
		return hotkeys.Chord{}
	}
	return chord
}

func (c *Controller) queueSave(chord hotkeys.Chord) {
	if c.saves.Put(chord) {
		slog.Debug("[DEBUG-SETTINGS] superseded pending hotkey save", "hotkey", chord.String())
	}
}

func (c *Controller) persistLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.flushSave(context.WithoutCancel(ctx))
			return
		case <-c.saves.Ready():
			c.flushSave(ctx)
		}
	}
}

func (c *Controller) flushSave(ctx context.Context) {
	chord, ok := c.saves.Take()
	if !ok {
		return
	}
	if err := c.bridge.SaveHotkey(ctx, chord); err != nil {
		slog.Warn("[WARN-SETTINGS] failed to save hotkey", "hotkey", chord.String(), "error", err)
		return
	}
	slog.Debug("[DEBUG-SETTINGS] hotkey saved", "hotkey", chord.String())
}

func (c *Controller) view(state string, persisted hotkeys.Chord) View {
	content, err := c.doc.InnerHTML(c.element)
	if err != nil {
		slog.Warn("[WARN-SETTINGS] failed to serialize recorder", "error", err)
	}
	return View{State: state, HTML: content, Hotkey: persisted.String()}
}

func (c *Controller) publish(state recorder.State, persisted hotkeys.Chord) {
	if c.onRender == nil {
		return
	}
	c.onRender(c.view(string(state), persisted))
}
