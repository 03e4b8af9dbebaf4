package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"snaptext/internal/config"
)

// NOTE: Tests in this package override package-level function variables
// (runtimeEventsEmitFn, runtimeLogger, window seams). Do not use t.Parallel().

type emittedEvent struct {
	name    string
	payload any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (r *eventRecorder) emit(_ context.Context, name string, data ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var payload any
	if len(data) > 0 {
		payload = data[0]
	}
	r.events = append(r.events, emittedEvent{name: name, payload: payload})
}

func (r *eventRecorder) named(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, ev := range r.events {
		if ev.name == name {
			out = append(out, ev.payload)
		}
	}
	return out
}

type testRuntimeLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *testRuntimeLogger) Warningf(_ context.Context, message string, _ ...any) {
	l.mu.Lock()
	l.warnings = append(l.warnings, message)
	l.mu.Unlock()
}

func (l *testRuntimeLogger) Infof(context.Context, string, ...any) {}

func (l *testRuntimeLogger) warningCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warnings)
}

// stubRuntime replaces the Wails seams for the duration of the test.
func stubRuntime(t *testing.T) (*eventRecorder, *testRuntimeLogger) {
	t.Helper()
	origEmit := runtimeEventsEmitFn
	origLogger := runtimeLogger
	origShow := runtimeWindowShowFn
	origUnminimise := runtimeWindowUnminimiseFn
	origOnTop := runtimeWindowSetAlwaysOnTopFn
	t.Cleanup(func() {
		runtimeEventsEmitFn = origEmit
		runtimeLogger = origLogger
		runtimeWindowShowFn = origShow
		runtimeWindowUnminimiseFn = origUnminimise
		runtimeWindowSetAlwaysOnTopFn = origOnTop
	})

	events := &eventRecorder{}
	logger := &testRuntimeLogger{}
	runtimeEventsEmitFn = events.emit
	runtimeLogger = logger
	runtimeWindowShowFn = func(context.Context) {}
	runtimeWindowUnminimiseFn = func(context.Context) {}
	runtimeWindowSetAlwaysOnTopFn = func(context.Context, bool) {}
	return events, logger
}

func newConfigPathForTest(t *testing.T) string {
	t.Helper()
	localAppData := t.TempDir()
	t.Setenv("LOCALAPPDATA", localAppData)
	t.Setenv("APPDATA", "")
	return config.DefaultPath()
}

// newTestApp builds an App with a runtime context and a config file on
// disk, without starting the controller or watchers.
func newTestApp(t *testing.T) *App {
	t.Helper()
	app := NewApp(AppOptions{})
	app.setRuntimeContext(context.Background())
	app.configPath = newConfigPathForTest(t)
	app.pauseFilePath = filepath.Join(t.TempDir(), pauseMarkerDir, pauseMarkerFile)
	cfg, err := config.EnsureFile(app.configPath)
	if err != nil {
		t.Fatalf("EnsureFile() error = %v", err)
	}
	app.setConfigSnapshot(cfg)
	return app
}

// startTestController wires the bridge and starts the recorder controller
// synchronously.
func startTestController(t *testing.T, app *App) {
	t.Helper()
	app.bridge.Inject(hostBridge{app: app})
	if err := app.startController(context.Background()); err != nil {
		t.Fatalf("startController() error = %v", err)
	}
	app.bgWG.Wait()
	t.Cleanup(func() {
		if c, err := app.requireController(); err == nil {
			c.Close()
		}
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
