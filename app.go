package main

import (
	"context"
	"sync"
	"sync/atomic"

	"snaptext/internal/applog"
	"snaptext/internal/bridge"
	"snaptext/internal/config"
	"snaptext/internal/hotkeys"
	"snaptext/internal/settings"
)

// App is the Wails-bound settings host.
type App struct {
	ctx   context.Context
	ctxMu sync.RWMutex

	// Lock ordering (outer -> inner):
	//   cfgSaveMu -> cfgMu
	//
	// Independent locks: ctxMu, startupWarnMu, controllerMu, windowMu.
	// The recorder lock may be held while hostBridge calls into App
	// (SetHotkeyPaused); those paths only touch hotkeys.Manager, never
	// cfgSaveMu.
	cfgMu              sync.RWMutex
	cfgSaveMu          sync.Mutex
	configEventVersion atomic.Uint64
	cfg                config.Config
	configPath         string

	startupWarnMu   sync.Mutex
	startupWarnings []string

	// initialTab comes from the --tab= launch argument.
	initialTab string

	hotkeys       *hotkeys.Manager
	bridge        *bridge.Adapter
	warnings      *applog.Ring
	pauseFilePath string

	controllerMu sync.RWMutex
	controller   *settings.Controller

	watchers []*config.Watcher

	windowMu      sync.Mutex
	windowVisible bool
	shuttingDown  atomic.Bool
	bgCancel      context.CancelFunc
	bgWG          sync.WaitGroup
}

// AppOptions carries launch parameters into NewApp.
type AppOptions struct {
	InitialTab string
	// Warnings receives Warn+ log records; nil allocates a ring.
	Warnings *applog.Ring
}

// NewApp creates the app service.
func NewApp(opts AppOptions) *App {
	warnings := opts.Warnings
	if warnings == nil {
		warnings = applog.NewRing(applog.DefaultRingCapacity)
	}
	return &App{
		initialTab: normalizeTab(opts.InitialTab),
		hotkeys:    hotkeys.NewManager(),
		bridge:     bridge.New(),
		warnings:   warnings,
	}
}
