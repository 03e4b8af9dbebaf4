package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"snaptext/frontend"
	"snaptext/internal/applog"
	"snaptext/internal/config"
	"snaptext/internal/singleinstance"
)

func main() {
	tab := parseTabArg(os.Args[1:])
	warnings := applog.NewRing(applog.DefaultRingCapacity)
	app := NewApp(AppOptions{InitialTab: tab, Warnings: warnings})

	logs, err := applog.New(applog.Options{
		Level:     slog.LevelInfo,
		OnWarning: app.onLogWarning,
	})
	slog.SetDefault(logs.Logger)
	if err != nil {
		slog.Info("[DEBUG-LOG] log file unavailable, logging to stderr", "error", err)
	}
	defer func() {
		if closeErr := logs.Close(); closeErr != nil {
			slog.Info("[DEBUG-LOG] log file close failed", "error", closeErr)
		}
	}()

	// Single-instance check BEFORE any Wails/WebView2 initialization.
	lock, err := singleinstance.TryLock(singleinstance.DefaultName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		slog.Info("[DEBUG-SINGLE] another instance is already running, signaling activation", "tab", tab)
		if sendErr := requestActivation(config.DefaultPath(), tab); sendErr != nil {
			slog.Warn("[DEBUG-SINGLE] failed to signal existing instance", "error", sendErr)
		}
		return
	}
	if err != nil {
		slog.Warn("[DEBUG-SINGLE] single-instance lock failed, proceeding without guard", "error", err)
	}
	if lock != nil {
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				slog.Warn("[DEBUG-SINGLE] single-instance release failed", "error", releaseErr)
			}
		}()
	}

	err = wails.Run(&options.App{
		Title:         "SnapText Settings",
		Width:         600,
		Height:        500,
		DisableResize: true,
		AssetServer: &assetserver.Options{
			Assets: frontend.Dist(),
		},
		BackgroundColour: &options.RGBA{R: 30, G: 30, B: 30, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []any{
			app,
		},
	})
	if err != nil {
		slog.Error("[DEBUG-SINGLE] wails run failed", "error", err)
	}
}
