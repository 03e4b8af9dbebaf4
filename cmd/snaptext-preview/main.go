// Command snaptext-preview serves the settings page to a regular browser so
// the hotkey recorder can be exercised without the desktop shell.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"snaptext/frontend"
	"snaptext/internal/bridge"
	"snaptext/internal/dom"
	"snaptext/internal/settings"
	"snaptext/internal/wsserver"
)

// CLI defines the preview command line.
type CLI struct {
	Addr         string        `default:"127.0.0.1:8765" help:"Listen address for the preview server."`
	ReadyTimeout time.Duration `default:"500ms" help:"How long the page waits for the host bridge."`
	Hotkey       string        `default:"command+shift+o" help:"Initial hotkey of the in-memory host."`
	NoHost       bool          `help:"Run without a host bridge; saves become no-ops."`
	LogLevel     string        `default:"info" enum:"debug,info,warn,error" help:"Log level."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("snaptext-preview"),
		kong.Description("Serve the SnapText settings page with a live hotkey recorder."),
	)
	kctx.FatalIfErrorf(cli.Run())
}

// Run starts the preview server and blocks until interrupted.
func (c *CLI) Run() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(c.LogLevel)})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPreview(c)
	if err != nil {
		return err
	}
	if err := p.start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "settings preview at %s\n", p.hub.PageURL())

	<-ctx.Done()
	return p.stop()
}

type preview struct {
	hub        *wsserver.Hub
	controller *settings.Controller
	bridge     *bridge.Adapter
	host       *memHost
}

func newPreview(c *CLI) (*preview, error) {
	raw, err := frontend.Index()
	if err != nil {
		return nil, fmt.Errorf("read settings page: %w", err)
	}
	doc, err := dom.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse settings page: %w", err)
	}

	p := &preview{bridge: bridge.New()}
	if !c.NoHost {
		p.host = newMemHost(c.Hotkey)
	}
	p.hub = wsserver.NewHub(wsserver.HubOptions{
		Addr:      c.Addr,
		Assets:    http.FileServerFS(frontend.Dist()),
		OnMessage: p.handle,
		OnConnect: p.pushView,
	})
	p.controller, err = settings.New(settings.Options{
		Document:     doc,
		Bridge:       p.bridge,
		ReadyTimeout: c.ReadyTimeout,
		OnRender:     func(v settings.View) { p.hub.SendView(v) },
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *preview) start(ctx context.Context) error {
	if p.host != nil {
		p.bridge.Inject(p.host)
	}
	if err := p.controller.Start(ctx); err != nil {
		return err
	}
	return p.hub.Start(ctx)
}

func (p *preview) stop() error {
	p.controller.Close()
	return p.hub.Stop()
}

func (p *preview) pushView() {
	p.hub.SendView(p.controller.View())
}

// handle routes one browser event into the page model.
func (p *preview) handle(msg wsserver.PageMessage) {
	switch msg.Type {
	case wsserver.TypeKeyDown:
		p.controller.DispatchKey(dom.KeyDown, *msg.Event)
	case wsserver.TypeKeyUp:
		p.controller.DispatchKey(dom.KeyUp, *msg.Event)
	case wsserver.TypeClick:
		p.controller.DispatchClick(msg.Target)
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
