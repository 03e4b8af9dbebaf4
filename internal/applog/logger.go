// Package applog configures the process logger: JSONL output under the
// user state directory with Warn+ records teed to the settings page.
package applog

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName  = "snaptext"
	logFileName = "settings.log.jsonl"
)

// userHomeDirFn is a test seam.
var userHomeDirFn = os.UserHomeDir

// Options configures New.
type Options struct {
	// Path overrides the resolved log path.
	Path  string
	Level slog.Level
	// OnWarning receives records at WarnLevel and above. Nil disables the tee.
	OnWarning EntryCallback
	// Fallback receives output when the log file cannot be opened.
	// Defaults to os.Stderr.
	Fallback io.Writer
}

// Runtime bundles the configured logger and its file handle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close closes the log file. It is safe on a zero Runtime.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New builds the logger. When the file cannot be opened the logger writes
// text to Fallback and the returned error explains why; the Runtime is
// usable either way.
func New(opts Options) (Runtime, error) {
	fallback := opts.Fallback
	if fallback == nil {
		fallback = os.Stderr
	}

	path := opts.Path
	var err error
	if path == "" {
		path, err = ResolvePath()
	}
	var f *os.File
	if err == nil {
		if err = os.MkdirAll(filepath.Dir(path), 0o700); err == nil {
			f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		}
	}

	var base slog.Handler
	rt := Runtime{}
	if err != nil {
		base = slog.NewTextHandler(fallback, &slog.HandlerOptions{Level: opts.Level})
	} else {
		base = slog.NewJSONHandler(f, &slog.HandlerOptions{Level: opts.Level})
		rt.Path = path
		rt.closer = f
	}
	rt.Logger = slog.New(NewTeeHandler(base, slog.LevelWarn, opts.OnWarning))
	return rt, err
}

// ResolvePath selects XDG_STATE_HOME when set, otherwise ~/.local/state.
func ResolvePath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appDirName, logFileName), nil
	}
	home, err := userHomeDirFn()
	if err != nil {
		return "", err
	}
	if home == "" {
		return "", errors.New("resolve log path: empty home directory")
	}
	return filepath.Join(home, ".local", "state", appDirName, logFileName), nil
}
