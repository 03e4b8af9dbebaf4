package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"snaptext/internal/hotkeys"
)

var (
	// ErrUnknownKey reports a set_config key the host does not manage.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue reports a set_config value of the wrong type or range.
	ErrInvalidValue = errors.New("invalid config value")
)

// Setting keys accepted by Set.
const (
	KeyPort          = "port"
	KeyLanguage      = "language"
	KeyMode          = "mode"
	KeyLaunchAtLogin = "launch_at_login"
	KeySilentMode    = "silent_mode"
	KeyHotkey        = "hotkey"
	KeyHistoryLimit  = "history_limit"
)

// Set applies one key from the page's set_config call to cfg. Values arrive
// JSON-decoded, so numbers may be float64.
func Set(cfg *Config, key string, value any) error {
	switch key {
	case KeyHotkey:
		spec, ok := value.(string)
		if !ok {
			return invalid(key, value)
		}
		chord, err := hotkeys.Parse(spec)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}
		if !chord.IsEmpty() && !chord.IsSafe() {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, hotkeys.ErrUnsafeChord)
		}
		cfg.Hotkey = chord.String()
	case KeyLaunchAtLogin, KeySilentMode:
		b, ok := value.(bool)
		if !ok {
			return invalid(key, value)
		}
		if key == KeyLaunchAtLogin {
			cfg.LaunchAtLogin = b
		} else {
			cfg.SilentMode = b
		}
	case KeyPort:
		n, ok := asInt(value)
		if !ok || n < minPort || n > maxPort {
			return invalid(key, value)
		}
		cfg.Port = n
	case KeyHistoryLimit:
		n, ok := asInt(value)
		if !ok || n < minHistoryLimit || n > maxHistoryLimit {
			return invalid(key, value)
		}
		cfg.HistoryLimit = n
	case KeyLanguage:
		s, ok := value.(string)
		if !ok || !slices.Contains(Languages, s) {
			return invalid(key, value)
		}
		cfg.Language = s
	case KeyMode:
		s, ok := value.(string)
		if !ok || !slices.Contains(Modes, s) {
			return invalid(key, value)
		}
		cfg.Mode = s
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

// Public returns the get_config payload for the settings page.
func Public(cfg Config) map[string]any {
	return map[string]any{
		KeyPort:          cfg.Port,
		KeyLanguage:      cfg.Language,
		KeyMode:          cfg.Mode,
		KeyLaunchAtLogin: cfg.LaunchAtLogin,
		KeySilentMode:    cfg.SilentMode,
		KeyHotkey:        cfg.Hotkey,
		KeyHistoryLimit:  cfg.HistoryLimit,
		"stats":          TodayStats(cfg.Stats, time.Now()),
	}
}

// TodayStats returns s with the daily counter reset when LastDate is not
// the local date of now.
func TodayStats(s Stats, now time.Time) Stats {
	today := now.Format(time.DateOnly)
	if s.LastDate != today {
		s.TodayCount = 0
		s.LastDate = today
	}
	return s
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

func invalid(key string, value any) error {
	return fmt.Errorf("%w: %s=%v (%T)", ErrInvalidValue, key, value, value)
}
