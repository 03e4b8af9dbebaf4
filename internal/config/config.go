// Package config loads and persists the snaptext user configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"snaptext/internal/hotkeys"
)

const (
	maxConfigFileBytes int64 = 1 << 20
	maxRenameRetry           = 10
	// Linear backoff between rename attempts while Windows holds a lock.
	renameRetryBaseDelay = 10 * time.Millisecond

	appDirName     = "snaptext"
	configFileName = "config.yaml"

	minPort            = 1
	maxPort            = 65535
	minHistoryLimit    = 1
	maxHistoryLimit    = 1000
	defaultHotkeySpec  = "command+shift+o"
	defaultServicePort = 9999
)

// Languages lists the accepted OCR language settings.
var Languages = []string{"auto", "zh", "en", "ja", "ko"}

// Modes lists the accepted OCR recognition modes.
var Modes = []string{"fast", "accurate"}

// defaultConfigDirFn and userHomeDirFn are test seams.
var defaultConfigDirFn = defaultConfigDir
var userHomeDirFn = os.UserHomeDir
var yamlUnmarshalMetadataFn = func(raw []byte, out *map[string]any) error {
	return yaml.Unmarshal(raw, out)
}

var defaultPathWarningState struct {
	mu       sync.Mutex
	messages []string
}

func recordDefaultPathWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	defaultPathWarningState.mu.Lock()
	defaultPathWarningState.messages = append(defaultPathWarningState.messages, trimmed)
	defaultPathWarningState.mu.Unlock()
}

// ConsumeDefaultPathWarnings returns and clears the user-facing warnings
// recorded while resolving DefaultPath.
func ConsumeDefaultPathWarnings() []string {
	defaultPathWarningState.mu.Lock()
	defer defaultPathWarningState.mu.Unlock()
	out := defaultPathWarningState.messages
	defaultPathWarningState.messages = nil
	return out
}

// Stats holds recognition counters shown on the settings page.
type Stats struct {
	TodayCount int    `yaml:"today_count" json:"today_count"`
	TotalCount int    `yaml:"total_count" json:"total_count"`
	LastDate   string `yaml:"last_date" json:"last_date"`
}

// Config is the persisted user configuration.
type Config struct {
	Port          int    `yaml:"port" json:"port"`
	Language      string `yaml:"language" json:"language"`
	Mode          string `yaml:"mode" json:"mode"`
	LaunchAtLogin bool   `yaml:"launch_at_login" json:"launch_at_login"`
	SilentMode    bool   `yaml:"silent_mode" json:"silent_mode"`
	// Hotkey is a canonical chord string; "" means no global hotkey.
	Hotkey       string `yaml:"hotkey" json:"hotkey"`
	HistoryLimit int    `yaml:"history_limit" json:"history_limit"`
	Stats        Stats  `yaml:"stats" json:"stats"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Port:          defaultServicePort,
		Language:      "auto",
		Mode:          "accurate",
		LaunchAtLogin: false,
		SilentMode:    true,
		Hotkey:        defaultHotkeySpec,
		HistoryLimit:  20,
	}
}

// DefaultPath resolves the config file path under LOCALAPPDATA, then
// APPDATA, then ~/.config. When no home directory is available it falls
// back to the temp dir and records a warning for the UI.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
	if base == "" {
		base = strings.TrimSpace(os.Getenv("APPDATA"))
	}
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", err)
			recordDefaultPathWarning(
				"Config path fallback: no LOCALAPPDATA, APPDATA or home directory. Settings are stored in the temp directory and may not persist.",
			)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, appDirName, configFileName)
}

// Load reads the config at path. A missing or empty file yields defaults.
// Keys absent from the file keep their defaults; an explicit empty hotkey
// stays unbound. Out-of-range values are reset with a warning.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config, using defaults", "path", path, "error", err)
		return DefaultConfig(), err
	}

	if rawMap, metaErr := parseRawMetadata(raw); metaErr != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config metadata", "error", metaErr)
	} else {
		warnUnknownKeys(rawMap)
		if value, ok := rawMap["hotkey"]; ok && value == nil {
			cfg.Hotkey = ""
		}
	}
	normalize(&cfg)
	return cfg, nil
}

// EnsureFile writes the default config when none exists and returns the
// loaded config.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Save normalizes cfg and writes it atomically. It returns the config that
// was written.
func Save(path string, cfg Config) (Config, error) {
	normalizedPath, err := validateConfigPath(path)
	if err != nil {
		return cfg, err
	}
	if isZeroConfig(cfg) {
		cfg = DefaultConfig()
	}
	normalize(&cfg)

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicWrite(normalizedPath, raw); err != nil {
		return cfg, err
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", normalizedPath)
	return cfg, nil
}

// normalize resets invalid fields in place. It never fails: a bad value in
// one field must not cost the user the rest of their settings.
func normalize(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Port < minPort || cfg.Port > maxPort {
		slog.Warn("[WARN-CONFIG] port out of range, using default",
			"port", cfg.Port, "default", defaults.Port)
		cfg.Port = defaults.Port
	}
	if !slices.Contains(Languages, cfg.Language) {
		slog.Warn("[WARN-CONFIG] unsupported language, using default",
			"language", cfg.Language, "default", defaults.Language)
		cfg.Language = defaults.Language
	}
	if !slices.Contains(Modes, cfg.Mode) {
		slog.Warn("[WARN-CONFIG] unsupported mode, using default",
			"mode", cfg.Mode, "default", defaults.Mode)
		cfg.Mode = defaults.Mode
	}
	if clamped := min(max(cfg.HistoryLimit, minHistoryLimit), maxHistoryLimit); clamped != cfg.HistoryLimit {
		slog.Warn("[WARN-CONFIG] history_limit out of range, clamping",
			"history_limit", cfg.HistoryLimit, "clamped", clamped)
		cfg.HistoryLimit = clamped
	}
	cfg.Hotkey = normalizeHotkey(cfg.Hotkey)
}

func normalizeHotkey(spec string) string {
	chord, err := hotkeys.Parse(spec)
	if err != nil {
		slog.Warn("[WARN-CONFIG] malformed hotkey dropped", "hotkey", spec, "error", err)
		return ""
	}
	if canonical := chord.String(); canonical != spec {
		slog.Debug("[DEBUG-CONFIG] hotkey normalized", "from", spec, "to", canonical)
		return canonical
	}
	return spec
}

// atomicWrite replaces path with data through a synced temp file in the
// same directory. The OCR service reads the file concurrently and must never
// see a partial document.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	tmpPath, err := writeTemp(dir, data)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := renameFileWithRetry(tmpPath, path); err != nil {
		discardTemp(tmpPath)
		return fmt.Errorf("write config: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeTemp creates a 0600 temp file in dir holding data and returns its
// path. On error nothing is left behind.
func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+configFileName+".tmp.*")
	if err != nil {
		return "", err
	}
	tmpPath := f.Name()

	writeErr := f.Chmod(0o600)
	if writeErr == nil {
		_, writeErr = f.Write(data)
	}
	if writeErr == nil {
		writeErr = f.Sync()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		discardTemp(tmpPath)
		return "", writeErr
	}
	return tmpPath, nil
}

func discardTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("[WARN-CONFIG] failed to remove temp file", "path", path, "error", err)
	}
}

// validateConfigPath resolves path and confines writes to the directory of
// DefaultPath.
func validateConfigPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("config path required")
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("save config: %w", err)
	}
	dir, err := defaultConfigDirFn()
	if err == nil {
		dir, err = filepath.Abs(dir)
	}
	if err != nil {
		return "", fmt.Errorf("save config: config dir: %w", err)
	}
	if !pathWithinDir(target, dir) {
		return "", fmt.Errorf("save config: %q is outside config directory %q", target, dir)
	}
	return target, nil
}

func defaultConfigDir() (string, error) {
	return filepath.Dir(DefaultPath()), nil
}

// pathWithinDir reports whether path lies under dir. Cross-drive paths on
// Windows produce an absolute Rel result and are rejected.
func pathWithinDir(path string, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

func parseRawMetadata(raw []byte) (map[string]any, error) {
	var rawMap map[string]any
	if err := yamlUnmarshalMetadataFn(raw, &rawMap); err != nil {
		return nil, err
	}
	return rawMap, nil
}

var knownKeys = map[string]struct{}{
	"port": {}, "language": {}, "mode": {}, "launch_at_login": {},
	"silent_mode": {}, "hotkey": {}, "history_limit": {}, "stats": {},
}

func warnUnknownKeys(rawMap map[string]any) {
	for key := range rawMap {
		if _, ok := knownKeys[key]; !ok {
			slog.Warn("[WARN-CONFIG] unknown config key ignored", "key", key)
		}
	}
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func isZeroConfig(cfg Config) bool {
	return cfg == Config{}
}

// renameFileWithRetry retries while another process (antivirus, the OCR
// service) briefly holds the target open on Windows.
func renameFileWithRetry(sourcePath string, targetPath string) error {
	err := os.Rename(sourcePath, targetPath)
	for attempt := 1; err != nil && runtime.GOOS == "windows" && attempt < maxRenameRetry; attempt++ {
		time.Sleep(time.Duration(attempt) * renameRetryBaseDelay)
		err = os.Rename(sourcePath, targetPath)
	}
	return err
}
