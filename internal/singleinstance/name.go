// Package singleinstance keeps one settings window per user session. A
// second launch finds the lock held and exits instead of opening another
// recorder that would fight over the global hotkey.
package singleinstance

import (
	"errors"
	"os"
	"os/user"
	"regexp"
	"strings"
)

// ErrAlreadyRunning is returned by TryLock when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

const namePrefix = "snaptext-settings-"

var invalidUsernameRune = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeUsername makes value safe inside a mutex or file name.
func sanitizeUsername(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return invalidUsernameRune.ReplaceAllString(value, "_")
}

// currentUsername prefers the login environment and falls back to the
// account database.
func currentUsername() string {
	for _, key := range []string{"USERNAME", "USER"} {
		if name := strings.TrimSpace(os.Getenv(key)); name != "" {
			return name
		}
	}
	if current, err := user.Current(); err == nil {
		return current.Username
	}
	return ""
}
