//go:build unix || windows

package singleinstance

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"
)

func testLockName(t *testing.T, suffix string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		return `Local\snaptext-test-` + suffix
	}
	return filepath.Join(t.TempDir(), suffix+".lock")
}

func TestTryLock(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "first lock succeeds",
			run: func(t *testing.T) {
				lock, err := TryLock(testLockName(t, "first"))
				if err != nil {
					t.Fatalf("TryLock failed: %v", err)
				}
				if err := lock.Release(); err != nil {
					t.Fatalf("Release failed: %v", err)
				}
			},
		},
		{
			name: "second lock reports already running",
			run: func(t *testing.T) {
				name := testLockName(t, "second")
				lock1, err := TryLock(name)
				if err != nil {
					t.Fatalf("first TryLock failed: %v", err)
				}
				defer lock1.Release()

				lock2, err := TryLock(name)
				if !errors.Is(err, ErrAlreadyRunning) {
					if lock2 != nil {
						lock2.Release()
					}
					t.Fatalf("second TryLock error = %v, want ErrAlreadyRunning", err)
				}
			},
		},
		{
			name: "reacquire after release",
			run: func(t *testing.T) {
				name := testLockName(t, "reacquire")
				lock1, err := TryLock(name)
				if err != nil {
					t.Fatalf("first TryLock failed: %v", err)
				}
				if err := lock1.Release(); err != nil {
					t.Fatalf("Release failed: %v", err)
				}
				lock2, err := TryLock(name)
				if err != nil {
					t.Fatalf("TryLock after release failed: %v", err)
				}
				lock2.Release()
			},
		},
		{
			name: "release is idempotent",
			run: func(t *testing.T) {
				lock, err := TryLock(testLockName(t, "idempotent"))
				if err != nil {
					t.Fatalf("TryLock failed: %v", err)
				}
				if err := lock.Release(); err != nil {
					t.Fatalf("first Release failed: %v", err)
				}
				if err := lock.Release(); err != nil {
					t.Fatalf("second Release failed: %v", err)
				}
			},
		},
		{
			name: "nil lock release safe",
			run: func(t *testing.T) {
				var lock *Lock
				if err := lock.Release(); err != nil {
					t.Fatalf("nil Release should be no-op, got: %v", err)
				}
			},
		},
		{
			name: "empty name returns error",
			run: func(t *testing.T) {
				lock, err := TryLock("")
				if err == nil {
					lock.Release()
					t.Fatal("TryLock with empty name should fail")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}
