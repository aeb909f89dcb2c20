package browser

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"
)

var (
	sharedMu       sync.Mutex
	sharedLauncher *Launcher
	sharedErr      error
)

// TestLauncher returns a headless launcher shared by every test in the process.
// The test is skipped under -short or when Chromium cannot be started.
// Call CloseTestLauncher from TestMain.
func TestLauncher(t testing.TB) *Launcher {
	t.Helper()

	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedLauncher == nil && sharedErr == nil {
		l := NewLauncher(Options{
			Headless:       os.Getenv("RX_HEADLESS") != "false",
			DefaultTimeout: 15 * time.Second,
		})
		if err := l.Start(); err != nil {
			sharedErr = err
		} else {
			sharedLauncher = l
		}
	}
	if sharedErr != nil {
		t.Skip("Playwright not available:", sharedErr)
	}
	return sharedLauncher
}

// TestSession opens a session on the shared launcher and closes it on cleanup.
func TestSession(t testing.TB) *Session {
	t.Helper()

	l := TestLauncher(t)
	s, err := l.NewSession(context.Background(), t.Name())
	if err != nil {
		t.Fatalf("could not create browser session: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// CloseTestLauncher stops the shared launcher, if one was started.
func CloseTestLauncher() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedLauncher != nil {
		_ = sharedLauncher.Close()
		sharedLauncher = nil
	}
}
