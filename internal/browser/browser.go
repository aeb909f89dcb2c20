// Package browser owns the Playwright driver and the Chromium instance shared by
// all scenarios, and hands out one isolated browser context per scenario.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/sumitdasdk/DRX-pro/internal/obs"
)

// ErrUnavailable is returned when Playwright or Chromium cannot be started.
var ErrUnavailable = errors.New("browser unavailable")

// DefaultTimeout is applied to pages for calls that do not pass their own ceiling.
const DefaultTimeout = 30 * time.Second

// Options configures the shared Chromium instance.
type Options struct {
	Headless       bool
	SlowMo         time.Duration
	DefaultTimeout time.Duration
}

// Launcher starts Playwright and Chromium lazily, once, and creates sessions on demand.
// It is safe for concurrent use.
type Launcher struct {
	opts Options

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	closed  bool
}

// NewLauncher creates a launcher. Nothing is started until the first session.
func NewLauncher(opts Options) *Launcher {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	return &Launcher{opts: opts}
}

func (l *Launcher) ensureBrowser() (playwright.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, fmt.Errorf("%w: launcher closed", ErrUnavailable)
	}
	if l.browser != nil {
		return l.browser, nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: start playwright: %v", ErrUnavailable, err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
	}
	if l.opts.SlowMo > 0 {
		launch.SlowMo = playwright.Float(float64(l.opts.SlowMo.Milliseconds()))
	}
	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: launch chromium: %v", ErrUnavailable, err)
	}

	obs.Pkg("browser").Info("chromium launched",
		"headless", l.opts.Headless,
		"slow_mo_ms", l.opts.SlowMo.Milliseconds(),
		"version", browser.Version(),
	)
	l.pw = pw
	l.browser = browser
	return browser, nil
}

// Start launches the browser now instead of on the first session.
func (l *Launcher) Start() error {
	_, err := l.ensureBrowser()
	return err
}

// NewSession creates a fresh browser context and page for one scenario.
// Sessions never share cookies or storage.
func (l *Launcher) NewSession(ctx context.Context, scenarioID string) (*Session, error) {
	browser, err := l.ensureBrowser()
	if err != nil {
		return nil, err
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		ExtraHttpHeaders: map[string]string{obs.ScenarioHeader: scenarioID},
	})
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	timeoutMS := float64(l.opts.DefaultTimeout.Milliseconds())
	bctx.SetDefaultTimeout(timeoutMS)
	bctx.SetDefaultNavigationTimeout(timeoutMS)

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	obs.From(ctx).Debug("browser session opened", "session", scenarioID)
	return &Session{ID: scenarioID, Context: bctx, Page: page}, nil
}

// Close stops the browser and the Playwright driver. Later sessions fail with ErrUnavailable.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	var errList []error
	if l.browser != nil {
		errList = append(errList, l.browser.Close())
		l.browser = nil
	}
	if l.pw != nil {
		errList = append(errList, l.pw.Stop())
		l.pw = nil
	}
	return errors.Join(errList...)
}

// Session is one browser context with a single page, owned by one scenario.
type Session struct {
	ID      string
	Context playwright.BrowserContext
	Page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

// Screenshot writes a full-page PNG to path, creating parent directories.
func (s *Session) Screenshot(path string) error {
	if s == nil || s.Page == nil {
		return errors.New("screenshot: session has no page")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	_, err := s.Page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return nil
}

// Close tears down the page and its context. It is safe to call more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		if s.Context != nil {
			s.closeErr = s.Context.Close()
		}
	})
	return s.closeErr
}
