package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"

	"github.com/sumitdasdk/DRX-pro/internal/obs"
)

func TestMain(m *testing.M) {
	code := m.Run()
	CloseTestLauncher()
	os.Exit(code)
}

func TestLauncher_ClosedRejectsSessions(t *testing.T) {
	t.Parallel()

	l := NewLauncher(Options{Headless: true})
	require.NoError(t, l.Close())

	_, err := l.NewSession(context.Background(), "after-close")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewLauncher_DefaultTimeout(t *testing.T) {
	t.Parallel()
	require.Equal(t, DefaultTimeout, NewLauncher(Options{}).opts.DefaultTimeout)
}

func TestSession_NilSafe(t *testing.T) {
	t.Parallel()

	var s *Session
	require.NoError(t, s.Close())

	empty := &Session{ID: "empty"}
	require.NoError(t, empty.Close())
	require.NoError(t, empty.Close())
	require.Error(t, empty.Screenshot(filepath.Join(t.TempDir(), "x.png")))
}

func TestSessions_AreIsolated(t *testing.T) {
	var (
		mu      sync.Mutex
		headers []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = append(headers, r.Header.Get(obs.ScenarioHeader))
		mu.Unlock()
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "marker", Value: "one", Path: "/"})
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>ok</h1></body></html>"))
	}))
	defer ts.Close()

	l := TestLauncher(t)
	first, err := l.NewSession(context.Background(), "scenario-a")
	require.NoError(t, err)
	defer first.Close()
	second, err := l.NewSession(context.Background(), "scenario-b")
	require.NoError(t, err)
	defer second.Close()

	_, err = first.Page.Goto(ts.URL+"/set", playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	require.NoError(t, err)
	_, err = second.Page.Goto(ts.URL+"/", playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	require.NoError(t, err)

	firstCookies, err := first.Context.Cookies()
	require.NoError(t, err)
	secondCookies, err := second.Context.Cookies()
	require.NoError(t, err)
	require.Len(t, firstCookies, 1)
	require.Empty(t, secondCookies)

	mu.Lock()
	require.Contains(t, headers, "scenario-a")
	require.Contains(t, headers, "scenario-b")
	mu.Unlock()

	shot := filepath.Join(t.TempDir(), "nested", "shot.png")
	require.NoError(t, first.Screenshot(shot))
	info, err := os.Stat(shot)
	require.NoError(t, err)
	require.Positive(t, info.Size())

	require.NoError(t, first.Close())
	_, err = first.Page.Goto(ts.URL + "/")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnavailable))
}
