package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sumitdasdk/DRX-pro/internal/browser"
	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
	"github.com/sumitdasdk/DRX-pro/internal/obs"
)

// fakeSessions hands out page-less sessions and records ids.
type fakeSessions struct {
	mu   sync.Mutex
	ids  []string
	fail error
}

func (f *fakeSessions) NewSession(_ context.Context, id string) (*browser.Session, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return &browser.Session{ID: id}, nil
}

func testEnv() Env {
	return Env{Store: &fixtures.Store{
		URLs: fixtures.URLs{BaseURL: "http://stub.test/", RXPagePattern: "**/doctor/rx"},
		Patient: map[string]fixtures.Fixture{
			"TC-P01": {PatientNamePrefix: "TestPatient", Age: "28", PhonePrefix: "01700000"},
		},
	}}
}

func newTestRunner(t *testing.T, sessions SessionFactory, opts Options) *Runner {
	t.Helper()
	r, err := NewRunner(sessions, testEnv(), opts)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestRunOne_StatusesAndAnnotations(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, &fakeSessions{}, Options{RunID: "run-1"})
	ctx := context.Background()

	passed := r.RunOne(ctx, Scenario{ID: "A", Suite: "login", Run: func(c *Context) error {
		c.Step("Login to RX page")
		c.Step("Verify user is on RX page")
		c.MarkVerified()
		return nil
	}})
	require.Equal(t, StatusPassed, passed.Status)
	require.Equal(t, VerificationVerified, passed.Verification)
	require.Equal(t, []string{"Login to RX page", "Verify user is on RX page"}, passed.Steps)
	require.Equal(t, "run-1", passed.RunID)
	require.NotEmpty(t, passed.SessionID)

	soft := r.RunOne(ctx, Scenario{ID: "B", Suite: "prescription", Run: func(c *Context) error {
		c.Observe("RX entry point not reachable: %s", "timeout")
		c.MarkUnverified("unverified save")
		c.MarkVerified()
		return nil
	}})
	require.Equal(t, StatusPassed, soft.Status)
	require.Equal(t, VerificationUnverified, soft.Verification)
	require.Equal(t, []Annotation{
		{Kind: AnnotationObservation, Message: "RX entry point not reachable: timeout"},
		{Kind: AnnotationUnverified, Message: "unverified save"},
	}, soft.Annotations)

	failed := r.RunOne(ctx, Scenario{ID: "C", Run: func(c *Context) error {
		return errs.New(errs.SearchMismatch, "row missing")
	}})
	require.Equal(t, StatusFailed, failed.Status)
	require.Equal(t, errs.SearchMismatch, failed.ErrCode)
	require.Equal(t, "row missing", failed.Error)

	skipped := r.RunOne(ctx, Scenario{ID: "D", Run: func(c *Context) error { return Skip("needs history pattern") }})
	require.Equal(t, StatusSkipped, skipped.Status)

	panicked := r.RunOne(ctx, Scenario{ID: "E", Run: func(c *Context) error { panic("boom") }})
	require.Equal(t, StatusFailed, panicked.Status)
	require.Equal(t, errs.Internal, panicked.ErrCode)
	require.Contains(t, panicked.Error, "boom")

	empty := r.RunOne(ctx, Scenario{ID: "F"})
	require.Equal(t, errs.ConfigurationError, empty.ErrCode)
}

func TestRunOne_MissingFixtureIsConfigurationError(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, &fakeSessions{}, Options{})
	res := r.RunOne(context.Background(), Scenario{ID: "X", Run: func(c *Context) error {
		_, err := c.Fixture(fixtures.CategoryPatient, "TC-P99")
		return err
	}})
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, errs.ConfigurationError, res.ErrCode)
}

func TestRunOne_SessionFailure(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, &fakeSessions{fail: browser.ErrUnavailable}, Options{})
	res := r.RunOne(context.Background(), Scenario{ID: "X", Run: func(c *Context) error { return nil }})
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, errs.Internal, res.ErrCode)
	require.True(t, strings.Contains(res.Error, "browser unavailable"))
}

func TestRunOne_FailureScreenshotErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetOutputForTests(&buf)
	defer restore()

	r := newTestRunner(t, &fakeSessions{}, Options{ArtifactDir: t.TempDir(), RunID: "run-log"})
	res := r.RunOne(context.Background(), Scenario{ID: "TC-001", Suite: "login", Run: func(c *Context) error {
		c.Step("Login to RX page")
		return errs.New(errs.NavigationTimeout, "url never matched")
	}})
	require.Equal(t, StatusFailed, res.Status)
	require.Empty(t, res.Screenshot)

	out := buf.String()
	require.Contains(t, out, `"msg":"Step 1: Login to RX page"`)
	require.Contains(t, out, `"run_id":"run-log"`)
	require.Contains(t, out, `"scenario":"TC-001"`)
	require.Contains(t, out, "failure screenshot not captured")
}

func TestStep_TagsLaterDriverLogs(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetOutputForTests(&buf)
	defer restore()
	obs.SetLevel(slog.LevelDebug)
	defer obs.SetLevel(slog.LevelInfo)

	r := newTestRunner(t, &fakeSessions{}, Options{RunID: "run-step"})
	res := r.RunOne(context.Background(), Scenario{ID: "TC-P02", Suite: "patient", Run: func(c *Context) error {
		c.Base.Settle(time.Millisecond)
		c.Step("Search by name")
		c.Base.Settle(time.Millisecond)
		c.Observe("search took a while")
		return nil
	}})
	require.Equal(t, StatusPassed, res.Status)

	var settles, observations []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		switch m["msg"] {
		case "settle":
			settles = append(settles, m)
		case "observation":
			observations = append(observations, m)
		}
	}
	require.Len(t, settles, 2)
	require.NotContains(t, settles[0], "step")
	require.Equal(t, "Step 1: Search by name", settles[1]["step"])
	require.Equal(t, "pages", settles[1]["pkg"])
	require.Equal(t, "TC-P02", settles[1]["scenario"])
	require.Len(t, observations, 1)
	require.Equal(t, "Step 1: Search by name", observations[0]["step"])
}

func testRun_BoundedParallelismKeepsOrder(t *rapid.T) {
	parallel := rapid.IntRange(1, 4).Draw(t, "parallel")
	n := rapid.IntRange(1, 12).Draw(t, "scenarios")

	r, err := NewRunner(&fakeSessions{}, testEnv(), Options{Parallel: parallel})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer r.Close()

	var running, peak atomic.Int64
	scenarios := make([]Scenario, n)
	for i := range scenarios {
		fail := rapid.Bool().Draw(t, fmt.Sprintf("fail-%d", i))
		scenarios[i] = Scenario{ID: fmt.Sprintf("S-%02d", i), Run: func(c *Context) error {
			cur := running.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			if fail {
				return errs.New(errs.AssertionFailed, "expected")
			}
			return nil
		}}
	}

	results := r.Run(context.Background(), scenarios)
	if len(results) != n {
		t.Fatalf("got %d results, want %d", len(results), n)
	}
	for i, res := range results {
		if res.ID != scenarios[i].ID {
			t.Fatalf("result %d is %s, want %s", i, res.ID, scenarios[i].ID)
		}
	}
	if p := peak.Load(); p > int64(parallel) {
		t.Fatalf("peak concurrency %d exceeds parallel=%d", p, parallel)
	}
	sum := Summarize(results)
	if sum.Total != n || sum.Passed+sum.Failed != n {
		t.Fatalf("summary %+v does not account for %d scenarios", sum, n)
	}
}

func TestRun_BoundedParallelismKeepsOrder(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRun_BoundedParallelismKeepsOrder)
}

func TestRun_SessionsAreNeverShared(t *testing.T) {
	t.Parallel()

	sessions := &fakeSessions{}
	r := newTestRunner(t, sessions, Options{Parallel: 3})

	var seen sync.Map
	scenarios := make([]Scenario, 6)
	for i := range scenarios {
		scenarios[i] = Scenario{ID: fmt.Sprintf("S%d", i), Run: func(c *Context) error {
			if _, dup := seen.LoadOrStore(c.Session, true); dup {
				return errors.New("session reused")
			}
			return nil
		}}
	}
	for _, res := range r.Run(context.Background(), scenarios) {
		require.Equal(t, StatusPassed, res.Status, res.Error)
	}
	require.Len(t, sessions.ids, 6)
}

func TestRun_PacesStarts(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, &fakeSessions{}, Options{Parallel: 4, StartsPerSecond: 20})
	scenarios := make([]Scenario, 3)
	for i := range scenarios {
		scenarios[i] = Scenario{ID: fmt.Sprintf("S%d", i), Run: func(c *Context) error { return nil }}
	}

	start := time.Now()
	r.Run(context.Background(), scenarios)
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRun_CancelledContextSkipsRemaining(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, &fakeSessions{}, Options{Parallel: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := r.Run(ctx, []Scenario{{ID: "A", Run: func(c *Context) error { return nil }}})
	require.Equal(t, StatusSkipped, results[0].Status)
}

func TestNewRunner_RequiresStoreAndSessions(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(nil, testEnv(), Options{})
	require.Equal(t, errs.ConfigurationError, errs.CodeOf(err))
	_, err = NewRunner(&fakeSessions{}, Env{}, Options{})
	require.Equal(t, errs.ConfigurationError, errs.CodeOf(err))
}

func TestSelect(t *testing.T) {
	t.Parallel()

	all := []Scenario{
		{ID: "TC-001", Suite: "login"},
		{ID: "TC-P01", Suite: "patient"},
		{ID: "TC-P02", Suite: "patient"},
	}

	got, err := Select(all, nil, "")
	require.NoError(t, err)
	require.Len(t, got, 3)

	got, err = Select(all, []string{"patient"}, "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = Select(all, nil, "tc-p02")
	require.NoError(t, err)
	require.Equal(t, "TC-P02", got[0].ID)

	_, err = Select(all, []string{"login"}, "TC-P01")
	require.Equal(t, errs.ConfigurationError, errs.CodeOf(err))
}

func TestScreenshotName(t *testing.T) {
	t.Parallel()
	require.Equal(t, "TC-RX-PAGE-01-abcdef12.png", screenshotName("TC-RX-PAGE-01", "abcdef12-3456"))
	require.Equal(t, "a_b-x.png", screenshotName("a/b", "x"))
}
