package scenario

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sumitdasdk/DRX-pro/internal/browser"
	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/obs"
	"github.com/sumitdasdk/DRX-pro/internal/ratelimit"
	"github.com/sumitdasdk/DRX-pro/internal/urlutil"
)

// SessionFactory opens one isolated browser session per scenario.
type SessionFactory interface {
	NewSession(ctx context.Context, id string) (*browser.Session, error)
}

// Options configures a Runner.
type Options struct {
	RunID string
	// Parallel bounds how many scenarios run at once.
	Parallel int
	// StartsPerSecond paces scenario starts against the target; zero is unpaced.
	StartsPerSecond float64
	// ArtifactDir receives failure screenshots; empty disables them.
	ArtifactDir string
	// PaceKey groups scenarios that share a pacing bucket, usually the target host.
	PaceKey string
}

// Runner executes scenarios with bounded parallelism. There is no locking
// between scenarios; isolation comes from one session each.
type Runner struct {
	sessions SessionFactory
	env      Env
	opts     Options
	pacer    *ratelimit.RateLimiter
}

// NewRunner creates a runner. Call Close when done.
func NewRunner(sessions SessionFactory, env Env, opts Options) (*Runner, error) {
	if sessions == nil {
		return nil, errs.New(errs.ConfigurationError, "scenario runner needs a session factory")
	}
	if env.Store == nil {
		return nil, errs.New(errs.ConfigurationError, "scenario runner needs a loaded test data store")
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.PaceKey == "" {
		opts.PaceKey = urlutil.Origin(env.Store.GetURLs().BaseURL)
	}
	return &Runner{
		sessions: sessions,
		env:      env,
		opts:     opts,
		pacer: ratelimit.NewRateLimiter(ratelimit.Config{
			PerSecond: opts.StartsPerSecond,
			Burst:     1,
		}),
	}, nil
}

// RunID identifies this run in logs and reports.
func (r *Runner) RunID() string { return r.opts.RunID }

// Close stops the pacer.
func (r *Runner) Close() {
	r.pacer.Stop()
}

// Run executes scenarios and returns their results in input order.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) []Result {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: r.opts.RunID})
	results := make([]Result, len(scenarios))

	sem := make(chan struct{}, r.opts.Parallel)
	var wg sync.WaitGroup
	for i, s := range scenarios {
		if err := r.pacer.Wait(ctx, r.opts.PaceKey); err != nil {
			results[i] = r.skipped(s, "run cancelled before start")
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = r.skipped(s, "run cancelled before start")
			continue
		}
		wg.Add(1)
		go func(i int, s Scenario) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.RunOne(ctx, s)
		}(i, s)
	}
	wg.Wait()
	return results
}

func (r *Runner) skipped(s Scenario, reason string) Result {
	return Result{
		RunID:       r.opts.RunID,
		ID:          s.ID,
		Suite:       s.Suite,
		Title:       s.Title,
		Status:      StatusSkipped,
		Annotations: []Annotation{{Kind: AnnotationObservation, Message: reason}},
		StartedAt:   time.Now(),
	}
}

// RunOne executes a single scenario in a fresh session.
func (r *Runner) RunOne(ctx context.Context, s Scenario) Result {
	sessionID := uuid.NewString()
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: r.opts.RunID, Suite: s.Suite, Scenario: s.ID})
	log := obs.From(ctx)

	res := Result{
		RunID:     r.opts.RunID,
		SessionID: sessionID,
		ID:        s.ID,
		Suite:     s.Suite,
		Title:     s.Title,
		StartedAt: time.Now(),
	}
	log.Info("scenario started", "title", s.Title, "session", sessionID)

	session, err := r.sessions.NewSession(ctx, sessionID)
	if err != nil {
		r.finish(ctx, &res, nil, errs.Wrap(errs.Internal, "open browser session", err))
		return res
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("browser session close failed", "error", err)
		}
	}()

	c := newContext(ctx, r.env, session, &res)
	err = runGuarded(s, c)
	r.finish(c.Ctx(), &res, session, err)
	return res
}

func runGuarded(s Scenario, c *Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errs.New(errs.Internal, fmt.Sprintf("scenario panicked: %v\n%s", p, debug.Stack()))
		}
	}()
	if s.Run == nil {
		return errs.New(errs.ConfigurationError, "scenario "+s.ID+" has no body")
	}
	return s.Run(c)
}

func (r *Runner) finish(ctx context.Context, res *Result, session *browser.Session, err error) {
	log := obs.From(ctx)
	res.Duration = time.Since(res.StartedAt)

	switch {
	case err == nil:
		res.Status = StatusPassed
	case errors.Is(err, ErrSkipped):
		res.Status = StatusSkipped
		res.Annotations = append(res.Annotations, Annotation{Kind: AnnotationObservation, Message: err.Error()})
	default:
		res.Status = StatusFailed
		res.ErrCode = errs.CodeOf(err)
		res.Error = err.Error()
		if session != nil && r.opts.ArtifactDir != "" {
			path := filepath.Join(r.opts.ArtifactDir, "screenshots", screenshotName(res.ID, res.SessionID))
			if shotErr := session.Screenshot(path); shotErr != nil {
				log.Warn("failure screenshot not captured", "error", shotErr)
			} else {
				res.Screenshot = path
			}
		}
	}

	attrs := []any{
		"status", res.Status,
		"duration_ms", res.Duration.Milliseconds(),
	}
	if res.Verification != VerificationNone {
		attrs = append(attrs, "verification", res.Verification)
	}
	if res.Failed() {
		attrs = append(attrs, "error_code", res.ErrCode, "error", res.Error)
		log.Error("scenario finished", attrs...)
		return
	}
	log.Info("scenario finished", attrs...)
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func screenshotName(scenarioID, sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return unsafeFileChars.ReplaceAllString(scenarioID, "_") + "-" + short + ".png"
}
