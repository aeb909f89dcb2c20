// Package scenario runs scenarios: ordered driver calls and assertions, each in
// its own browser session, with bounded parallelism and paced starts.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sumitdasdk/DRX-pro/internal/browser"
	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
	"github.com/sumitdasdk/DRX-pro/internal/obs"
	"github.com/sumitdasdk/DRX-pro/internal/pages"
)

// Status is the outcome of a scenario.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Verification records whether a best-effort check positively confirmed its effect.
type Verification string

const (
	VerificationNone       Verification = ""
	VerificationVerified   Verification = "verified"
	VerificationUnverified Verification = "unverified"
)

// AnnotationKind classifies soft observations.
type AnnotationKind string

const (
	AnnotationObservation AnnotationKind = "observation"
	AnnotationUnverified  AnnotationKind = "unverified"
)

// Annotation is a soft note attached to a result. It never fails the scenario.
type Annotation struct {
	Kind    AnnotationKind `json:"kind"`
	Message string         `json:"message"`
}

// Scenario is one named test case.
type Scenario struct {
	ID    string
	Suite string
	Title string
	Run   func(c *Context) error
}

// Result is the record of one scenario execution.
type Result struct {
	RunID        string        `json:"run_id"`
	SessionID    string        `json:"session_id"`
	ID           string        `json:"id"`
	Suite        string        `json:"suite"`
	Title        string        `json:"title"`
	Status       Status        `json:"status"`
	Verification Verification  `json:"verification,omitempty"`
	Annotations  []Annotation  `json:"annotations,omitempty"`
	Steps        []string      `json:"steps,omitempty"`
	ErrCode      errs.Code     `json:"error_code,omitempty"`
	Error        string        `json:"error,omitempty"`
	Screenshot   string        `json:"screenshot,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// Failed reports a hard failure.
func (r Result) Failed() bool { return r.Status == StatusFailed }

// ErrSkipped marks a scenario that chose not to run.
var ErrSkipped = errors.New("scenario skipped")

// Skip returns an error that records the scenario as skipped.
func Skip(reason string) error {
	return fmt.Errorf("%w: %s", ErrSkipped, reason)
}

// Env is the shared, read-only input of every scenario.
type Env struct {
	Store       *fixtures.Store
	Generator   *fixtures.Generator
	Timeouts    pages.Timeouts
	SettleScale float64
}

// Context is handed to Scenario.Run. It owns the scenario's session and drivers.
type Context struct {
	ctx     context.Context
	Session *browser.Session
	Store   *fixtures.Store
	Gen     *fixtures.Generator

	Base     *pages.Base
	Login    *pages.LoginPage
	Patients *pages.PatientPage
	RX       *pages.PrescriptionPage
	History  *pages.HistoryPage

	mu     sync.Mutex
	result *Result
}

func newContext(ctx context.Context, env Env, session *browser.Session, result *Result) *Context {
	urls := env.Store.GetURLs()
	base := pages.NewBase(ctx, session.Page, env.Timeouts, env.SettleScale)
	gen := env.Generator
	if gen == nil {
		gen = fixtures.NewGenerator(nil)
	}
	return &Context{
		ctx:      ctx,
		Session:  session,
		Store:    env.Store,
		Gen:      gen,
		Base:     base,
		Login:    pages.NewLoginPage(base, urls),
		Patients: pages.NewPatientPage(base, urls),
		RX:       pages.NewPrescriptionPage(base, urls),
		History:  pages.NewHistoryPage(base, urls),
		result:   result,
	}
}

// Ctx returns the scenario context, tagged with the current step.
func (c *Context) Ctx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *Context) log() *slog.Logger { return obs.From(c.Ctx()) }

// Step logs step progress as "Step N: msg" and tags later scenario and driver
// log lines with it.
func (c *Context) Step(msg string) {
	c.mu.Lock()
	c.result.Steps = append(c.result.Steps, msg)
	label := fmt.Sprintf("Step %d: %s", len(c.result.Steps), msg)
	c.ctx = obs.WithStep(c.ctx, label)
	c.mu.Unlock()

	c.Base.SetStep(label)
	c.log().Info(label)
}

// Observe adds a soft observation.
func (c *Context) Observe(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.annotate(AnnotationObservation, msg)
	c.log().Warn("observation", "message", msg)
}

// MarkVerified records that a best-effort check positively confirmed its effect.
func (c *Context) MarkVerified() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result.Verification == VerificationNone {
		c.result.Verification = VerificationVerified
	}
}

// MarkUnverified records that success was accepted without positive confirmation.
func (c *Context) MarkUnverified(note string) {
	c.mu.Lock()
	c.result.Verification = VerificationUnverified
	c.mu.Unlock()
	c.annotate(AnnotationUnverified, note)
	c.log().Warn("unverified", "message", note)
}

func (c *Context) annotate(kind AnnotationKind, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Annotations = append(c.result.Annotations, Annotation{Kind: kind, Message: msg})
}

// Fixture returns the fixture for category/id. A missing fixture is a configuration error.
func (c *Context) Fixture(category fixtures.Category, id string) (fixtures.Fixture, error) {
	return c.Store.Get(category, id)
}

// NewPatient builds a unique patient form from a fixture.
func (c *Context) NewPatient(f fixtures.Fixture) pages.PatientForm {
	return pages.NewPatientForm(c.Gen, f)
}

// Check fails the scenario with AssertionFailed when cond is false.
func (c *Context) Check(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return errs.New(errs.AssertionFailed, fmt.Sprintf(format, args...))
}

// CheckURLContains fails unless the current URL contains segment.
func (c *Context) CheckURLContains(segment string) error {
	url := c.Base.CurrentURL()
	return c.Check(strings.Contains(url, segment), "url %q does not contain %q", url, segment)
}
