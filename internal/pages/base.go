// Package pages holds the page drivers. Base is the only type that talks to a
// live page; the feature drivers compose it and never call Playwright directly.
package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
	"github.com/sumitdasdk/DRX-pro/internal/logutil"
	"github.com/sumitdasdk/DRX-pro/internal/obs"
)

// Timeouts are the ceilings of every blocking wait. A single expiry is terminal.
type Timeouts struct {
	Navigation    time.Duration
	FillVisible   time.Duration
	Click         time.Duration
	Element       time.Duration
	LoginRedirect time.Duration
	PatientSubmit time.Duration
	Search        time.Duration
	HistoryPage   time.Duration
	SaveSettle    time.Duration
}

// DefaultTimeouts returns the stock ceilings.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:    90 * time.Second,
		FillVisible:   10 * time.Second,
		Click:         15 * time.Second,
		Element:       10 * time.Second,
		LoginRedirect: 30 * time.Second,
		PatientSubmit: 20 * time.Second,
		Search:        12 * time.Second,
		HistoryPage:   15 * time.Second,
		SaveSettle:    time.Second,
	}
}

// TimeoutsFromStore overrides the defaults with the positive values in the store's timeouts section.
func TimeoutsFromStore(store *fixtures.Store) Timeouts {
	t := DefaultTimeouts()
	if store == nil {
		return t
	}
	set := func(dst *time.Duration, name string) {
		if ms, ok := store.Timeouts[name]; ok && ms > 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
	set(&t.Navigation, "navigation")
	set(&t.FillVisible, "elementVisible")
	set(&t.Element, "elementVisible")
	set(&t.Click, "click")
	set(&t.LoginRedirect, "loginRedirect")
	set(&t.PatientSubmit, "patientSubmit")
	set(&t.Search, "search")
	set(&t.HistoryPage, "historyPage")
	set(&t.SaveSettle, "saveSettle")
	return t
}

// Base wraps one page with the timeout policy shared by all drivers.
type Base struct {
	page        playwright.Page
	timeouts    Timeouts
	settleScale float64

	mu  sync.Mutex
	ctx context.Context
}

// NewBase creates the driver for page. settleScale multiplies the heuristic settle
// delays of the feature drivers; zero disables them.
func NewBase(ctx context.Context, page playwright.Page, timeouts Timeouts, settleScale float64) *Base {
	if ctx == nil {
		ctx = context.Background()
	}
	if settleScale < 0 {
		settleScale = 0
	}
	return &Base{
		ctx:         ctx,
		page:        page,
		timeouts:    timeouts,
		settleScale: settleScale,
	}
}

// SetStep tags every later driver log line with the scenario step.
func (b *Base) SetStep(step string) {
	b.mu.Lock()
	b.ctx = obs.WithStep(b.ctx, step)
	b.mu.Unlock()
}

func (b *Base) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

func (b *Base) log() *slog.Logger {
	return obs.From(b.context()).With("pkg", "pages")
}

// Timeouts returns the ceilings in use.
func (b *Base) Timeouts() Timeouts { return b.timeouts }

// Locator builders

// ByRole locates elements by ARIA role and accessible name.
func (b *Base) ByRole(role, name string, exact bool) playwright.Locator {
	var opts playwright.PageGetByRoleOptions
	if name != "" {
		opts.Name = name
	}
	if exact {
		opts.Exact = playwright.Bool(true)
	}
	return b.page.GetByRole(playwright.AriaRole(role), opts)
}

// ByRoleMatching locates elements by role whose accessible name matches re.
func (b *Base) ByRoleMatching(role string, re *regexp.Regexp) playwright.Locator {
	return b.page.GetByRole(playwright.AriaRole(role), playwright.PageGetByRoleOptions{Name: re})
}

// ByTestID locates elements by data-testid.
func (b *Base) ByTestID(id string) playwright.Locator {
	return b.page.GetByTestId(id)
}

// ByText locates elements containing text.
func (b *Base) ByText(text string) playwright.Locator {
	return b.page.GetByText(text)
}

// ByExactText locates elements whose whole text is text.
func (b *Base) ByExactText(text string) playwright.Locator {
	return b.page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(true)})
}

// Locator locates elements by selector.
func (b *Base) Locator(selector string) playwright.Locator {
	return b.page.Locator(selector)
}

// Actions

// Navigate loads url and returns once the document is parsed.
func (b *Base) Navigate(url string) error {
	b.log().Info("navigate", "url", url)
	_, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(b.timeouts.Navigation),
	})
	if err != nil {
		return b.fail(errs.NavigationTimeout, "navigate to "+url, err)
	}
	return nil
}

// Fill waits for the field to be visible, then sets its value.
func (b *Base) Fill(field string, loc playwright.Locator, value string) error {
	if err := b.waitVisible(loc, b.timeouts.FillVisible); err != nil {
		return b.fail(errs.ElementNotFound, fmt.Sprintf("field %q not visible", field), err)
	}
	if err := loc.Fill(value); err != nil {
		return b.fail(errs.ElementNotFound, fmt.Sprintf("fill %q", field), err)
	}
	b.log().Debug("fill", "field", field, "value", logutil.RedactValue(field, value))
	return nil
}

// Click waits for the element to be visible within the click ceiling, then clicks it.
func (b *Base) Click(name string, loc playwright.Locator) error {
	return b.ClickWithin(name, loc, b.timeouts.Click)
}

// ClickWithin is Click with an explicit visibility ceiling.
func (b *Base) ClickWithin(name string, loc playwright.Locator, ceiling time.Duration) error {
	if err := b.waitVisible(loc, ceiling); err != nil {
		return b.fail(errs.ElementNotFound, fmt.Sprintf("%q not visible", name), err)
	}
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: ms(ceiling)}); err != nil {
		return b.fail(errs.ElementNotFound, fmt.Sprintf("click %q", name), err)
	}
	b.log().Debug("click", "target", name)
	return nil
}

// WaitForURL blocks until the page URL matches the glob pattern.
func (b *Base) WaitForURL(pattern string, ceiling time.Duration) error {
	if err := b.waitURL(pattern, ceiling); err != nil {
		return b.fail(errs.NavigationTimeout, fmt.Sprintf("url never matched %s", pattern), err)
	}
	return nil
}

// ClickAndWaitForURL starts the URL wait and the click together so a fast
// navigation cannot complete before the wait begins. Both must succeed.
func (b *Base) ClickAndWaitForURL(name string, loc playwright.Locator, pattern string, ceiling time.Duration) error {
	urlDone := make(chan error, 1)
	go func() {
		urlDone <- b.waitURL(pattern, ceiling)
	}()

	if err := b.Click(name, loc); err != nil {
		return err
	}
	if err := <-urlDone; err != nil {
		return b.fail(errs.NavigationTimeout, fmt.Sprintf("url never matched %s after clicking %q", pattern, name), err)
	}
	return nil
}

// WaitForVisible blocks until the element is visible.
func (b *Base) WaitForVisible(name string, loc playwright.Locator, ceiling time.Duration) error {
	if err := b.waitVisible(loc, ceiling); err != nil {
		return b.fail(errs.ElementNotFound, fmt.Sprintf("%q not visible", name), err)
	}
	return nil
}

// VisibleWithin reports whether the element became visible within ceiling. It never fails.
func (b *Base) VisibleWithin(loc playwright.Locator, ceiling time.Duration) bool {
	return b.waitVisible(loc, ceiling) == nil
}

// IsVisible reports current visibility without waiting.
func (b *Base) IsVisible(loc playwright.Locator) bool {
	visible, err := loc.IsVisible()
	return err == nil && visible
}

// Text waits for the element and returns its trimmed text content.
func (b *Base) Text(name string, loc playwright.Locator, ceiling time.Duration) (string, error) {
	if err := b.WaitForVisible(name, loc, ceiling); err != nil {
		return "", err
	}
	text, err := loc.TextContent()
	if err != nil {
		return "", b.fail(errs.ElementNotFound, fmt.Sprintf("read text of %q", name), err)
	}
	return strings.TrimSpace(text), nil
}

// InputValue returns the current value of a form field.
func (b *Base) InputValue(name string, loc playwright.Locator) (string, error) {
	v, err := loc.InputValue(playwright.LocatorInputValueOptions{Timeout: ms(b.timeouts.Element)})
	if err != nil {
		return "", b.fail(errs.ElementNotFound, fmt.Sprintf("read value of %q", name), err)
	}
	return v, nil
}

// CountVisible returns how many elements matched by loc are currently visible.
func (b *Base) CountVisible(loc playwright.Locator) (int, error) {
	all, err := loc.All()
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "list elements", err)
	}
	n := 0
	for _, el := range all {
		if b.IsVisible(el) {
			n++
		}
	}
	return n, nil
}

// Delay pauses for exactly d, or until the scenario context ends.
func (b *Base) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-b.context().Done():
	}
}

// Settle is a heuristic re-render delay, scaled by the settle factor.
func (b *Base) Settle(d time.Duration) {
	scaled := time.Duration(float64(d) * b.settleScale)
	b.log().Debug("settle", "requested", d, "scaled", scaled)
	b.Delay(scaled)
}

// PressKey presses a key on the page keyboard.
func (b *Base) PressKey(key string) error {
	if err := b.page.Keyboard().Press(key); err != nil {
		return errs.Wrap(errs.Internal, "press "+key, err)
	}
	return nil
}

// CurrentURL returns the page URL.
func (b *Base) CurrentURL() string {
	return b.page.URL()
}

// Evaluate runs script in the page and returns its result.
func (b *Base) Evaluate(script string, args ...any) (any, error) {
	result, err := b.page.Evaluate(script, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "evaluate script", err)
	}
	return result, nil
}

// WaitForLoad waits for DOMContentLoaded of the current document.
func (b *Base) WaitForLoad() error {
	err := b.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: ms(b.timeouts.Navigation),
	})
	if err != nil {
		return b.fail(errs.NavigationTimeout, "wait for page load", err)
	}
	return nil
}

func (b *Base) waitVisible(loc playwright.Locator, ceiling time.Duration) error {
	return loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(ceiling),
	})
}

func (b *Base) waitURL(pattern string, ceiling time.Duration) error {
	return b.page.WaitForURL(pattern, playwright.PageWaitForURLOptions{
		Timeout: ms(ceiling),
	})
}

// fail logs page state and wraps err. Timeouts get code; anything else is internal.
func (b *Base) fail(code errs.Code, message string, err error) error {
	if !errors.Is(err, playwright.ErrTimeout) {
		code = errs.Internal
	}
	title, _ := b.page.Title()
	content, _ := b.page.Content()
	b.log().Warn("page action failed",
		"code", code,
		"action", message,
		"url", b.page.URL(),
		"title", title,
		"content_preview", logutil.TruncateForLog(content, 500),
		"error", err,
	)
	return errs.Wrap(code, message, err)
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}
