package pages

import (
	"strings"

	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
)

// DefaultHistoryPagePattern is used when the store does not name one.
const DefaultHistoryPagePattern = "**/doctor/history/**"

// HistoryPage drives the prescription history list.
type HistoryPage struct {
	base    *Base
	pattern string
}

// NewHistoryPage creates the history driver.
func NewHistoryPage(base *Base, urls fixtures.URLs) *HistoryPage {
	pattern := urls.HistoryPagePattern
	if pattern == "" {
		pattern = DefaultHistoryPagePattern
	}
	return &HistoryPage{base: base, pattern: pattern}
}

// NavigateToHistory clicks the History nav button.
func (p *HistoryPage) NavigateToHistory() error {
	return p.base.Click("History", p.base.ByRole("button", "History", true))
}

// IsOnHistoryPage waits for the history URL and reports whether it arrived.
func (p *HistoryPage) IsOnHistoryPage() bool {
	return p.base.WaitForURL(p.pattern, p.base.Timeouts().HistoryPage) == nil
}

// URLSegment is the path segment every history URL contains.
func (p *HistoryPage) URLSegment() string {
	return fixtures.PathSegment(strings.TrimSuffix(p.pattern, "/**"))
}

// HistoryTableVisible reports whether the history table shows.
func (p *HistoryPage) HistoryTableVisible() bool {
	return p.base.VisibleWithin(p.base.Locator("table"), p.base.Timeouts().Element)
}

// HistoryRecordCount returns the number of table rows, 0 when it cannot be read.
func (p *HistoryPage) HistoryRecordCount() int {
	n, err := p.base.Locator("table tbody tr").Count()
	if err != nil {
		return 0
	}
	return n
}

// HeaderVisible reports whether the page heading shows.
func (p *HistoryPage) HeaderVisible() bool {
	return p.base.VisibleWithin(p.base.ByRole("heading", "History", false), p.base.Timeouts().Element)
}
