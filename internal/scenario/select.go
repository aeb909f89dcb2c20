package scenario

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sumitdasdk/DRX-pro/internal/errs"
)

// Select keeps the scenarios of the given suites (all when empty) and, when id
// is set, only the scenario with that id. Selecting nothing is a configuration error.
func Select(all []Scenario, suites []string, id string) ([]Scenario, error) {
	var out []Scenario
	for _, s := range all {
		if len(suites) > 0 && !slices.Contains(suites, s.Suite) {
			continue
		}
		if id != "" && !strings.EqualFold(s.ID, id) {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errs.New(errs.ConfigurationError, fmt.Sprintf("no scenario matches suites=%v scenario=%q", suites, id))
	}
	return out, nil
}

// Summary counts results by outcome.
type Summary struct {
	Total      int `json:"total"`
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Unverified int `json:"unverified"`
}

// Summarize counts results. Unverified counts passed results whose save was not confirmed.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		s.Total++
		switch r.Status {
		case StatusPassed:
			s.Passed++
			if r.Verification == VerificationUnverified {
				s.Unverified++
			}
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}
