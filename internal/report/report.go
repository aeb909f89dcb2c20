// Package report renders run results as JSON, Markdown and sanitized HTML, and
// publishes them locally, to S3 and by email.
package report

import (
	"encoding/json"
	"fmt"
	"html"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/sumitdasdk/DRX-pro/internal/logutil"
	"github.com/sumitdasdk/DRX-pro/internal/scenario"
)

// maxErrorLen bounds error text in the human-readable renderings. JSON keeps it whole.
const maxErrorLen = 400

// Report is one run's results.
type Report struct {
	RunID      string            `json:"run_id"`
	Target     string            `json:"target"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Summary    scenario.Summary  `json:"summary"`
	Results    []scenario.Result `json:"results"`
}

// New builds a report and its summary.
func New(runID, target string, startedAt, finishedAt time.Time, results []scenario.Result) *Report {
	return &Report{
		RunID:      runID,
		Target:     target,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Summary:    scenario.Summarize(results),
		Results:    results,
	}
}

// Passed reports whether no scenario failed hard.
func (r *Report) Passed() bool {
	return r.Summary.Failed == 0
}

// JSON returns the indented JSON summary.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Markdown renders a human summary: counts, a scenario table and failure details.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run %s\n\n", r.RunID)
	fmt.Fprintf(&b, "Target: %s\n\n", r.Target)
	fmt.Fprintf(&b, "Started %s, took %s.\n\n", r.StartedAt.UTC().Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	b.WriteString("| Total | Passed | Failed | Skipped | Unverified |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n", r.Summary.Total, r.Summary.Passed, r.Summary.Failed, r.Summary.Skipped, r.Summary.Unverified)

	b.WriteString("## Scenarios\n\n")
	b.WriteString("| Scenario | Suite | Status | Duration | Notes |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, res := range r.Results {
		fmt.Fprintf(&b, "| %s %s | %s | %s | %s | %s |\n",
			cell(res.ID), cell(res.Title), cell(res.Suite), statusLabel(res),
			res.Duration.Round(time.Millisecond), cell(notes(res)))
	}

	var failures []scenario.Result
	for _, res := range r.Results {
		if res.Failed() {
			failures = append(failures, res)
		}
	}
	if len(failures) == 0 {
		return b.String()
	}

	b.WriteString("\n## Failures\n")
	for _, res := range failures {
		fmt.Fprintf(&b, "\n### %s\n\n", cell(res.ID+" "+res.Title))
		fmt.Fprintf(&b, "- Code: `%s`\n", res.ErrCode)
		fmt.Fprintf(&b, "- Error: %s\n", cell(logutil.TruncateForLog(res.Error, maxErrorLen)))
		if res.Screenshot != "" {
			fmt.Fprintf(&b, "- Screenshot: `%s`\n", filepath.Base(res.Screenshot))
		}
		if len(res.Steps) > 0 {
			b.WriteString("\nSteps:\n\n")
			for i, step := range res.Steps {
				fmt.Fprintf(&b, "%d. %s\n", i+1, cell(step))
			}
		}
	}
	return b.String()
}

// HTML renders the Markdown summary as a sanitized standalone page.
func (r *Report) HTML() []byte {
	body := RenderMarkdown(r.Markdown())
	return []byte(fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>rxsuite run %s</title>
<style>body{font-family:sans-serif;max-width:960px;margin:2em auto;}table{border-collapse:collapse;}td,th{border:1px solid #ddd;padding:4px 8px;}</style>
</head>
<body>
%s
</body>
</html>
`, html.EscapeString(r.RunID), body))
}

// RenderMarkdown converts markdown to HTML and sanitizes it. Scenario errors can
// carry page content, so nothing unsanitized reaches a report or an email.
func RenderMarkdown(md string) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	out := markdown.Render(doc, renderer)

	policy := bluemonday.UGCPolicy()
	policy.AllowElements("code")
	return policy.SanitizeBytes(out)
}

func statusLabel(res scenario.Result) string {
	if res.Status == scenario.StatusPassed && res.Verification == scenario.VerificationUnverified {
		return "passed (unverified)"
	}
	return string(res.Status)
}

func notes(res scenario.Result) string {
	var parts []string
	if res.Failed() {
		parts = append(parts, string(res.ErrCode))
	}
	for _, a := range res.Annotations {
		parts = append(parts, a.Message)
	}
	return strings.Join(parts, "; ")
}

// cell flattens text for a single-line table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
