package email

// Template names as constants for type safety.
const (
	TemplateRunReport = "run_report"
)

// RunReportData contains data for run report emails.
type RunReportData struct {
	RunID      string
	Target     string
	Passed     int
	Failed     int
	Skipped    int
	Unverified int
	// SummaryHTML is the sanitized HTML rendering of the run report.
	SummaryHTML string
	// ReportURL links to the published report; empty when nothing was uploaded.
	ReportURL string
}

// HasFailures reports whether the run had any hard failure.
func (d RunReportData) HasFailures() bool {
	return d.Failed > 0
}
