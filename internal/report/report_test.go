package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sumitdasdk/DRX-pro/internal/email"
	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/s3client"
	"github.com/sumitdasdk/DRX-pro/internal/scenario"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleResults(screenshot string) []scenario.Result {
	return []scenario.Result{
		{ID: "TC-001", Suite: "login", Title: "Login", Status: scenario.StatusPassed, Duration: 1200 * time.Millisecond},
		{
			ID: "TC-RX-01", Suite: "prescription", Title: "Write and save", Status: scenario.StatusPassed,
			Verification: scenario.VerificationUnverified,
			Annotations:  []scenario.Annotation{{Kind: scenario.AnnotationUnverified, Message: "unverified save"}},
		},
		{
			ID: "TC-P04", Suite: "patient", Title: "Search | by name", Status: scenario.StatusFailed,
			ErrCode: errs.SearchMismatch, Error: "search \"SearchPatient_1\": no visible row <script>alert(1)</script>",
			Steps:      []string{"Login with valid credentials", "Search by full name"},
			Screenshot: screenshot,
		},
		{ID: "TC-H-PAGE-01", Suite: "history", Status: scenario.StatusSkipped},
	}
}

func TestReport_SummaryAndMarkdown(t *testing.T) {
	t.Parallel()

	r := New("run-42", "http://stub.test/", start, start.Add(3*time.Second), sampleResults("/tmp/shots/TC-P04-abcd.png"))
	require.Equal(t, scenario.Summary{Total: 4, Passed: 2, Failed: 1, Skipped: 1, Unverified: 1}, r.Summary)
	require.False(t, r.Passed())

	md := r.Markdown()
	require.Contains(t, md, "# Run run-42")
	require.Contains(t, md, "| 4 | 2 | 1 | 1 | 1 |")
	require.Contains(t, md, "passed (unverified)")
	require.Contains(t, md, `Search \| by name`)
	require.Contains(t, md, "## Failures")
	require.Contains(t, md, "- Code: `search_mismatch`")
	require.Contains(t, md, "2. Search by full name")
	require.Contains(t, md, "TC-P04-abcd.png")
	require.NotContains(t, md, "/tmp/shots")
}

func TestReport_HTMLIsSanitized(t *testing.T) {
	t.Parallel()

	r := New("run-<b>", "target", start, start, sampleResults(""))
	page := string(r.HTML())
	require.Contains(t, page, "<table>")
	require.Contains(t, page, "<h2")
	require.Contains(t, page, "rxsuite run run-&lt;b&gt;")
	require.NotContains(t, page, "<script>")
}

func TestReport_JSONKeepsResults(t *testing.T) {
	t.Parallel()

	r := New("run-1", "target", start, start, sampleResults(""))
	data, err := r.JSON()
	require.NoError(t, err)

	var decoded struct {
		Summary scenario.Summary `json:"summary"`
		Results []struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			ErrorCode string `json:"error_code"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, 1, decoded.Summary.Failed)
	require.Len(t, decoded.Results, 4)
	require.Equal(t, "search_mismatch", decoded.Results[2].ErrorCode)
}

func testRenderMarkdown_NeverEmitsScript(t *rapid.T) {
	text := rapid.String().Draw(t, "text")
	out := string(RenderMarkdown("# Title\n\n" + text + "<script>alert(1)</script>"))
	if strings.Contains(strings.ToLower(out), "<script") {
		t.Fatalf("sanitized output contains a script tag: %q", out)
	}
}

func TestRenderMarkdown_NeverEmitsScript(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRenderMarkdown_NeverEmitsScript)
}

func TestPublisher_LocalOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := New("run-local", "target", start, start, sampleResults(""))
	out, err := NewPublisher(dir, nil).Publish(context.Background(), r)
	require.NoError(t, err)
	require.Empty(t, out.ReportURL)
	require.Empty(t, out.Uploaded)

	for _, name := range []string{FileJSON, FileMarkdown, FileHTML} {
		require.FileExists(t, filepath.Join(dir, "run-local", name))
	}
}

func TestPublisher_UploadsReportAndScreenshots(t *testing.T) {
	t.Parallel()

	client := s3client.TestClient(t, "rx-reports")
	shot := filepath.Join(t.TempDir(), "TC-P04-abcd1234.png")
	require.NoError(t, os.WriteFile(shot, []byte("\x89PNG fake"), 0o644))

	results := sampleResults(shot)
	results = append(results, scenario.Result{ID: "TC-002", Status: scenario.StatusFailed, Screenshot: "/missing/TC-002.png"})
	r := New("run-s3", "target", start, start, results)

	out, err := NewPublisher(t.TempDir(), client).Publish(context.Background(), r)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		"runs/run-s3/report.json",
		"runs/run-s3/report.md",
		"runs/run-s3/report.html",
		"runs/run-s3/screenshots/TC-P04-abcd1234.png",
	}, out.Uploaded)
	require.True(t, strings.HasSuffix(out.ReportURL, "/rx-reports/runs/run-s3/report.html"), out.ReportURL)

	got, err := client.GetObject(context.Background(), "runs/run-s3/report.md")
	require.NoError(t, err)
	require.Equal(t, r.Markdown(), string(got))

	png, err := client.GetObject(context.Background(), "runs/run-s3/screenshots/TC-P04-abcd1234.png")
	require.NoError(t, err)
	require.Equal(t, "\x89PNG fake", string(png))
}

func TestNotify_SendsSanitizedSummary(t *testing.T) {
	t.Parallel()

	mock := email.NewMockEmailService("")
	r := New("run-mail", "http://stub.test/", start, start, sampleResults(""))
	require.NoError(t, Notify(mock, "qa@example.com", r, "https://reports.example/run-mail"))

	require.Equal(t, 1, mock.Count())
	sent := mock.LastEmail()
	require.Equal(t, "qa@example.com", sent.To)
	require.Equal(t, email.TemplateRunReport, sent.Template)
	require.Contains(t, sent.Subject, "FAILED")
	require.Contains(t, sent.Subject, "1 unverified")

	data, ok := sent.Data.(email.RunReportData)
	require.True(t, ok)
	require.Equal(t, 1, data.Failed)
	require.Equal(t, "https://reports.example/run-mail", data.ReportURL)
	require.NotContains(t, data.SummaryHTML, "<script>")
}
