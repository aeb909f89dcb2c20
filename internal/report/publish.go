package report

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/sumitdasdk/DRX-pro/internal/email"
	"github.com/sumitdasdk/DRX-pro/internal/obs"
	"github.com/sumitdasdk/DRX-pro/internal/s3client"
)

// Report file names inside a run directory or S3 prefix.
const (
	FileJSON     = "report.json"
	FileMarkdown = "report.md"
	FileHTML     = "report.html"
)

// Published says where a report went.
type Published struct {
	Dir string
	// ReportURL links the uploaded HTML report; empty without an upload client.
	ReportURL string
	Uploaded  []string
}

// Publisher writes reports under Dir/<run id>/ and, with an S3 client,
// uploads them with the failure screenshots under runs/<run id>/.
type Publisher struct {
	dir    string
	client *s3client.Client
}

// NewPublisher creates a publisher. client may be nil.
func NewPublisher(dir string, client *s3client.Client) *Publisher {
	return &Publisher{dir: dir, client: client}
}

// Publish writes and uploads r. Local files are written before any upload;
// an upload error is returned after the local copy exists.
func (p *Publisher) Publish(ctx context.Context, r *Report) (Published, error) {
	log := obs.From(ctx).With("pkg", "report")

	jsonBody, err := r.JSON()
	if err != nil {
		return Published{}, fmt.Errorf("encode report: %w", err)
	}
	files := []struct {
		name, contentType string
		body              []byte
	}{
		{FileJSON, "application/json", jsonBody},
		{FileMarkdown, "text/markdown; charset=utf-8", []byte(r.Markdown())},
		{FileHTML, "text/html; charset=utf-8", r.HTML()},
	}

	out := Published{Dir: filepath.Join(p.dir, r.RunID)}
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return out, fmt.Errorf("create report dir: %w", err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(out.Dir, f.name), f.body, 0o644); err != nil {
			return out, fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	log.Info("report written", "dir", out.Dir, "passed", r.Summary.Passed, "failed", r.Summary.Failed)

	if p.client == nil {
		return out, nil
	}

	prefix := path.Join("runs", r.RunID)
	for _, f := range files {
		key := path.Join(prefix, f.name)
		if err := p.client.PutObject(ctx, key, f.body, f.contentType); err != nil {
			return out, fmt.Errorf("upload %s: %w", key, err)
		}
		out.Uploaded = append(out.Uploaded, key)
	}
	for _, res := range r.Results {
		if res.Screenshot == "" {
			continue
		}
		data, err := os.ReadFile(res.Screenshot)
		if err != nil {
			log.Warn("screenshot missing, not uploaded", "scenario", res.ID, "path", res.Screenshot, "error", err)
			continue
		}
		key := path.Join(prefix, "screenshots", filepath.Base(res.Screenshot))
		if err := p.client.PutObject(ctx, key, data, "image/png"); err != nil {
			return out, fmt.Errorf("upload %s: %w", key, err)
		}
		out.Uploaded = append(out.Uploaded, key)
	}
	out.ReportURL = p.client.ObjectURL(path.Join(prefix, FileHTML))
	log.Info("report uploaded", "bucket", p.client.BucketName(), "objects", len(out.Uploaded), "url", out.ReportURL)
	return out, nil
}

// RunReportSender mails a run report. Both the Resend and the mock services implement it.
type RunReportSender interface {
	SendRunReport(to string, data email.RunReportData) error
}

// Notify mails the sanitized HTML summary of r to to.
func Notify(sender RunReportSender, to string, r *Report, reportURL string) error {
	return sender.SendRunReport(to, email.RunReportData{
		RunID:       r.RunID,
		Target:      r.Target,
		Passed:      r.Summary.Passed,
		Failed:      r.Summary.Failed,
		Skipped:     r.Summary.Skipped,
		Unverified:  r.Summary.Unverified,
		SummaryHTML: string(RenderMarkdown(r.Markdown())),
		ReportURL:   reportURL,
	})
}
