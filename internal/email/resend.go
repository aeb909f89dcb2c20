package email

import (
	"fmt"
	"html"

	"github.com/resend/resend-go/v3"
)

// ResendEmailService implements EmailService using the Resend API.
type ResendEmailService struct {
	client      *resend.Client
	fromAddress string
}

// NewResendEmailService creates a new Resend email service.
// fromAddress must be a sender verified in Resend.
func NewResendEmailService(apiKey, fromAddress string) *ResendEmailService {
	return &ResendEmailService{
		client:      resend.NewClient(apiKey),
		fromAddress: fromAddress,
	}
}

// Send sends an email using the specified template via Resend.
func (r *ResendEmailService) Send(to, templateName string, data any) error {
	subject, body := renderTemplate(templateName, data)

	params := &resend.SendEmailRequest{
		From:    r.fromAddress,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}

	_, err := r.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}

	return nil
}

// SendRunReport mails the summary of one run.
func (r *ResendEmailService) SendRunReport(to string, data RunReportData) error {
	return r.Send(to, TemplateRunReport, data)
}

// renderTemplate renders the email template and returns subject and HTML body.
func renderTemplate(templateName string, data any) (subject, body string) {
	switch templateName {
	case TemplateRunReport:
		d, ok := data.(RunReportData)
		if !ok {
			break
		}
		return runReportSubject(d), renderRunReportHTML(d)
	}
	subject = "Message from rxsuite"
	body = fmt.Sprintf("<p>%s</p>", html.EscapeString(fmt.Sprintf("%+v", data)))
	return subject, body
}

func runReportSubject(d RunReportData) string {
	status := "PASSED"
	if d.HasFailures() {
		status = "FAILED"
	}
	subject := fmt.Sprintf("[rxsuite] %s: %d passed, %d failed", status, d.Passed, d.Failed)
	if d.Unverified > 0 {
		subject += fmt.Sprintf(", %d unverified", d.Unverified)
	}
	return subject
}

// renderRunReportHTML wraps the already-sanitized summary in the mail layout.
func renderRunReportHTML(d RunReportData) string {
	accent := "#11998e"
	if d.HasFailures() {
		accent = "#f5576c"
	}
	link := ""
	if d.ReportURL != "" {
		link = fmt.Sprintf(`<p style="margin: 20px 0;"><a href="%s" style="color: %s; font-weight: 600;">Open the full report</a></p>`,
			html.EscapeString(d.ReportURL), accent)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>rxsuite run %s</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 720px; margin: 0 auto; padding: 20px;">
    <div style="background: %s; padding: 24px; border-radius: 10px 10px 0 0;">
        <h1 style="color: white; margin: 0; font-size: 22px;">Digital Rx Pro end-to-end run</h1>
        <p style="color: white; margin: 4px 0 0;">%s</p>
    </div>
    <div style="background: #ffffff; padding: 24px; border: 1px solid #e0e0e0; border-top: none; border-radius: 0 0 10px 10px;">
        <p><strong>%d</strong> passed, <strong>%d</strong> failed, <strong>%d</strong> skipped, <strong>%d</strong> unverified saves.</p>
        %s
        %s
        <hr style="border: none; border-top: 1px solid #e0e0e0; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">Run %s. This is an automated message from rxsuite.</p>
    </div>
</body>
</html>`,
		html.EscapeString(d.RunID),
		accent,
		html.EscapeString(d.Target),
		d.Passed, d.Failed, d.Skipped, d.Unverified,
		link,
		d.SummaryHTML,
		html.EscapeString(d.RunID),
	)
}
