// Package email delivers run report mail through Resend, or captures it locally.
package email

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sumitdasdk/DRX-pro/internal/obs"
)

// EmailService defines the interface for sending emails.
type EmailService interface {
	// Send sends an email using the specified template.
	// Parameters:
	//   - to: recipient email address
	//   - templateName: name of the email template (e.g., "run_report")
	//   - data: template data (varies by template)
	Send(to, templateName string, data any) error
}

// SentEmail represents a captured email for testing.
type SentEmail struct {
	To       string
	Template string
	Subject  string
	Data     any
}

// MockEmailService captures emails instead of sending them, and mirrors each one
// into an outbox directory as JSON when one is configured.
type MockEmailService struct {
	mu        sync.Mutex
	Emails    []SentEmail
	outboxDir string
	seq       uint64
}

// NewMockEmailService creates a mock email service writing to outboxDir.
// An empty outboxDir keeps captured mail in memory only.
func NewMockEmailService(outboxDir string) *MockEmailService {
	if outboxDir != "" {
		if err := os.MkdirAll(outboxDir, 0o755); err != nil {
			obs.Pkg("email").Warn("mock outbox unavailable", "dir", outboxDir, "error", err)
			outboxDir = ""
		}
	}
	return &MockEmailService{
		Emails:    make([]SentEmail, 0),
		outboxDir: outboxDir,
	}
}

// Send captures the email and logs it.
func (m *MockEmailService) Send(to, templateName string, data any) error {
	subject, body := renderTemplate(templateName, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emails = append(m.Emails, SentEmail{
		To:       to,
		Template: templateName,
		Subject:  subject,
		Data:     data,
	})

	obs.Pkg("email").Info("mock email captured", "to", to, "template", templateName, "subject", subject)

	event := outboxEmailEvent{
		To:             to,
		Template:       templateName,
		Subject:        subject,
		HTML:           body,
		SentAtUnixNano: time.Now().UnixNano(),
	}
	if d, ok := data.(RunReportData); ok {
		event.RunID = d.RunID
		event.ReportURL = d.ReportURL
	}
	return m.writeOutboxEvent(event)
}

// SendRunReport captures the summary of one run.
func (m *MockEmailService) SendRunReport(to string, data RunReportData) error {
	return m.Send(to, TemplateRunReport, data)
}

// LastEmail returns the most recently sent email, or the zero value.
func (m *MockEmailService) LastEmail() SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Emails) == 0 {
		return SentEmail{}
	}
	return m.Emails[len(m.Emails)-1]
}

// Count returns the number of captured emails.
func (m *MockEmailService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Emails)
}

type outboxEmailEvent struct {
	Sequence       uint64 `json:"sequence"`
	To             string `json:"to"`
	Template       string `json:"template"`
	Subject        string `json:"subject"`
	RunID          string `json:"run_id,omitempty"`
	ReportURL      string `json:"report_url,omitempty"`
	HTML           string `json:"html"`
	SentAtUnixNano int64  `json:"sent_at_unix_nano"`
}

func (m *MockEmailService) writeOutboxEvent(event outboxEmailEvent) error {
	if m.outboxDir == "" {
		return nil
	}

	m.seq++
	event.Sequence = m.seq

	fileName := fmt.Sprintf(
		"%020d-%s-%s.json",
		event.Sequence,
		sanitizeOutboxComponent(event.Template),
		sanitizeOutboxComponent(event.To),
	)
	finalPath := filepath.Join(m.outboxDir, fileName)
	tempPath := finalPath + ".tmp"

	payload, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal outbox event: %w", err)
	}
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write outbox temp file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename outbox file: %w", err)
	}
	return nil
}

var outboxSanitizePattern = regexp.MustCompile(`[^a-zA-Z0-9._@-]+`)

func sanitizeOutboxComponent(input string) string {
	safe := strings.TrimSpace(input)
	if safe == "" {
		return "unknown"
	}
	return outboxSanitizePattern.ReplaceAllString(safe, "_")
}
