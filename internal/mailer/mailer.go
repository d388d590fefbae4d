// Package mailer sends template-rendered notification emails and keeps
// the mail-log bookkeeping that makes notification runs resumable.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"samplewatch/internal/config"
	"samplewatch/internal/domain"
	"samplewatch/internal/logging"
	"samplewatch/internal/repo"
)

// Mailer renders HTML templates and delivers them over a Sender,
// recording every attempt in the mail-log repository when one is
// wired in.
type Mailer struct {
	sender      Sender
	from        string
	templateDir string
	mailLogs    repo.MailLogRepository
	log         *logging.Logger
}

// New creates a mailer. mailLogs may be nil; sends then go unrecorded.
// A missing template directory is logged but not fatal - rendering
// will fail at send time instead.
func New(cfg *config.Config, sender Sender, mailLogs repo.MailLogRepository) *Mailer {
	if _, err := os.Stat(cfg.Paths.TemplateDir); err != nil {
		logging.Get(logging.CategoryMailer).Warn("template directory does not exist: %s", cfg.Paths.TemplateDir)
	}
	return &Mailer{
		sender:      sender,
		from:        cfg.Mail.FromAddress(),
		templateDir: cfg.Paths.TemplateDir,
		mailLogs:    mailLogs,
		log:         logging.Get(logging.CategoryMailer),
	}
}

// Render executes the named template file against data. The name is a
// path relative to the template directory, e.g.
// "email/tasks_notification.html".
func (m *Mailer) Render(name string, data interface{}) (string, error) {
	path := filepath.Join(m.templateDir, filepath.FromSlash(name))
	tmpl, err := template.ParseFiles(path)
	if err != nil {
		m.log.Error("failed to parse template %s: %v", name, err)
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		m.log.Error("failed to render template %s: %v", name, err)
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Notification describes one templated send.
type Notification struct {
	To           string
	Subject      string
	TemplateName string
	Data         interface{}

	// BatchID groups the logs of one workflow run.
	BatchID string
	// TaskIDs is the comma-joined task identity list the mail covers.
	TaskIDs string
	// LogID, when non-zero, reuses an existing mail log (a retry from
	// a previous run) instead of creating a new one.
	LogID int
}

// SendNotification renders the template and sends it, recording the
// attempt in the mail log: PENDING up front, SENT on success, FAILED
// with the error message otherwise. Returns the log identity used (0
// when no log repository is wired) and the send error, if any.
func (m *Mailer) SendNotification(n Notification) (int, error) {
	html, err := m.Render(n.TemplateName, n.Data)
	if err != nil {
		return 0, err
	}

	logID := 0
	if m.mailLogs != nil {
		if n.LogID != 0 {
			// Retry of a previous attempt: reset the existing log.
			if existing, _ := m.mailLogs.Get(n.LogID); existing != nil {
				if err := m.mailLogs.UpdateStatus(n.LogID, domain.MailStatusPending, ""); err != nil {
					return 0, err
				}
				logID = n.LogID
			}
		}
		if logID == 0 {
			entry := &domain.MailLog{
				ToEmail: n.To,
				Subject: n.Subject,
				Status:  domain.MailStatusPending,
				BatchID: n.BatchID,
				TaskIDs: n.TaskIDs,
			}
			if err := m.mailLogs.Create(entry); err != nil {
				return 0, err
			}
			logID = entry.ID
		}
	}

	msg := &Message{
		From:    m.from,
		To:      n.To,
		Subject: n.Subject,
		HTML:    html,
	}
	if err := m.sender.Send(msg); err != nil {
		m.log.Error("failed to send email to %s: %v", n.To, err)
		if m.mailLogs != nil && logID != 0 {
			if uerr := m.mailLogs.UpdateStatus(logID, domain.MailStatusFailed, err.Error()); uerr != nil {
				m.log.Error("failed to record FAILED status for log %d: %v", logID, uerr)
			}
		}
		return logID, err
	}

	if m.mailLogs != nil && logID != 0 {
		if err := m.mailLogs.UpdateStatus(logID, domain.MailStatusSent, ""); err != nil {
			m.log.Error("failed to record SENT status for log %d: %v", logID, err)
		}
	}
	logging.Mailer("email sent to %s", n.To)
	return logID, nil
}
