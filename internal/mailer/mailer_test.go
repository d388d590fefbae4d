package mailer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"samplewatch/internal/config"
	"samplewatch/internal/domain"
	"samplewatch/internal/repo"
)

// fakeSender records sent messages and optionally fails.
type fakeSender struct {
	sent []*Message
	err  error
}

func (f *fakeSender) Send(msg *Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestMailer(t *testing.T, sender Sender) (*Mailer, repo.MailLogRepository) {
	t.Helper()
	dir := t.TempDir()
	tmplDir := filepath.Join(dir, "templates", "email")
	require.NoError(t, os.MkdirAll(tmplDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmplDir, "greeting.html"),
		[]byte("<p>Hello {{.Name}}, you have {{.Count}} tasks.</p>"), 0644))

	logs, err := repo.NewCSVMailLogRepository(filepath.Join(dir, "mail_logs.csv"))
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Paths.TemplateDir = filepath.Join(dir, "templates")
	cfg.Mail.User = "noreply@firma.pl"
	return New(cfg, sender, logs), logs
}

func TestRender(t *testing.T) {
	m, _ := newTestMailer(t, &fakeSender{})

	html, err := m.Render("email/greeting.html", map[string]interface{}{"Name": "Anna", "Count": 2})
	require.NoError(t, err)
	assert.Contains(t, html, "Hello Anna")
	assert.Contains(t, html, "2 tasks")
}

func TestRenderEscapesHTML(t *testing.T) {
	m, _ := newTestMailer(t, &fakeSender{})

	html, err := m.Render("email/greeting.html", map[string]interface{}{"Name": "<script>x</script>", "Count": 0})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRenderMissingTemplate(t *testing.T) {
	m, _ := newTestMailer(t, &fakeSender{})

	_, err := m.Render("email/nope.html", nil)
	assert.Error(t, err)
}

func TestSendNotificationSuccess(t *testing.T) {
	sender := &fakeSender{}
	m, logs := newTestMailer(t, sender)

	logID, err := m.SendNotification(Notification{
		To:           "anna@firma.pl",
		Subject:      "tasks",
		TemplateName: "email/greeting.html",
		Data:         map[string]interface{}{"Name": "Anna", "Count": 1},
		BatchID:      "b1",
		TaskIDs:      "1,2",
	})
	require.NoError(t, err)
	require.NotZero(t, logID)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "noreply@firma.pl", sender.sent[0].From)
	assert.Equal(t, "anna@firma.pl", sender.sent[0].To)

	entry, err := logs.Get(logID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.MailStatusSent, entry.Status)
	assert.False(t, entry.SentAt.IsZero())
	assert.Equal(t, "b1", entry.BatchID)
	assert.Equal(t, "1,2", entry.TaskIDs)
}

func TestSendNotificationFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp timeout")}
	m, logs := newTestMailer(t, sender)

	logID, err := m.SendNotification(Notification{
		To:           "anna@firma.pl",
		Subject:      "tasks",
		TemplateName: "email/greeting.html",
		Data:         map[string]interface{}{"Name": "Anna", "Count": 1},
		BatchID:      "b1",
	})
	require.Error(t, err)
	require.NotZero(t, logID)

	entry, gerr := logs.Get(logID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.MailStatusFailed, entry.Status)
	assert.Equal(t, "smtp timeout", entry.ErrorMessage)
}

func TestSendNotificationReusesLog(t *testing.T) {
	// First attempt fails and leaves a FAILED log.
	failing := &fakeSender{err: errors.New("smtp timeout")}
	m, logs := newTestMailer(t, failing)
	firstID, err := m.SendNotification(Notification{
		To:           "anna@firma.pl",
		Subject:      "tasks",
		TemplateName: "email/greeting.html",
		Data:         map[string]interface{}{"Name": "Anna", "Count": 1},
		BatchID:      "b1",
	})
	require.Error(t, err)

	// Retry through the same log instead of creating a second one.
	failing.err = nil
	secondID, err := m.SendNotification(Notification{
		To:           "anna@firma.pl",
		Subject:      "tasks",
		TemplateName: "email/greeting.html",
		Data:         map[string]interface{}{"Name": "Anna", "Count": 1},
		BatchID:      "b1",
		LogID:        firstID,
	})
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)

	batch, err := logs.LogsByBatch("b1")
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, domain.MailStatusSent, batch[0].Status)
}

func TestSendNotificationUnknownLogIDCreatesNew(t *testing.T) {
	sender := &fakeSender{}
	m, _ := newTestMailer(t, sender)

	logID, err := m.SendNotification(Notification{
		To:           "anna@firma.pl",
		Subject:      "tasks",
		TemplateName: "email/greeting.html",
		Data:         map[string]interface{}{"Name": "Anna", "Count": 1},
		LogID:        42,
	})
	require.NoError(t, err)
	assert.NotZero(t, logID)
	assert.NotEqual(t, 42, logID)
}

func TestSendNotificationRenderFailureSkipsLog(t *testing.T) {
	sender := &fakeSender{}
	m, logs := newTestMailer(t, sender)

	_, err := m.SendNotification(Notification{
		To:           "anna@firma.pl",
		TemplateName: "email/missing.html",
		BatchID:      "b1",
	})
	require.Error(t, err)
	assert.Empty(t, sender.sent)

	batch, err := logs.LogsByBatch("b1")
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestBuildMIME(t *testing.T) {
	msg := &Message{
		From:    "noreply@firma.pl",
		To:      "anna@firma.pl",
		Subject: "Nowe zadania",
		Text:    "plain part",
		HTML:    "<p>html part</p>",
	}
	raw := string(buildMIME(msg))
	assert.Contains(t, raw, "From: noreply@firma.pl")
	assert.Contains(t, raw, "To: anna@firma.pl")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "plain part")
	assert.Contains(t, raw, "<p>html part</p>")
	assert.Contains(t, raw, "MIME-Version: 1.0")
}
