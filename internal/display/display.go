// Package display provides terminal formatting for samplewatch output.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"samplewatch/internal/domain"
	"samplewatch/internal/erp"
)

var (
	Title    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563eb"))
	Label    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")).Width(14)
	Bold     = lipgloss.NewStyle().Bold(true)
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	Warning  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
)

// StatusLabel renders a task or mail status with its color.
func StatusLabel(status string) string {
	switch status {
	case domain.TaskStatusCompleted, domain.MailStatusSent:
		return Success.Render(status)
	case domain.TaskStatusCancelled, domain.MailStatusFailed:
		return ErrStyle.Render(status)
	case domain.TaskStatusPending:
		return Warning.Render(status)
	default:
		return Dim.Render(status)
	}
}

// Date renders a date, or a dim placeholder when absent.
func Date(t time.Time) string {
	if t.IsZero() {
		return Dim.Render("n/a")
	}
	return t.Format("2006-01-02")
}

// CustomerView renders a customer card with stats.
func CustomerView(view *erp.CustomerView) string {
	var b strings.Builder
	c := view.Customer
	b.WriteString(Title.Render(fmt.Sprintf("Customer %s", c.ID)) + "\n")
	row := func(label, value string) {
		b.WriteString(Label.Render(label) + " " + value + "\n")
	}
	row("Name", Bold.Render(c.Name))
	row("Email", c.Email)
	row("Phone", c.Phone)
	row("Salesperson", c.SalespersonEmail)
	row("Since", Date(c.CreatedAt))
	b.WriteString("\n")
	row("Notes", fmt.Sprintf("%d", view.Stats.NotesCount))
	row("Samples", fmt.Sprintf("%d", view.Stats.SamplesCount))
	return b.String()
}

// NoteLine renders one pending note as a single list line.
func NoteLine(n domain.Note) string {
	content := n.Content
	if len(content) > 70 {
		content = content[:67] + "..."
	}
	return fmt.Sprintf("  %s %s %s",
		Dim.Render(fmt.Sprintf("#%-4d", n.ID)),
		Dim.Render(Date(n.CreatedAt)),
		content)
}

// RunSummary renders the workflow result block.
func RunSummary(batchID string, samples, tasks, sent, failed int) string {
	var b strings.Builder
	b.WriteString(Title.Render("Follow-up run complete") + "\n")
	b.WriteString(Label.Render("Batch") + " " + batchID + "\n")
	b.WriteString(Label.Render("Samples") + " " + fmt.Sprintf("%d checked", samples) + "\n")
	b.WriteString(Label.Render("Tasks") + " " + fmt.Sprintf("%d created", tasks) + "\n")
	line := fmt.Sprintf("%d sent", sent)
	if failed > 0 {
		line += ", " + ErrStyle.Render(fmt.Sprintf("%d failed", failed))
	}
	b.WriteString(Label.Render("Emails") + " " + line + "\n")
	return b.String()
}
