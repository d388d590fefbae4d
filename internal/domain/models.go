// Package domain holds the flat ERP entities this tool works on.
// Optional fields use their zero value when absent; the CSV and sqlite
// repositories serialize zero values as empty cells / NULLs.
package domain

import (
	"strings"
	"time"
)

// Task lifecycle statuses.
const (
	TaskStatusPending   = "PENDING"
	TaskStatusCompleted = "COMPLETED"
	TaskStatusCancelled = "CANCELLED"
)

// Task types created by the follow-up workflow.
const (
	TaskTypeFollowup     = "SAMPLE_FOLLOWUP"
	TaskTypeVerification = "SAMPLE_VERIFICATION"
	TaskTypeDelay        = "SAMPLE_DELAY"
)

// Mail log statuses.
const (
	MailStatusPending = "PENDING"
	MailStatusSent    = "SENT"
	MailStatusFailed  = "FAILED"
)

// SampleStatusSent is the only sample status the workflow acts on.
// Sample statuses are free-form strings owned by the upstream ERP.
const SampleStatusSent = "Sent"

// Customer is an ERP customer. Immutable after creation in this system.
type Customer struct {
	ID               string
	Name             string
	Email            string
	Phone            string
	SalespersonEmail string
	CreatedAt        time.Time
}

// CustomerStats aggregates note and sample counts for one customer.
type CustomerStats struct {
	NotesCount   int
	SamplesCount int
}

// Note is a free-text note attached to a customer.
type Note struct {
	ID          int
	CustomerID  string
	Content     string
	CreatedAt   time.Time
	IsProcessed bool
}

// SafeContent returns the note content with non-ASCII runes replaced,
// for log lines that must survive any terminal encoding.
func (n Note) SafeContent() string {
	return strings.Map(func(r rune) rune {
		if r > 127 {
			return '?'
		}
		return r
	}, n.Content)
}

// Sample is a physical product sample shipped to a customer.
type Sample struct {
	ID         int
	CustomerID string
	Status     string
	DateSent   time.Time
	Notes      string
}

// Task is a follow-up work item for a salesperson. ID 0 means not yet
// assigned; repositories assign one on create.
type Task struct {
	ID          int
	CustomerID  string
	SampleID    int
	TaskType    string
	Description string
	Status      string
	CreatedAt   time.Time
	AssignedTo  string
}

// MailLog records one outbound notification attempt. BatchID groups the
// logs of a single workflow run so a later run can resume a failed batch.
// TaskIDs is a comma-joined list of the task identities the mail covered.
type MailLog struct {
	ID           int
	ToEmail      string
	Subject      string
	Status       string
	ErrorMessage string
	SentAt       time.Time
	CreatedAt    time.Time
	BatchID      string
	TaskIDs      string
}
