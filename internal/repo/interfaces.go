// Package repo provides per-entity repositories in two families: CSV
// backed (prototype/mock data) and sqlite backed. The factory selects
// the family from configuration; callers only see these interfaces.
package repo

import "samplewatch/internal/domain"

// CustomerRepository reads customers. Customers are immutable here.
type CustomerRepository interface {
	// GetByID returns nil when the customer does not exist.
	GetByID(id string) (*domain.Customer, error)
	// Stats aggregates note and sample counts for one customer. An
	// unknown customer yields zero stats, not an error.
	Stats(id string) (domain.CustomerStats, error)
}

// NoteRepository reads and flags notes.
type NoteRepository interface {
	// GetAll returns notes, optionally filtered by the processed flag.
	// A nil filter means unfiltered.
	GetAll(processed *bool) ([]domain.Note, error)
	// MarkProcessed sets the processed flag on one note.
	MarkProcessed(id int, category string) error
}

// SampleRepository reads samples. Status transitions happen in the
// upstream ERP, not here.
type SampleRepository interface {
	// GetByStatus filters by exact, case-sensitive status match.
	GetByStatus(status string) ([]domain.Sample, error)
}

// TaskRepository creates and queries follow-up tasks.
type TaskRepository interface {
	GetByCustomerAndSample(customerID string, sampleID int) ([]domain.Task, error)
	// Create assigns an identity and creation time when absent and
	// persists immediately.
	Create(task *domain.Task) error
	PendingBySalesperson(email string) ([]domain.Task, error)
}

// MailLogRepository records outbound notification attempts.
type MailLogRepository interface {
	// Create assigns an identity and creation time when absent and
	// persists immediately.
	Create(log *domain.MailLog) error
	// UpdateStatus transitions a log. SENT stamps the sent time and
	// clears any error; FAILED records the message.
	UpdateStatus(id int, status, errorMessage string) error
	// Get returns one log by identity, or nil.
	Get(id int) (*domain.MailLog, error)
	// LastFailedOrPending returns the newest FAILED log, else the
	// newest PENDING log, else nil. Any FAILED entry beats any PENDING
	// entry regardless of recency. An empty batchID searches all logs.
	LastFailedOrPending(batchID string) (*domain.MailLog, error)
	// LogsByBatch returns all logs sharing a batch identity, unordered.
	LogsByBatch(batchID string) ([]domain.MailLog, error)
}
