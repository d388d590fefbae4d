// Package erp exposes the business-facing service surface over the
// repositories. It works with any repository implementation, CSV or
// database backed.
package erp

import (
	"samplewatch/internal/domain"
	"samplewatch/internal/repo"
)

// CustomerView bundles a customer with their activity stats.
type CustomerView struct {
	Customer *domain.Customer
	Stats    domain.CustomerStats
}

// Service is the main ERP entry point for customer and note queries.
type Service struct {
	customers repo.CustomerRepository
	notes     repo.NoteRepository
	samples   repo.SampleRepository
}

// NewService creates a service over the given repositories.
func NewService(customers repo.CustomerRepository, notes repo.NoteRepository, samples repo.SampleRepository) *Service {
	return &Service{customers: customers, notes: notes, samples: samples}
}

// CustomerWithStats returns a customer and their stats, or nil when
// the customer does not exist.
func (s *Service) CustomerWithStats(customerID string) (*CustomerView, error) {
	customer, err := s.customers.GetByID(customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, nil
	}
	stats, err := s.customers.Stats(customerID)
	if err != nil {
		return nil, err
	}
	return &CustomerView{Customer: customer, Stats: stats}, nil
}

// PendingNotes returns the notes not yet processed.
func (s *Service) PendingNotes() ([]domain.Note, error) {
	processed := false
	return s.notes.GetAll(&processed)
}

// ProcessNote marks a note as processed, optionally with a category.
func (s *Service) ProcessNote(noteID int, category string) error {
	return s.notes.MarkProcessed(noteID, category)
}
