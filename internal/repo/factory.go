package repo

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"samplewatch/internal/config"
	"samplewatch/internal/logging"
)

// Repositories bundles the five entity repositories one run works
// with. In sqlite mode they all share a single connection, closed via
// Close; in CSV mode Close is a no-op.
type Repositories struct {
	Customers CustomerRepository
	Notes     NoteRepository
	Samples   SampleRepository
	Tasks     TaskRepository
	MailLogs  MailLogRepository

	db *sql.DB
}

// New constructs the repository family selected by cfg.DataSource.
// CSV mode fails fast when the data directory does not exist; in that
// mode the customer repository is wired to the note and sample
// repositories so statistics aggregation works.
func New(cfg *config.Config) (*Repositories, error) {
	switch cfg.DataSource {
	case config.SourceCSV:
		return newCSV(cfg.Paths.DataDir)
	case config.SourceSQLite:
		return newSQLite(cfg.Paths.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown data source: %q", cfg.DataSource)
	}
}

func newCSV(dataDir string) (*Repositories, error) {
	if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("csv data source selected but data directory %s does not exist", dataDir)
	}
	logging.Boot("using CSV repositories in %s", dataDir)

	notes, err := NewCSVNoteRepository(filepath.Join(dataDir, notesFile))
	if err != nil {
		return nil, err
	}
	samples, err := NewCSVSampleRepository(filepath.Join(dataDir, samplesFile))
	if err != nil {
		return nil, err
	}
	customers, err := NewCSVCustomerRepository(filepath.Join(dataDir, customersFile), notes, samples)
	if err != nil {
		return nil, err
	}
	tasks, err := NewCSVTaskRepository(filepath.Join(dataDir, tasksFile))
	if err != nil {
		return nil, err
	}
	mailLogs, err := NewCSVMailLogRepository(filepath.Join(dataDir, mailLogsFile))
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Customers: customers,
		Notes:     notes,
		Samples:   samples,
		Tasks:     tasks,
		MailLogs:  mailLogs,
	}, nil
}

func newSQLite(path string) (*Repositories, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	logging.Boot("using sqlite repositories at %s", path)

	return &Repositories{
		Customers: NewSQLCustomerRepository(db),
		Notes:     NewSQLNoteRepository(db),
		Samples:   NewSQLSampleRepository(db),
		Tasks:     NewSQLTaskRepository(db),
		MailLogs:  NewSQLMailLogRepository(db),
		db:        db,
	}, nil
}

// Close releases the shared database connection, if any.
func (r *Repositories) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
