package repo

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"samplewatch/internal/domain"
	"samplewatch/internal/logging"
)

// OpenDB opens (creating if needed) the sqlite database all sqlite
// repositories share, and migrates the schema.
func OpenDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	logging.Boot("opened sqlite database at %s", path)
	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		salesperson_email TEXT,
		created_at TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY,
		customer_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP,
		is_processed INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY,
		customer_id TEXT NOT NULL,
		status TEXT NOT NULL,
		date_sent TIMESTAMP NOT NULL,
		notes TEXT
	);
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id TEXT NOT NULL,
		sample_id INTEGER NOT NULL,
		task_type TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		created_at TIMESTAMP,
		assigned_to TEXT
	);
	CREATE TABLE IF NOT EXISTS mail_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		to_email TEXT NOT NULL,
		subject TEXT,
		status TEXT NOT NULL,
		error_message TEXT,
		sent_at TIMESTAMP,
		created_at TIMESTAMP,
		batch_id TEXT,
		task_ids TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_notes_customer ON notes(customer_id);
	CREATE INDEX IF NOT EXISTS idx_samples_customer ON samples(customer_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_pair ON tasks(customer_id, sample_id);
	CREATE INDEX IF NOT EXISTS idx_mail_logs_batch ON mail_logs(batch_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// nullTime maps a zero time to NULL.
func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// nullStr maps an empty string to NULL.
func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanTime(v sql.NullTime) time.Time {
	if v.Valid {
		return v.Time
	}
	return time.Time{}
}

func scanStr(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

// SQLCustomerRepository serves customers from the shared database.
type SQLCustomerRepository struct {
	db *sql.DB
}

func NewSQLCustomerRepository(db *sql.DB) *SQLCustomerRepository {
	return &SQLCustomerRepository{db: db}
}

func (r *SQLCustomerRepository) GetByID(id string) (*domain.Customer, error) {
	row := r.db.QueryRow(`
		SELECT id, name, email, phone, salesperson_email, created_at
		FROM customers WHERE id = ?`, id)

	var c domain.Customer
	var email, phone, salesperson sql.NullString
	var createdAt sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &email, &phone, &salesperson, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logging.Get(logging.CategoryRepository).Error("failed to fetch customer %s: %v", id, err)
		return nil, nil
	}
	c.Email = scanStr(email)
	c.Phone = scanStr(phone)
	c.SalespersonEmail = scanStr(salesperson)
	c.CreatedAt = scanTime(createdAt)
	return &c, nil
}

func (r *SQLCustomerRepository) Stats(id string) (domain.CustomerStats, error) {
	var stats domain.CustomerStats
	row := r.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM notes WHERE customer_id = ?),
			(SELECT COUNT(*) FROM samples WHERE customer_id = ?)`, id, id)
	if err := row.Scan(&stats.NotesCount, &stats.SamplesCount); err != nil {
		logging.Get(logging.CategoryRepository).Error("failed to fetch stats for %s: %v", id, err)
		return domain.CustomerStats{}, nil
	}
	return stats, nil
}

// SQLNoteRepository serves notes from the shared database.
type SQLNoteRepository struct {
	db *sql.DB
}

func NewSQLNoteRepository(db *sql.DB) *SQLNoteRepository {
	return &SQLNoteRepository{db: db}
}

func (r *SQLNoteRepository) GetAll(processed *bool) ([]domain.Note, error) {
	query := `SELECT id, customer_id, content, created_at, is_processed FROM notes`
	var args []interface{}
	if processed != nil {
		query += ` WHERE is_processed = ?`
		args = append(args, *processed)
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		var createdAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.CustomerID, &n.Content, &createdAt, &n.IsProcessed); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.CreatedAt = scanTime(createdAt)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkProcessed persists the flag, unlike the CSV variant.
func (r *SQLNoteRepository) MarkProcessed(id int, category string) error {
	res, err := r.db.Exec(`UPDATE notes SET is_processed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark note %d processed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("note %d not found", id)
	}
	logging.Repo("note %d marked processed (category: %s)", id, category)
	return nil
}

// SQLSampleRepository serves samples from the shared database.
type SQLSampleRepository struct {
	db *sql.DB
}

func NewSQLSampleRepository(db *sql.DB) *SQLSampleRepository {
	return &SQLSampleRepository{db: db}
}

func (r *SQLSampleRepository) GetByStatus(status string) ([]domain.Sample, error) {
	if status == "" {
		return nil, nil
	}
	rows, err := r.db.Query(`
		SELECT id, customer_id, status, date_sent, notes
		FROM samples WHERE status = ?`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []domain.Sample
	for rows.Next() {
		var s domain.Sample
		var notes sql.NullString
		if err := rows.Scan(&s.ID, &s.CustomerID, &s.Status, &s.DateSent, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.Notes = scanStr(notes)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// SQLTaskRepository serves tasks from the shared database.
type SQLTaskRepository struct {
	db *sql.DB
}

func NewSQLTaskRepository(db *sql.DB) *SQLTaskRepository {
	return &SQLTaskRepository{db: db}
}

func (r *SQLTaskRepository) GetByCustomerAndSample(customerID string, sampleID int) ([]domain.Task, error) {
	rows, err := r.db.Query(`
		SELECT id, customer_id, sample_id, task_type, description, status, created_at, assigned_to
		FROM tasks WHERE customer_id = ? AND sample_id = ?`, customerID, sampleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *SQLTaskRepository) Create(task *domain.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	res, err := r.db.Exec(`
		INSERT INTO tasks (customer_id, sample_id, task_type, description, status, created_at, assigned_to)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.CustomerID, task.SampleID, task.TaskType, task.Description,
		task.Status, task.CreatedAt, nullStr(task.AssignedTo))
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read task id: %w", err)
	}
	task.ID = int(id)
	logging.Repo("created task %d for customer %s, sample %d", task.ID, task.CustomerID, task.SampleID)
	return nil
}

func (r *SQLTaskRepository) PendingBySalesperson(email string) ([]domain.Task, error) {
	rows, err := r.db.Query(`
		SELECT id, customer_id, sample_id, task_type, description, status, created_at, assigned_to
		FROM tasks WHERE assigned_to = ? AND status = ?`, email, domain.TaskStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		var description, assignedTo sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.SampleID, &t.TaskType,
			&description, &t.Status, &createdAt, &assignedTo); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Description = scanStr(description)
		t.AssignedTo = scanStr(assignedTo)
		t.CreatedAt = scanTime(createdAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SQLMailLogRepository serves mail logs from the shared database.
type SQLMailLogRepository struct {
	db *sql.DB
}

func NewSQLMailLogRepository(db *sql.DB) *SQLMailLogRepository {
	return &SQLMailLogRepository{db: db}
}

func (r *SQLMailLogRepository) Create(log *domain.MailLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	res, err := r.db.Exec(`
		INSERT INTO mail_logs (to_email, subject, status, error_message, sent_at, created_at, batch_id, task_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ToEmail, log.Subject, log.Status, nullStr(log.ErrorMessage),
		nullTime(log.SentAt), log.CreatedAt, nullStr(log.BatchID), nullStr(log.TaskIDs))
	if err != nil {
		return fmt.Errorf("failed to create mail log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read mail log id: %w", err)
	}
	log.ID = int(id)
	logging.Repo("created mail log %d for %s, status %s", log.ID, log.ToEmail, log.Status)
	return nil
}

func (r *SQLMailLogRepository) UpdateStatus(id int, status, errorMessage string) error {
	var err error
	switch status {
	case domain.MailStatusSent:
		_, err = r.db.Exec(`
			UPDATE mail_logs SET status = ?, sent_at = ?, error_message = NULL WHERE id = ?`,
			status, time.Now(), id)
	case domain.MailStatusFailed:
		_, err = r.db.Exec(`
			UPDATE mail_logs SET status = ?, error_message = ? WHERE id = ?`,
			status, nullStr(errorMessage), id)
	default:
		_, err = r.db.Exec(`UPDATE mail_logs SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update mail log %d: %w", id, err)
	}
	logging.Repo("updated mail log %d to %s", id, status)
	return nil
}

func (r *SQLMailLogRepository) Get(id int) (*domain.MailLog, error) {
	row := r.db.QueryRow(`
		SELECT id, to_email, subject, status, error_message, sent_at, created_at, batch_id, task_ids
		FROM mail_logs WHERE id = ?`, id)
	l, err := scanMailLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mail log %d: %w", id, err)
	}
	return l, nil
}

func (r *SQLMailLogRepository) LastFailedOrPending(batchID string) (*domain.MailLog, error) {
	for _, status := range []string{domain.MailStatusFailed, domain.MailStatusPending} {
		query := `
			SELECT id, to_email, subject, status, error_message, sent_at, created_at, batch_id, task_ids
			FROM mail_logs WHERE status = ?`
		args := []interface{}{status}
		if batchID != "" {
			query += ` AND batch_id = ?`
			args = append(args, batchID)
		}
		query += ` ORDER BY created_at DESC LIMIT 1`

		l, err := scanMailLog(r.db.QueryRow(query, args...))
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query mail logs: %w", err)
		}
		return l, nil
	}
	return nil, nil
}

func (r *SQLMailLogRepository) LogsByBatch(batchID string) ([]domain.MailLog, error) {
	rows, err := r.db.Query(`
		SELECT id, to_email, subject, status, error_message, sent_at, created_at, batch_id, task_ids
		FROM mail_logs WHERE batch_id = ?`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mail logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.MailLog
	for rows.Next() {
		l, err := scanMailLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mail log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMailLog(row rowScanner) (*domain.MailLog, error) {
	var l domain.MailLog
	var errMsg, b, taskIDs, subject sql.NullString
	var sentAt, createdAt sql.NullTime
	if err := row.Scan(&l.ID, &l.ToEmail, &subject, &l.Status, &errMsg,
		&sentAt, &createdAt, &b, &taskIDs); err != nil {
		return nil, err
	}
	l.Subject = scanStr(subject)
	l.ErrorMessage = scanStr(errMsg)
	l.BatchID = scanStr(b)
	l.TaskIDs = scanStr(taskIDs)
	l.SentAt = scanTime(sentAt)
	l.CreatedAt = scanTime(createdAt)
	return &l, nil
}
