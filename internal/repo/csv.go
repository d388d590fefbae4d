package repo

import (
	"fmt"
	"time"

	"samplewatch/internal/domain"
	"samplewatch/internal/logging"
	"samplewatch/internal/store"
)

// CSV file names under the data directory.
const (
	customersFile = "customers.csv"
	notesFile     = "notes.csv"
	samplesFile   = "samples.csv"
	tasksFile     = "tasks.csv"
	mailLogsFile  = "mail_logs.csv"
)

// Schemas. Field order is the on-disk column order.

var customerSchema = store.Schema{Fields: []store.Field{
	{Name: "id", Kind: store.KindString, Required: true},
	{Name: "name", Kind: store.KindString, Required: true},
	{Name: "email", Kind: store.KindString},
	{Name: "phone", Kind: store.KindString},
	{Name: "salesperson_email", Kind: store.KindString},
	{Name: "created_at", Kind: store.KindTime},
}}

var noteSchema = store.Schema{Fields: []store.Field{
	{Name: "id", Kind: store.KindInt, Required: true},
	{Name: "customer_id", Kind: store.KindString, Required: true},
	{Name: "content", Kind: store.KindString, Required: true},
	{Name: "created_at", Kind: store.KindTime},
	{Name: "is_processed", Kind: store.KindBool},
}}

var sampleSchema = store.Schema{Fields: []store.Field{
	{Name: "id", Kind: store.KindInt, Required: true},
	{Name: "customer_id", Kind: store.KindString, Required: true},
	{Name: "status", Kind: store.KindString, Required: true},
	{Name: "date_sent", Kind: store.KindTime, Required: true},
	{Name: "notes", Kind: store.KindString},
}}

var taskSchema = store.Schema{Fields: []store.Field{
	{Name: "id", Kind: store.KindInt},
	{Name: "customer_id", Kind: store.KindString, Required: true},
	{Name: "sample_id", Kind: store.KindInt, Required: true},
	{Name: "task_type", Kind: store.KindString},
	{Name: "description", Kind: store.KindString},
	{Name: "status", Kind: store.KindString},
	{Name: "created_at", Kind: store.KindTimestamp},
	{Name: "assigned_to", Kind: store.KindString},
}}

var mailLogSchema = store.Schema{Fields: []store.Field{
	{Name: "id", Kind: store.KindInt},
	{Name: "to_email", Kind: store.KindString, Required: true},
	{Name: "subject", Kind: store.KindString},
	{Name: "status", Kind: store.KindString},
	{Name: "error_message", Kind: store.KindString},
	{Name: "sent_at", Kind: store.KindTimestamp},
	{Name: "created_at", Kind: store.KindTimestamp},
	{Name: "batch_id", Kind: store.KindString},
	{Name: "task_ids", Kind: store.KindString},
}}

// Decoders apply the models' defaults for omitted values, matching the
// way row construction fills defaults in the upstream system.

func decodeCustomer(r store.Row) domain.Customer {
	c := domain.Customer{
		ID:               r.Str("id"),
		Name:             r.Str("name"),
		Email:            r.Str("email"),
		Phone:            r.Str("phone"),
		SalespersonEmail: r.Str("salesperson_email"),
		CreatedAt:        r.Time("created_at"),
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return c
}

func encodeCustomer(c domain.Customer) store.Row {
	return store.Row{
		"id": c.ID, "name": c.Name, "email": c.Email, "phone": c.Phone,
		"salesperson_email": c.SalespersonEmail, "created_at": c.CreatedAt,
	}
}

func decodeNote(r store.Row) domain.Note {
	n := domain.Note{
		ID:          r.Int("id"),
		CustomerID:  r.Str("customer_id"),
		Content:     r.Str("content"),
		CreatedAt:   r.Time("created_at"),
		IsProcessed: r.Bool("is_processed"),
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	return n
}

func encodeNote(n domain.Note) store.Row {
	return store.Row{
		"id": n.ID, "customer_id": n.CustomerID, "content": n.Content,
		"created_at": n.CreatedAt, "is_processed": n.IsProcessed,
	}
}

func decodeSample(r store.Row) domain.Sample {
	return domain.Sample{
		ID:         r.Int("id"),
		CustomerID: r.Str("customer_id"),
		Status:     r.Str("status"),
		DateSent:   r.Time("date_sent"),
		Notes:      r.Str("notes"),
	}
}

func encodeSample(s domain.Sample) store.Row {
	return store.Row{
		"id": s.ID, "customer_id": s.CustomerID, "status": s.Status,
		"date_sent": s.DateSent, "notes": s.Notes,
	}
}

func decodeTask(r store.Row) domain.Task {
	t := domain.Task{
		ID:          r.Int("id"),
		CustomerID:  r.Str("customer_id"),
		SampleID:    r.Int("sample_id"),
		TaskType:    r.Str("task_type"),
		Description: r.Str("description"),
		Status:      r.Str("status"),
		CreatedAt:   r.Time("created_at"),
		AssignedTo:  r.Str("assigned_to"),
	}
	if t.TaskType == "" {
		t.TaskType = domain.TaskTypeFollowup
	}
	if t.Status == "" {
		t.Status = domain.TaskStatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return t
}

func encodeTask(t domain.Task) store.Row {
	return store.Row{
		"id": t.ID, "customer_id": t.CustomerID, "sample_id": t.SampleID,
		"task_type": t.TaskType, "description": t.Description, "status": t.Status,
		"created_at": t.CreatedAt, "assigned_to": t.AssignedTo,
	}
}

func decodeMailLog(r store.Row) domain.MailLog {
	l := domain.MailLog{
		ID:           r.Int("id"),
		ToEmail:      r.Str("to_email"),
		Subject:      r.Str("subject"),
		Status:       r.Str("status"),
		ErrorMessage: r.Str("error_message"),
		SentAt:       r.Time("sent_at"),
		CreatedAt:    r.Time("created_at"),
		BatchID:      r.Str("batch_id"),
		TaskIDs:      r.Str("task_ids"),
	}
	if l.Status == "" {
		l.Status = domain.MailStatusPending
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	return l
}

func encodeMailLog(l domain.MailLog) store.Row {
	return store.Row{
		"id": l.ID, "to_email": l.ToEmail, "subject": l.Subject,
		"status": l.Status, "error_message": l.ErrorMessage,
		"sent_at": l.SentAt, "created_at": l.CreatedAt,
		"batch_id": l.BatchID, "task_ids": l.TaskIDs,
	}
}

// CSVCustomerRepository serves customers from customers.csv. When note
// and sample repositories are wired in, Stats aggregates across their
// loaded sets with linear scans - there is no join machinery.
type CSVCustomerRepository struct {
	table   *store.Table[domain.Customer]
	byID    map[string]domain.Customer
	notes   *CSVNoteRepository
	samples *CSVSampleRepository
}

// NewCSVCustomerRepository loads the customer file eagerly and indexes
// it by identity. notes and samples may be nil; stats then report zero.
func NewCSVCustomerRepository(path string, notes *CSVNoteRepository, samples *CSVSampleRepository) (*CSVCustomerRepository, error) {
	table := store.NewTable(path, customerSchema, decodeCustomer, encodeCustomer)
	customers, err := table.Load()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}
	return &CSVCustomerRepository{table: table, byID: byID, notes: notes, samples: samples}, nil
}

func (r *CSVCustomerRepository) GetByID(id string) (*domain.Customer, error) {
	if c, ok := r.byID[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r *CSVCustomerRepository) Stats(id string) (domain.CustomerStats, error) {
	var stats domain.CustomerStats
	if _, ok := r.byID[id]; !ok {
		return stats, nil
	}
	if r.notes != nil {
		for _, n := range r.notes.notes {
			if n.CustomerID == id {
				stats.NotesCount++
			}
		}
	}
	if r.samples != nil {
		for _, s := range r.samples.samples {
			if s.CustomerID == id {
				stats.SamplesCount++
			}
		}
	}
	return stats, nil
}

// CSVNoteRepository serves notes from notes.csv.
type CSVNoteRepository struct {
	table *store.Table[domain.Note]
	notes []domain.Note
}

func NewCSVNoteRepository(path string) (*CSVNoteRepository, error) {
	table := store.NewTable(path, noteSchema, decodeNote, encodeNote)
	notes, err := table.Load()
	if err != nil {
		return nil, err
	}
	return &CSVNoteRepository{table: table, notes: notes}, nil
}

func (r *CSVNoteRepository) GetAll(processed *bool) ([]domain.Note, error) {
	if processed == nil {
		return append([]domain.Note(nil), r.notes...), nil
	}
	var out []domain.Note
	for _, n := range r.notes {
		if n.IsProcessed == *processed {
			out = append(out, n)
		}
	}
	return out, nil
}

// MarkProcessed sets the flag on the in-memory record only. The CSV
// variant intentionally does not flush this mutation to disk, matching
// the behavior the original system shipped with; whether that is a bug
// or batch-only persistence was never stated upstream, so it is kept
// as is rather than silently changed. The sqlite variant persists.
func (r *CSVNoteRepository) MarkProcessed(id int, category string) error {
	for i := range r.notes {
		if r.notes[i].ID == id {
			r.notes[i].IsProcessed = true
			logging.Repo("note %d marked processed (category: %s)", id, category)
			return nil
		}
	}
	logging.RepoWarn("note %d not found", id)
	return fmt.Errorf("note %d not found", id)
}

// CSVSampleRepository serves samples from samples.csv.
type CSVSampleRepository struct {
	table   *store.Table[domain.Sample]
	samples []domain.Sample
}

func NewCSVSampleRepository(path string) (*CSVSampleRepository, error) {
	table := store.NewTable(path, sampleSchema, decodeSample, encodeSample)
	samples, err := table.Load()
	if err != nil {
		return nil, err
	}
	return &CSVSampleRepository{table: table, samples: samples}, nil
}

// GetByStatus filters by exact, case-sensitive status. An empty status
// matches nothing.
func (r *CSVSampleRepository) GetByStatus(status string) ([]domain.Sample, error) {
	if status == "" {
		return nil, nil
	}
	var out []domain.Sample
	for _, s := range r.samples {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

// SaveAll overwrites the sample file with the given set.
func (r *CSVSampleRepository) SaveAll(samples []domain.Sample) error {
	if err := r.table.Save(samples); err != nil {
		return err
	}
	r.samples = append([]domain.Sample(nil), samples...)
	return nil
}

// CSVTaskRepository manages tasks.csv with write-through persistence:
// every Create rewrites the whole file.
type CSVTaskRepository struct {
	table  *store.Table[domain.Task]
	tasks  []domain.Task
	nextID int
}

func NewCSVTaskRepository(path string) (*CSVTaskRepository, error) {
	table := store.NewTable(path, taskSchema, decodeTask, encodeTask)
	tasks, err := table.Load()
	if err != nil {
		return nil, err
	}
	maxID := 0
	for _, t := range tasks {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	return &CSVTaskRepository{table: table, tasks: tasks, nextID: maxID + 1}, nil
}

func (r *CSVTaskRepository) GetByCustomerAndSample(customerID string, sampleID int) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range r.tasks {
		if t.CustomerID == customerID && t.SampleID == sampleID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *CSVTaskRepository) Create(task *domain.Task) error {
	if task.ID == 0 {
		task.ID = r.nextID
		r.nextID++
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	r.tasks = append(r.tasks, *task)
	if err := r.table.Save(r.tasks); err != nil {
		// Roll the in-memory append back so a retry does not duplicate.
		r.tasks = r.tasks[:len(r.tasks)-1]
		return err
	}
	logging.Repo("created task %d for customer %s, sample %d", task.ID, task.CustomerID, task.SampleID)
	return nil
}

func (r *CSVTaskRepository) PendingBySalesperson(email string) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range r.tasks {
		if t.AssignedTo == email && t.Status == domain.TaskStatusPending {
			out = append(out, t)
		}
	}
	return out, nil
}

// CSVMailLogRepository manages mail_logs.csv with write-through
// persistence.
type CSVMailLogRepository struct {
	table  *store.Table[domain.MailLog]
	logs   []domain.MailLog
	nextID int
}

func NewCSVMailLogRepository(path string) (*CSVMailLogRepository, error) {
	table := store.NewTable(path, mailLogSchema, decodeMailLog, encodeMailLog)
	logs, err := table.Load()
	if err != nil {
		return nil, err
	}
	maxID := 0
	for _, l := range logs {
		if l.ID > maxID {
			maxID = l.ID
		}
	}
	return &CSVMailLogRepository{table: table, logs: logs, nextID: maxID + 1}, nil
}

func (r *CSVMailLogRepository) Create(log *domain.MailLog) error {
	if log.ID == 0 {
		log.ID = r.nextID
		r.nextID++
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.logs = append(r.logs, *log)
	if err := r.table.Save(r.logs); err != nil {
		r.logs = r.logs[:len(r.logs)-1]
		return err
	}
	logging.Repo("created mail log %d for %s, status %s", log.ID, log.ToEmail, log.Status)
	return nil
}

func (r *CSVMailLogRepository) UpdateStatus(id int, status, errorMessage string) error {
	for i := range r.logs {
		if r.logs[i].ID != id {
			continue
		}
		r.logs[i].Status = status
		switch status {
		case domain.MailStatusSent:
			r.logs[i].SentAt = time.Now()
			r.logs[i].ErrorMessage = ""
		case domain.MailStatusFailed:
			r.logs[i].ErrorMessage = errorMessage
		}
		if err := r.table.Save(r.logs); err != nil {
			return err
		}
		logging.Repo("updated mail log %d to %s", id, status)
		return nil
	}
	logging.RepoWarn("mail log %d not found", id)
	return fmt.Errorf("mail log %d not found", id)
}

func (r *CSVMailLogRepository) Get(id int) (*domain.MailLog, error) {
	for _, l := range r.logs {
		if l.ID == id {
			out := l
			return &out, nil
		}
	}
	return nil, nil
}

func (r *CSVMailLogRepository) LastFailedOrPending(batchID string) (*domain.MailLog, error) {
	newest := func(status string) *domain.MailLog {
		var best *domain.MailLog
		for i := range r.logs {
			l := r.logs[i]
			if l.Status != status {
				continue
			}
			if batchID != "" && l.BatchID != batchID {
				continue
			}
			if best == nil || l.CreatedAt.After(best.CreatedAt) {
				out := l
				best = &out
			}
		}
		return best
	}
	if l := newest(domain.MailStatusFailed); l != nil {
		return l, nil
	}
	return newest(domain.MailStatusPending), nil
}

func (r *CSVMailLogRepository) LogsByBatch(batchID string) ([]domain.MailLog, error) {
	var out []domain.MailLog
	for _, l := range r.logs {
		if l.BatchID == batchID {
			out = append(out, l)
		}
	}
	return out, nil
}
