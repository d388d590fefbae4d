package repo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"samplewatch/internal/domain"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCSVCustomerRepository(t *testing.T) {
	dir := t.TempDir()
	custPath := writeCSV(t, dir, customersFile,
		"id;name;email;phone;salesperson_email;created_at\n"+
			"CUST001;Alfa Sp. z o.o.;biuro@alfa.pl;123456789;anna@firma.pl;2025-01-10\n"+
			"CUST002;Beta SA;kontakt@beta.pl;;piotr@firma.pl;2025-02-01\n")
	notesPath := writeCSV(t, dir, notesFile,
		"id;customer_id;content;created_at;is_processed\n"+
			"1;CUST001;pierwsza notatka;2025-03-01;False\n"+
			"2;CUST001;druga notatka;2025-03-02;True\n"+
			"3;CUST002;notatka;2025-03-03;False\n")
	samplesPath := writeCSV(t, dir, samplesFile,
		"id;customer_id;status;date_sent;notes\n"+
			"10;CUST001;Sent;2025-03-01;probka A\n")

	notes, err := NewCSVNoteRepository(notesPath)
	require.NoError(t, err)
	samples, err := NewCSVSampleRepository(samplesPath)
	require.NoError(t, err)
	repo, err := NewCSVCustomerRepository(custPath, notes, samples)
	require.NoError(t, err)

	t.Run("get by id", func(t *testing.T) {
		c, err := repo.GetByID("CUST001")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "Alfa Sp. z o.o.", c.Name)
		assert.Equal(t, "anna@firma.pl", c.SalespersonEmail)
	})

	t.Run("unknown id returns nil", func(t *testing.T) {
		c, err := repo.GetByID("CUST999")
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("stats aggregate notes and samples", func(t *testing.T) {
		stats, err := repo.Stats("CUST001")
		require.NoError(t, err)
		assert.Equal(t, 2, stats.NotesCount)
		assert.Equal(t, 1, stats.SamplesCount)
	})

	t.Run("stats for unknown customer are zero", func(t *testing.T) {
		stats, err := repo.Stats("CUST999")
		require.NoError(t, err)
		assert.Zero(t, stats.NotesCount)
		assert.Zero(t, stats.SamplesCount)
	})
}

func TestCSVNoteRepositoryFilter(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, notesFile,
		"id;customer_id;content;created_at;is_processed\n"+
			"1;CUST001;a;2025-03-01;False\n"+
			"2;CUST001;b;2025-03-02;True\n"+
			"3;CUST002;c;2025-03-03;tak\n")

	repo, err := NewCSVNoteRepository(path)
	require.NoError(t, err)

	all, err := repo.GetAll(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	f := false
	unprocessed, err := repo.GetAll(&f)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, 1, unprocessed[0].ID)

	tr := true
	processed, err := repo.GetAll(&tr)
	require.NoError(t, err)
	assert.Len(t, processed, 2)
}

func TestCSVNoteRepositoryMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, notesFile,
		"id;customer_id;content;created_at;is_processed\n"+
			"1;CUST001;a;2025-03-01;False\n")

	repo, err := NewCSVNoteRepository(path)
	require.NoError(t, err)

	require.NoError(t, repo.MarkProcessed(1, "inquiry"))
	f := false
	unprocessed, err := repo.GetAll(&f)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)

	assert.Error(t, repo.MarkProcessed(99, ""))
}

func TestCSVSampleRepositoryGetByStatus(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, samplesFile,
		"id;customer_id;status;date_sent;notes\n"+
			"1;CUST001;Sent;2025-03-01;\n"+
			"2;CUST002;Delivered;2025-03-02;\n"+
			"3;CUST003;Sent;2025-03-03;\n")

	repo, err := NewCSVSampleRepository(path)
	require.NoError(t, err)

	sent, err := repo.GetByStatus("Sent")
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	// Case sensitive, no normalization.
	lower, err := repo.GetByStatus("sent")
	require.NoError(t, err)
	assert.Empty(t, lower)

	none, err := repo.GetByStatus("")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCSVSampleRepositorySaveAll(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, samplesFile,
		"id;customer_id;status;date_sent;notes\n"+
			"1;CUST001;Sent;2025-03-01;\n")

	repo, err := NewCSVSampleRepository(path)
	require.NoError(t, err)

	updated := []domain.Sample{
		{ID: 1, CustomerID: "CUST001", Status: "Delivered", DateSent: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, repo.SaveAll(updated))

	reloaded, err := NewCSVSampleRepository(path)
	require.NoError(t, err)
	delivered, err := reloaded.GetByStatus("Delivered")
	require.NoError(t, err)
	require.Len(t, delivered, 1)
	sent, err := reloaded.GetByStatus("Sent")
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestCSVTaskRepositoryCreate(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, tasksFile,
		"id;customer_id;sample_id;task_type;description;status;created_at;assigned_to\n"+
			"5;CUST001;10;SAMPLE_FOLLOWUP;old;PENDING;2025-03-01 10:00:00;anna@firma.pl\n")

	repo, err := NewCSVTaskRepository(path)
	require.NoError(t, err)

	task := &domain.Task{
		CustomerID:  "CUST002",
		SampleID:    11,
		TaskType:    domain.TaskTypeFollowup,
		Description: "check",
		Status:      domain.TaskStatusPending,
		AssignedTo:  "piotr@firma.pl",
	}
	require.NoError(t, repo.Create(task))

	t.Run("ids continue from the highest existing", func(t *testing.T) {
		assert.Equal(t, 6, task.ID)
		assert.False(t, task.CreatedAt.IsZero())

		second := &domain.Task{CustomerID: "CUST003", SampleID: 12}
		require.NoError(t, repo.Create(second))
		assert.Equal(t, 7, second.ID)
	})

	t.Run("create persists immediately", func(t *testing.T) {
		reloaded, err := NewCSVTaskRepository(path)
		require.NoError(t, err)
		got, err := reloaded.GetByCustomerAndSample("CUST002", 11)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "check", got[0].Description)
	})

	t.Run("pending by salesperson", func(t *testing.T) {
		pending, err := repo.PendingBySalesperson("anna@firma.pl")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 5, pending[0].ID)
	})
}

func TestCSVTaskRepositoryStartsAtOneWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), tasksFile)
	repo, err := NewCSVTaskRepository(path)
	require.NoError(t, err)

	task := &domain.Task{CustomerID: "CUST001", SampleID: 1}
	require.NoError(t, repo.Create(task))
	assert.Equal(t, 1, task.ID)
}

func TestCSVMailLogRepositoryLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), mailLogsFile)
	repo, err := NewCSVMailLogRepository(path)
	require.NoError(t, err)

	log := &domain.MailLog{
		ToEmail: "anna@firma.pl",
		Subject: "tasks",
		Status:  domain.MailStatusPending,
		BatchID: "batch_1",
		TaskIDs: "1,2",
	}
	require.NoError(t, repo.Create(log))
	require.Equal(t, 1, log.ID)

	t.Run("sent stamps time and clears error", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(log.ID, domain.MailStatusSent, ""))
		got, err := repo.Get(log.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.MailStatusSent, got.Status)
		assert.False(t, got.SentAt.IsZero())
		assert.Empty(t, got.ErrorMessage)
	})

	t.Run("failed records the message", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(log.ID, domain.MailStatusFailed, "smtp timeout"))
		got, err := repo.Get(log.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.MailStatusFailed, got.Status)
		assert.Equal(t, "smtp timeout", got.ErrorMessage)
	})

	t.Run("unknown id errors", func(t *testing.T) {
		assert.Error(t, repo.UpdateStatus(99, domain.MailStatusSent, ""))
	})
}

func TestCSVMailLogLastFailedOrPending(t *testing.T) {
	newRepo := func(t *testing.T) *CSVMailLogRepository {
		repo, err := NewCSVMailLogRepository(filepath.Join(t.TempDir(), mailLogsFile))
		require.NoError(t, err)
		return repo
	}
	at := func(day int) time.Time {
		return time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC)
	}

	t.Run("failed beats newer pending", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "a@x", Status: domain.MailStatusFailed, BatchID: "b1", CreatedAt: at(1)}))
		require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "b@x", Status: domain.MailStatusPending, BatchID: "b1", CreatedAt: at(2)}))

		got, err := repo.LastFailedOrPending("")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "a@x", got.ToEmail)
	})

	t.Run("newest failed wins", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "old@x", Status: domain.MailStatusFailed, CreatedAt: at(1)}))
		require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "new@x", Status: domain.MailStatusFailed, CreatedAt: at(3)}))

		got, err := repo.LastFailedOrPending("")
		require.NoError(t, err)
		assert.Equal(t, "new@x", got.ToEmail)
	})

	t.Run("pending when no failed", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "a@x", Status: domain.MailStatusSent, CreatedAt: at(1)}))
		require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "b@x", Status: domain.MailStatusPending, CreatedAt: at(2)}))

		got, err := repo.LastFailedOrPending("")
		require.NoError(t, err)
		assert.Equal(t, "b@x", got.ToEmail)
	})

	t.Run("batch filter", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "a@x", Status: domain.MailStatusFailed, BatchID: "b1", CreatedAt: at(1)}))
		require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "b@x", Status: domain.MailStatusFailed, BatchID: "b2", CreatedAt: at(2)}))

		got, err := repo.LastFailedOrPending("b1")
		require.NoError(t, err)
		assert.Equal(t, "a@x", got.ToEmail)
	})

	t.Run("all complete yields nil", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "a@x", Status: domain.MailStatusSent, CreatedAt: at(1)}))

		got, err := repo.LastFailedOrPending("")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestCSVMailLogLogsByBatch(t *testing.T) {
	repo, err := NewCSVMailLogRepository(filepath.Join(t.TempDir(), mailLogsFile))
	require.NoError(t, err)
	require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "a@x", Status: domain.MailStatusSent, BatchID: "b1"}))
	require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "b@x", Status: domain.MailStatusFailed, BatchID: "b1"}))
	require.NoError(t, repo.Create(&domain.MailLog{ToEmail: "c@x", Status: domain.MailStatusFailed, BatchID: "b2"}))

	got, err := repo.LogsByBatch("b1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
