// Package followup implements the sample follow-up workflow: scan
// samples shipped in the last two weeks, check notes for delivery
// confirmations with the configured LLM provider, create follow-up
// tasks for salespeople, and send batched notification emails with
// resumable retry bookkeeping.
//
// Fail-open policy: when the LLM provider cannot be constructed, every
// sample in the run is treated as having no information and gets a
// follow-up task. The business prefers a redundant follow-up over a
// silently missed one.
package followup

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"samplewatch/internal/domain"
	"samplewatch/internal/llm"
	"samplewatch/internal/logging"
	"samplewatch/internal/mailer"
	"samplewatch/internal/repo"
)

// lookbackDays is the sample scan window, inclusive.
const lookbackDays = 14

// notificationTemplate is resolved against the template directory.
const notificationTemplate = "email/tasks_notification.html"

// ClientFactory constructs the analysis client. Injected so the
// fail-open degradation is testable.
type ClientFactory func() (llm.Client, error)

// Workflow is one runnable follow-up pass. Not safe for concurrent
// use; the tool runs as a single batch process.
type Workflow struct {
	repos     *repo.Repositories
	mailer    *mailer.Mailer
	newClient ClientFactory
	now       func() time.Time
	log       *logging.Logger
}

// Option customizes a Workflow.
type Option func(*Workflow)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// New creates a workflow over the given repositories and mailer.
func New(repos *repo.Repositories, m *mailer.Mailer, newClient ClientFactory, opts ...Option) *Workflow {
	w := &Workflow{
		repos:     repos,
		mailer:    m,
		newClient: newClient,
		now:       time.Now,
		log:       logging.Get(logging.CategoryWorkflow),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Summary reports what one run did.
type Summary struct {
	BatchID      string
	SamplesSeen  int
	TasksCreated int
	EmailsSent   int
	EmailsFailed int
}

// Run executes one follow-up pass to completion.
func (w *Workflow) Run(ctx context.Context) (*Summary, error) {
	now := w.now()
	logging.Workflow(">>> starting sample follow-up run")

	batchID := fmt.Sprintf("batch_%s_%s", now.Format("20060102_150405"), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])

	// Resume detection: a FAILED or PENDING log from a previous run
	// means that batch never completed. Reuse its batch identity and
	// map each recipient to their newest incomplete log so the retry
	// updates in place instead of opening a duplicate email thread.
	retryLogs := map[string]domain.MailLog{}
	if lastIncomplete, err := w.repos.MailLogs.LastFailedOrPending(""); err == nil && lastIncomplete != nil {
		w.log.Warn("found incomplete mail from a previous run: id=%d to=%s status=%s batch=%s",
			lastIncomplete.ID, lastIncomplete.ToEmail, lastIncomplete.Status, lastIncomplete.BatchID)
		if lastIncomplete.BatchID != "" {
			batchLogs, err := w.repos.MailLogs.LogsByBatch(lastIncomplete.BatchID)
			if err == nil {
				for _, l := range batchLogs {
					if l.Status != domain.MailStatusFailed && l.Status != domain.MailStatusPending {
						continue
					}
					if prev, ok := retryLogs[l.ToEmail]; !ok || l.CreatedAt.After(prev.CreatedAt) {
						retryLogs[l.ToEmail] = l
					}
				}
				logging.Workflow("found %d recipients to retry in batch %s", len(retryLogs), lastIncomplete.BatchID)
				batchID = lastIncomplete.BatchID
			}
		}
	}
	logging.Workflow("batch id for this run: %s", batchID)

	threshold := now.AddDate(0, 0, -lookbackDays)
	logging.Workflow("checking samples shipped after %s", threshold.Format("2006-01-02"))

	sentSamples, err := w.repos.Samples.GetByStatus(domain.SampleStatusSent)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples: %w", err)
	}
	var recent []domain.Sample
	for _, s := range sentSamples {
		if !s.DateSent.Before(threshold) && !s.DateSent.After(now) {
			recent = append(recent, s)
		}
	}
	logging.Workflow("found %d samples shipped in the last %d days", len(recent), lookbackDays)

	summary := &Summary{BatchID: batchID, SamplesSeen: len(recent)}
	if len(recent) == 0 {
		logging.Workflow("no samples to process, done")
		return summary, nil
	}

	allNotes, err := w.repos.Notes.GetAll(nil)
	if err != nil {
		w.log.Warn("failed to load notes, using empty list: %v", err)
		allNotes = nil
	}

	// Fail-open: a provider that cannot be constructed degrades every
	// analysis to no-information instead of aborting the run.
	var client llm.Client
	if c, err := w.newClient(); err != nil {
		w.log.Error("cannot initialize LLM client, degrading to no-information analysis: %v", err)
	} else {
		client = c
	}

	tasksBySalesperson := map[string][]domain.Task{}
	for _, sample := range recent {
		created, salesperson, err := w.processSample(ctx, sample, allNotes, client)
		if err != nil {
			w.log.Error("failed to process sample %d: %v", sample.ID, err)
			continue
		}
		if created != nil {
			tasksBySalesperson[salesperson] = append(tasksBySalesperson[salesperson], *created)
			summary.TasksCreated++
		}
	}

	w.notifySalespeople(tasksBySalesperson, recent, retryLogs, batchID, summary)

	logging.Workflow(">>> done: created %d tasks for %d salespeople",
		summary.TasksCreated, len(tasksBySalesperson))
	return summary, nil
}

// processSample runs the per-sample state decision. It returns the
// created task (nil when the sample was skipped) and the salesperson
// it was assigned to.
func (w *Workflow) processSample(ctx context.Context, sample domain.Sample, allNotes []domain.Note, client llm.Client) (*domain.Task, string, error) {
	if sample.CustomerID == "" {
		w.log.Warn("sample %d has no customer id, skipping", sample.ID)
		return nil, "", nil
	}
	if sample.DateSent.IsZero() {
		w.log.Warn("sample %d has no ship date, skipping", sample.ID)
		return nil, "", nil
	}
	w.log.Debug("checking sample %d, customer %s, shipped %s",
		sample.ID, sample.CustomerID, sample.DateSent.Format("2006-01-02"))

	// Idempotence guard: at most one task per (customer, sample).
	existing, err := w.repos.Tasks.GetByCustomerAndSample(sample.CustomerID, sample.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing tasks: %w", err)
	}
	if len(existing) > 0 {
		w.log.Debug("task already exists for sample %d", sample.ID)
		return nil, "", nil
	}

	result := w.analyzeNotes(ctx, client, allNotes, sample.CustomerID, sample.DateSent)

	if result.sampleReceived {
		logging.Workflow("LLM confirmed receipt of sample %d by customer %s", sample.ID, sample.CustomerID)
		return nil, "", nil
	}
	if result.hasDelay {
		logging.Workflow("LLM detected a delivery delay for sample %d, customer %s", sample.ID, sample.CustomerID)
	}

	customer, err := w.repos.Customers.GetByID(sample.CustomerID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load customer %s: %w", sample.CustomerID, err)
	}
	if customer == nil {
		w.log.Warn("customer %s not found for sample %d", sample.CustomerID, sample.ID)
		return nil, "", nil
	}
	if customer.SalespersonEmail == "" {
		w.log.Warn("customer %s has no assigned salesperson", sample.CustomerID)
		return nil, "", nil
	}

	customerName := customer.Name
	if customerName == "" {
		customerName = sample.CustomerID
	}
	shipDate := sample.DateSent.Format("2006-01-02")

	var description, taskType string
	switch {
	case result.hasDelay:
		description = fmt.Sprintf(
			"DELAY: customer %s (%s) has not yet received the sample shipped %s. Sample ID: %d. Check the delivery status and contact the customer.",
			customerName, sample.CustomerID, shipDate, sample.ID)
		taskType = domain.TaskTypeDelay
	case result.hasConfirmation && !result.sampleReceived:
		// The sample is mentioned, but receipt is unconfirmed.
		description = fmt.Sprintf(
			"Customer %s (%s) mentioned the sample but did not confirm receiving it. Sample shipped %s. Sample ID: %d. Verify the status.",
			customerName, sample.CustomerID, shipDate, sample.ID)
		taskType = domain.TaskTypeVerification
	default:
		description = fmt.Sprintf(
			"Check whether customer %s (%s) received the sample shipped %s. Sample ID: %d. No information in the notes.",
			customerName, sample.CustomerID, shipDate, sample.ID)
		taskType = domain.TaskTypeFollowup
	}
	if result.customerSatisfied != nil {
		if *result.customerSatisfied {
			description += " The customer is satisfied."
		} else {
			description += " The customer is unsatisfied."
		}
	}

	task := &domain.Task{
		CustomerID:  sample.CustomerID,
		SampleID:    sample.ID,
		TaskType:    taskType,
		Description: description,
		Status:      domain.TaskStatusPending,
		AssignedTo:  customer.SalespersonEmail,
	}
	if err := w.repos.Tasks.Create(task); err != nil {
		return nil, "", fmt.Errorf("failed to create task: %w", err)
	}
	logging.Workflow("created task %d for salesperson %s, customer %s, sample %d",
		task.ID, customer.SalespersonEmail, customerName, sample.ID)
	return task, customer.SalespersonEmail, nil
}

// analysisResult summarizes the LLM signal across a customer's notes.
type analysisResult struct {
	hasConfirmation   bool
	sampleReceived    bool
	hasDelay          bool
	customerSatisfied *bool
	best              *llm.Analysis
}

// analyzeNotes classifies every relevant note (same customer, created
// on or after the ship date) and selects the highest-confidence
// analysis that mentions the sample; ties keep the first seen. A nil
// client yields the empty result, which downstream reads as
// no-information.
func (w *Workflow) analyzeNotes(ctx context.Context, client llm.Client, notes []domain.Note, customerID string, sampleDate time.Time) analysisResult {
	var result analysisResult
	if client == nil || customerID == "" || sampleDate.IsZero() {
		return result
	}

	var relevant []domain.Note
	for _, n := range notes {
		if n.CustomerID == customerID && !n.CreatedAt.Before(sampleDate) {
			relevant = append(relevant, n)
		}
	}
	if len(relevant) == 0 {
		w.log.Debug("no notes for customer %s after %s", customerID, sampleDate.Format("2006-01-02"))
		return result
	}
	logging.Workflow("analyzing %d notes for customer %s", len(relevant), customerID)

	dateStr := sampleDate.Format("2006-01-02")
	bestConfidence := 0.0
	for _, note := range relevant {
		if strings.TrimSpace(note.Content) == "" {
			w.log.Debug("note %d has empty content, skipping", note.ID)
			continue
		}
		analysis, err := client.AnalyzeNote(ctx, note.Content, dateStr)
		if err != nil {
			w.log.Error("failed to analyze note %d: %v", note.ID, err)
			continue
		}
		if analysis.MentionsSample && analysis.Confidence > bestConfidence {
			bestConfidence = analysis.Confidence
			a := analysis
			result.best = &a
		}
	}

	if result.best != nil {
		result.hasConfirmation = result.best.MentionsSample
		result.sampleReceived = result.best.SampleStatus == llm.StatusReceived
		result.hasDelay = result.best.SampleStatus == llm.StatusDelayed
		switch result.best.CustomerSatisfaction {
		case llm.SatisfactionSatisfied:
			v := true
			result.customerSatisfied = &v
		case llm.SatisfactionUnsatisfied:
			v := false
			result.customerSatisfied = &v
		}
		logging.Workflow("analysis for customer %s: status=%s satisfaction=%s confidence=%.2f",
			customerID, result.best.SampleStatus, result.best.CustomerSatisfaction, result.best.Confidence)
	}
	return result
}

// notificationData feeds the email template.
type notificationData struct {
	SalespersonEmail string
	Tasks            []notificationTask
	TasksCount       int
}

type notificationTask struct {
	TaskID       int
	CustomerName string
	CustomerID   string
	SampleID     int
	SampleDate   string
	Description  string
}

// notifySalespeople sends one email per salesperson covering all their
// new tasks. A send failure is recorded on the mail log and does not
// abort the remaining sends.
func (w *Workflow) notifySalespeople(tasksBySalesperson map[string][]domain.Task, samples []domain.Sample, retryLogs map[string]domain.MailLog, batchID string, summary *Summary) {
	sampleByID := make(map[int]domain.Sample, len(samples))
	for _, s := range samples {
		sampleByID[s.ID] = s
	}

	// Deterministic send order.
	recipients := make([]string, 0, len(tasksBySalesperson))
	for email := range tasksBySalesperson {
		recipients = append(recipients, email)
	}
	sort.Strings(recipients)

	for _, salesperson := range recipients {
		tasks := tasksBySalesperson[salesperson]
		if len(tasks) == 0 {
			continue
		}
		logging.Workflow("preparing email for %s (%d tasks)", salesperson, len(tasks))

		var existingLog *domain.MailLog
		if l, ok := retryLogs[salesperson]; ok {
			existingLog = &l
			logging.Workflow("retrying send to %s (log %d)", salesperson, l.ID)
		}

		rows := make([]notificationTask, 0, len(tasks))
		taskIDs := make([]string, 0, len(tasks))
		for _, task := range tasks {
			customerName := task.CustomerID
			if c, err := w.repos.Customers.GetByID(task.CustomerID); err == nil && c != nil && c.Name != "" {
				customerName = c.Name
			}
			sampleDate := "N/A"
			if s, ok := sampleByID[task.SampleID]; ok && !s.DateSent.IsZero() {
				sampleDate = s.DateSent.Format("2006-01-02")
			}
			rows = append(rows, notificationTask{
				TaskID:       task.ID,
				CustomerName: customerName,
				CustomerID:   task.CustomerID,
				SampleID:     task.SampleID,
				SampleDate:   sampleDate,
				Description:  task.Description,
			})
			taskIDs = append(taskIDs, strconv.Itoa(task.ID))
		}

		notification := mailer.Notification{
			To:           salesperson,
			Subject:      fmt.Sprintf("New tasks to handle - %d samples need verification", len(rows)),
			TemplateName: notificationTemplate,
			Data: notificationData{
				SalespersonEmail: salesperson,
				Tasks:            rows,
				TasksCount:       len(rows),
			},
			BatchID: batchID,
			TaskIDs: strings.Join(taskIDs, ","),
		}
		if existingLog != nil {
			notification.LogID = existingLog.ID
			if existingLog.BatchID != "" {
				notification.BatchID = existingLog.BatchID
			}
		}

		logID, err := w.mailer.SendNotification(notification)
		if err != nil {
			w.log.Error("failed to send email to %s (log %d): %v", salesperson, logID, err)
			summary.EmailsFailed++
			continue
		}
		logging.Workflow("email sent to %s (log %d)", salesperson, logID)
		summary.EmailsSent++
	}
}
