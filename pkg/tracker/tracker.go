// Package tracker runs automations on behalf of callers and keeps the live
// status, logs and event stream of the latest run of each automation.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fera765/flui/pkg/eventbus"
	"github.com/fera765/flui/pkg/events"
	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/workflow"
)

// Status is the tracked view of an automation's latest run.
type Status struct {
	AutomationID   string                  `json:"automationId"`
	RunID          string                  `json:"runId,omitempty"`
	Status         models.AutomationStatus `json:"status"`
	TotalNodes     int                     `json:"totalNodes"`
	CompletedNodes int                     `json:"completedNodes"`
	FailedNodes    int                     `json:"failedNodes"`
	SkippedNodes   int                     `json:"skippedNodes"`
	Logs           []models.LogEntry       `json:"logs"`
	StartedAt      *time.Time              `json:"startedAt,omitempty"`
	FinishedAt     *time.Time              `json:"finishedAt,omitempty"`
}

func (s *Status) Terminal() bool {
	return s.Status == models.AutomationStatusCompleted || s.Status == models.AutomationStatusFailed
}

type Tracker struct {
	persistence persistence.Persistence
	executor    *workflow.Executor
	publisher   eventbus.EventPublisher
	logger      *slog.Logger

	mu      sync.Mutex
	records map[string]*record
	wg      sync.WaitGroup
}

// New creates a tracker. publisher may be nil.
func New(persistence persistence.Persistence, executor *workflow.Executor, publisher eventbus.EventPublisher, logger *slog.Logger) *Tracker {
	return &Tracker{
		persistence: persistence,
		executor:    executor,
		publisher:   publisher,
		logger:      logger.With("module", "tracker"),
		records:     make(map[string]*record),
	}
}

// Start launches a run in the background and returns its id. The run is
// detached from ctx. A run started while another is in flight replaces it as
// the tracked run of the automation.
func (t *Tracker) Start(ctx context.Context, automationID string, input map[string]any) (string, error) {
	return t.StartFrom(ctx, automationID, "", input)
}

// StartFrom is Start seeding only the trigger node triggerNodeID. An empty
// id seeds every trigger.
func (t *Tracker) StartFrom(ctx context.Context, automationID, triggerNodeID string, input map[string]any) (string, error) {
	automation, err := t.automation(ctx, automationID)
	if err != nil {
		return "", err
	}

	rec := t.track(ctx, automation)

	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		_, _ = t.execute(context.WithoutCancel(ctx), automation, rec, triggerNodeID, input)
	}()

	return rec.runID, nil
}

// Run executes the automation and waits for the result. The run is tracked
// like one launched by Start.
func (t *Tracker) Run(ctx context.Context, automationID string, input map[string]any) (*models.ExecutionContext, error) {
	return t.RunFrom(ctx, automationID, "", input)
}

// RunFrom is Run seeding only the trigger node triggerNodeID.
func (t *Tracker) RunFrom(ctx context.Context, automationID, triggerNodeID string, input map[string]any) (*models.ExecutionContext, error) {
	automation, err := t.automation(ctx, automationID)
	if err != nil {
		return nil, err
	}

	return t.execute(ctx, automation, t.track(ctx, automation), triggerNodeID, input)
}

// Wait blocks until every background run finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) Status(ctx context.Context, automationID string) (*Status, error) {
	automation, err := t.automation(ctx, automationID)
	if err != nil {
		return nil, err
	}

	if rec := t.current(automationID); rec != nil {
		return rec.snapshot(), nil
	}

	return idleStatus(automation), nil
}

func (t *Tracker) Logs(ctx context.Context, automationID string) ([]models.LogEntry, error) {
	status, err := t.Status(ctx, automationID)
	if err != nil {
		return nil, err
	}

	return status.Logs, nil
}

// Subscribe streams the tracked run of the automation: the log entries
// recorded so far, then live entries, then the terminal status. Without a
// run in flight the channel only holds the current status. The stream is not
// resumable; cancel, or ctx ending, unsubscribes without affecting the run.
func (t *Tracker) Subscribe(ctx context.Context, automationID string) (<-chan Event, func(), error) {
	automation, err := t.automation(ctx, automationID)
	if err != nil {
		return nil, nil, err
	}

	if rec := t.current(automationID); rec != nil {
		if ch, cancel, ok := rec.subscribe(); ok {
			stop := context.AfterFunc(ctx, cancel)

			return ch, func() {
				stop()
				cancel()
			}, nil
		}

		return closedStream(rec.snapshot()), func() {}, nil
	}

	return closedStream(idleStatus(automation)), func() {}, nil
}

func (t *Tracker) automation(ctx context.Context, automationID string) (*models.Automation, error) {
	automation, err := t.persistence.Automations().GetByID(ctx, automationID)
	if err != nil {
		return nil, err
	}

	if automation == nil {
		return nil, persistence.NewEntityError("Get", persistence.KindAutomation, automationID, persistence.ErrAutomationNotFound)
	}

	return automation, nil
}

func (t *Tracker) current(automationID string) *record {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.records[automationID]
}

func (t *Tracker) isCurrent(rec *record) bool {
	return t.current(rec.automationID) == rec
}

// track registers a new run as the tracked run of automation.
func (t *Tracker) track(ctx context.Context, automation *models.Automation) *record {
	rec := newRecord(automation, uuid.NewString())

	t.mu.Lock()
	previous := t.records[automation.ID]
	t.records[automation.ID] = rec
	t.mu.Unlock()

	if previous != nil && !previous.snapshot().Terminal() {
		t.logger.WarnContext(ctx, "run superseded by a newer run",
			"automation_id", automation.ID, "run_id", previous.runID, "new_run_id", rec.runID)
	}

	t.setStatus(ctx, rec, models.AutomationStatusRunning)

	return rec
}

func (t *Tracker) execute(ctx context.Context, automation *models.Automation, rec *record, triggerNodeID string, input map[string]any) (*models.ExecutionContext, error) {
	t.publish(ctx, automation.ID, events.ExecutionStarted{
		BaseEvent:      events.NewBaseEvent(events.ExecutionStartedEvent, automation.ID, rec.runID),
		AutomationName: automation.Name,
		Input:          input,
	})

	execution, err := t.executor.Execute(ctx, workflow.Request{
		RunID:         rec.runID,
		Automation:    automation,
		TriggerNodeID: triggerNodeID,
		Input:         input,
		Observer:      &observer{tracker: t, record: rec, ctx: ctx},
	})
	if execution == nil {
		// the run could not be planned, no observer callback was made
		execution = models.NewExecutionContext(rec.runID, automation.ID, rec.startedAt)
		finishedAt := time.Now().UTC()
		execution.FinishedAt = &finishedAt
		execution.Status = models.ExecutionStatusFailed

		t.log(ctx, rec, "", models.LogLevelError, fmt.Sprintf("Execution failed: %v", err))
		t.finish(ctx, rec, execution, err)
	} else if err != nil {
		t.logger.ErrorContext(ctx, "run interrupted", "automation_id", automation.ID, "run_id", rec.runID, "error", err)
	}

	return execution, err
}

func (t *Tracker) finish(ctx context.Context, rec *record, execution *models.ExecutionContext, runErr error) {
	if err := t.persistence.Executions().Save(ctx, execution); err != nil {
		t.logger.ErrorContext(ctx, "failed to save execution", "automation_id", rec.automationID, "run_id", rec.runID, "error", err)
	}

	status := models.AutomationStatusCompleted
	if execution.Status == models.ExecutionStatusFailed {
		status = models.AutomationStatusFailed
	}

	rec.finish(status, execution.FinishedAt)
	t.setStatus(ctx, rec, status)

	finished := events.ExecutionFinished{
		BaseEvent:     events.NewBaseEvent(events.ExecutionFinishedEvent, rec.automationID, rec.runID),
		Status:        execution.Status,
		ExecutedNodes: len(execution.ExecutedNodes),
		FailedNodes:   rec.snapshot().FailedNodes,
	}

	if execution.FinishedAt != nil {
		finished.Duration = execution.FinishedAt.Sub(execution.StartedAt)
	}

	if runErr != nil {
		finished.Error = runErr.Error()
	}

	t.publish(ctx, rec.automationID, finished)

	snapshot := rec.snapshot()
	rec.broadcast.finish(Event{Type: EventStatus, Status: snapshot})
}

// setStatus stores the automation status unless rec was superseded.
func (t *Tracker) setStatus(ctx context.Context, rec *record, status models.AutomationStatus) {
	if !t.isCurrent(rec) {
		return
	}

	err := t.persistence.Automations().UpdateStatus(ctx, rec.automationID, status)
	if err != nil && !errors.Is(err, persistence.ErrAutomationNotFound) {
		t.logger.ErrorContext(ctx, "failed to update automation status", "automation_id", rec.automationID, "status", status, "error", err)
	}
}

func (t *Tracker) log(ctx context.Context, rec *record, nodeID string, level models.LogLevel, message string) {
	entry := models.LogEntry{
		RunID:     rec.runID,
		NodeID:    nodeID,
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	rec.emit(entry)

	t.logger.Log(ctx, slogLevel(level), message, "automation_id", rec.automationID, "run_id", rec.runID, "node_id", nodeID)
	t.publish(ctx, rec.automationID, events.NodeLogged{
		BaseEvent: events.NewBaseEvent(events.NodeLoggedEvent, rec.automationID, rec.runID),
		Entry:     entry,
	})
}

func (t *Tracker) publish(ctx context.Context, automationID string, event eventbus.Event) {
	if t.publisher == nil {
		return
	}

	if err := t.publisher.Publish(ctx, automationID, event); err != nil {
		t.logger.ErrorContext(ctx, "failed to publish event", "automation_id", automationID, "event_type", event.GetType(), "error", err)
	}
}

func idleStatus(automation *models.Automation) *Status {
	status := automation.Status
	if status == "" {
		status = models.AutomationStatusIdle
	}

	return &Status{
		AutomationID: automation.ID,
		Status:       status,
		TotalNodes:   len(automation.Nodes),
		Logs:         []models.LogEntry{},
	}
}

func closedStream(status *Status) <-chan Event {
	ch := make(chan Event, 1)
	ch <- Event{Type: EventStatus, Status: status}
	close(ch)

	return ch
}

func slogLevel(level models.LogLevel) slog.Level {
	switch level {
	case models.LogLevelWarn:
		return slog.LevelWarn
	case models.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// record is the state of one tracked run.
type record struct {
	automationID string
	runID        string
	startedAt    time.Time
	broadcast    *broadcast

	mu     sync.Mutex
	status Status
}

func newRecord(automation *models.Automation, runID string) *record {
	startedAt := time.Now().UTC()

	return &record{
		automationID: automation.ID,
		runID:        runID,
		startedAt:    startedAt,
		broadcast:    newBroadcast(),
		status: Status{
			AutomationID: automation.ID,
			RunID:        runID,
			Status:       models.AutomationStatusRunning,
			TotalNodes:   len(automation.Nodes),
			Logs:         []models.LogEntry{},
			StartedAt:    &startedAt,
		},
	}
}

func (r *record) snapshot() *Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.status
	status.Logs = slices.Clone(r.status.Logs)

	return &status
}

// subscribe joins the broadcast with the entries logged so far as backlog.
func (r *record) subscribe() (<-chan Event, func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	backlog := make([]Event, 0, len(r.status.Logs))
	for _, entry := range r.status.Logs {
		backlog = append(backlog, Event{Type: EventLog, Log: &entry})
	}

	return r.broadcast.subscribe(backlog)
}

// emit appends entry and publishes it to the subscribers.
func (r *record) emit(entry models.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Logs = append(r.status.Logs, entry)
	r.broadcast.publish(Event{Type: EventLog, Log: &entry})
}

func (r *record) update(fn func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(&r.status)
}

func (r *record) finish(status models.AutomationStatus, finishedAt *time.Time) {
	r.update(func(s *Status) {
		s.Status = status
		s.FinishedAt = finishedAt
	})
}
