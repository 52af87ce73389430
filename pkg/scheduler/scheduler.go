// Package scheduler fires automations whose trigger nodes reference a
// schedule trigger tool.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/persistence"
	"github.com/fera765/flui/pkg/tools/trigger"
)

// Starter launches a background run seeded from one trigger node.
type Starter interface {
	StartFrom(ctx context.Context, automationID, triggerNodeID string, input map[string]any) (string, error)
}

type Scheduler struct {
	persistence persistence.Persistence
	starter     Starter
	logger      *slog.Logger
	cron        *cron.Cron
	now         func() time.Time

	mu      sync.Mutex
	entries map[string][]cron.EntryID
}

func New(persistence persistence.Persistence, starter Starter, logger *slog.Logger) *Scheduler {
	logger = logger.With("module", "scheduler")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))

	return &Scheduler{
		persistence: persistence,
		starter:     starter,
		logger:      logger,
		cron:        cron.New(cron.WithChain(cron.Recover(cronLogger))),
		now:         func() time.Time { return time.Now().UTC() },
		entries:     make(map[string][]cron.EntryID),
	}
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops the cron loop and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler")

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync rebuilds every entry from the stored automations.
func (s *Scheduler) Sync(ctx context.Context) error {
	automations, err := s.persistence.Automations().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load automations: %w", err)
	}

	s.mu.Lock()
	for id := range s.entries {
		s.removeLocked(id)
	}
	s.mu.Unlock()

	for _, automation := range automations {
		s.schedule(ctx, automation)
	}

	return nil
}

// Next returns the next activation time of every entry of an automation.
func (s *Scheduler) Next(automationID string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]time.Time, 0, len(s.entries[automationID]))
	for _, id := range s.entries[automationID] {
		next = append(next, s.cron.Entry(id).Next)
	}

	return next
}

func (s *Scheduler) AutomationSaved(ctx context.Context, automation *models.Automation) {
	s.schedule(ctx, automation)
}

func (s *Scheduler) AutomationDeleted(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(id)
}

func (s *Scheduler) schedule(ctx context.Context, automation *models.Automation) {
	logger := s.logger.With("automation_id", automation.ID)

	var jobs []cron.EntryID

	for _, node := range automation.TriggerNodes() {
		spec, ok := s.cronSpec(ctx, node)
		if !ok {
			continue
		}

		schedule, err := cron.ParseStandard(spec)
		if err != nil {
			logger.WarnContext(ctx, "Invalid cron expression", "node_id", node.ID, "cron", spec, "error", err)
			continue
		}

		jobs = append(jobs, s.cron.Schedule(schedule, s.job(automation.ID, node.ID, spec)))
		logger.InfoContext(ctx, "Scheduled trigger", "node_id", node.ID, "cron", spec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(automation.ID)

	if len(jobs) > 0 {
		s.entries[automation.ID] = jobs
	}
}

// cronSpec reads "cron" and the optional "timezone" from the node config,
// falling back to the trigger tool config.
func (s *Scheduler) cronSpec(ctx context.Context, node *models.Node) (string, bool) {
	tool, err := s.persistence.Tools().GetByID(ctx, node.ReferenceID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load trigger tool", "tool_id", node.ReferenceID, "error", err)
		return "", false
	}

	if tool == nil || tool.Type != trigger.TypeSchedule {
		return "", false
	}

	lookup := func(key string) string {
		if v, ok := node.Config[key].(string); ok && v != "" {
			return v
		}

		v, _ := tool.Config[key].(string)

		return v
	}

	spec := lookup("cron")
	if spec == "" {
		s.logger.WarnContext(ctx, "Schedule trigger has no cron expression", "node_id", node.ID, "tool_id", tool.ID)
		return "", false
	}

	if tz := lookup("timezone"); tz != "" {
		spec = "CRON_TZ=" + tz + " " + spec
	}

	return spec, true
}

func (s *Scheduler) job(automationID, nodeID, spec string) cron.Job {
	return cron.FuncJob(func() {
		input := map[string]any{
			"scheduledAt": s.now().Format(time.RFC3339),
			"cron":        spec,
			"nodeId":      nodeID,
		}

		runID, err := s.starter.StartFrom(context.Background(), automationID, nodeID, input)
		if err != nil {
			s.logger.Error("Failed to start scheduled run", "automation_id", automationID, "node_id", nodeID, "error", err)
			return
		}

		s.logger.Info("Started scheduled run", "automation_id", automationID, "node_id", nodeID, "run_id", runID)
	})
}

func (s *Scheduler) removeLocked(automationID string) {
	for _, id := range s.entries[automationID] {
		s.cron.Remove(id)
	}

	delete(s.entries, automationID)
}
