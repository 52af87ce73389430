package tracker

import (
	"context"
	"fmt"

	"github.com/fera765/flui/pkg/models"
)

// observer turns executor callbacks into tracked state and log entries.
type observer struct {
	tracker *Tracker
	record  *record
	ctx     context.Context //nolint:containedctx
}

func (o *observer) RunStarted(execution *models.ExecutionContext) {
	o.tracker.log(o.ctx, o.record, "", models.LogLevelInfo, fmt.Sprintf("Execution %s started", execution.ID))
}

func (o *observer) NodeStarted(_ string, node *models.Node) {
	o.tracker.log(o.ctx, o.record, node.ID, models.LogLevelInfo, fmt.Sprintf("Executing node %s (%s)", displayName(node), node.Type))
}

func (o *observer) NodeCompleted(_ string, node *models.Node, _ *models.NodeResult) {
	o.record.update(func(s *Status) { s.CompletedNodes++ })
	o.tracker.log(o.ctx, o.record, node.ID, models.LogLevelInfo, fmt.Sprintf("Node %s completed", displayName(node)))
}

func (o *observer) NodeFailed(_ string, node *models.Node, result *models.NodeResult) {
	o.record.update(func(s *Status) { s.FailedNodes++ })
	o.tracker.log(o.ctx, o.record, node.ID, models.LogLevelError, fmt.Sprintf("Node %s failed: %s", displayName(node), result.Error))
}

func (o *observer) NodeSkipped(_ string, node *models.Node, result *models.NodeResult) {
	o.record.update(func(s *Status) { s.SkippedNodes++ })
	o.tracker.log(o.ctx, o.record, node.ID, models.LogLevelWarn, fmt.Sprintf("Node %s skipped: %s", displayName(node), result.Error))
}

func (o *observer) RunFinished(execution *models.ExecutionContext) {
	level := models.LogLevelInfo
	if execution.Status == models.ExecutionStatusFailed {
		level = models.LogLevelError
	}

	o.tracker.log(o.ctx, o.record, "", level, fmt.Sprintf("Execution %s %s", execution.ID, execution.Status))
	o.tracker.finish(o.ctx, o.record, execution, nil)
}

func displayName(node *models.Node) string {
	if node.Name != "" {
		return node.Name
	}

	return node.ID
}
