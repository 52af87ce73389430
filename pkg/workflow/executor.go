// Package workflow runs automations: it binds nodes to their collaborators,
// resolves link data and walks the graph generation by generation.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fera765/flui/pkg/models"
	"github.com/fera765/flui/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Observer receives the lifecycle of a run. Calls for one run are made
// sequentially from the goroutine running it.
type Observer interface {
	RunStarted(execution *models.ExecutionContext)
	NodeStarted(runID string, node *models.Node)
	NodeCompleted(runID string, node *models.Node, result *models.NodeResult)
	NodeFailed(runID string, node *models.Node, result *models.NodeResult)
	NodeSkipped(runID string, node *models.Node, result *models.NodeResult)
	RunFinished(execution *models.ExecutionContext)
}

// NopObserver ignores every callback. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) RunStarted(*models.ExecutionContext)                    {}
func (NopObserver) NodeStarted(string, *models.Node)                       {}
func (NopObserver) NodeCompleted(string, *models.Node, *models.NodeResult) {}
func (NopObserver) NodeFailed(string, *models.Node, *models.NodeResult)    {}
func (NopObserver) NodeSkipped(string, *models.Node, *models.NodeResult)   {}
func (NopObserver) RunFinished(*models.ExecutionContext)                   {}

// Request describes one run. RunID is generated when empty. When
// TriggerNodeID is set only that trigger is seeded and the other triggers
// are pruned.
type Request struct {
	RunID         string
	Automation    *models.Automation
	TriggerNodeID string
	Input         map[string]any
	Observer      Observer
}

type Option func(*Executor)

// WithMaxParallel bounds how many nodes of a generation run at once. Zero
// means unbounded.
func WithMaxParallel(n int) Option {
	return func(e *Executor) {
		e.maxParallel = n
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

type Executor struct {
	invoker     *Invoker
	logger      *slog.Logger
	tracer      trace.Tracer
	maxParallel int
	now         func() time.Time
}

func NewExecutor(invoker *Invoker, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		invoker: invoker,
		logger:  logger.With("module", "workflow_executor"),
		tracer:  otelhelper.NoopTracer(),
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

type nodeState int

const (
	statePending nodeState = iota
	stateSucceeded
	stateFailed
	stateSkipped
	statePruned
)

type edgeState int

const (
	edgeUnsettled edgeState = iota
	edgeActive
	edgeBroken
	edgePruned
)

type run struct {
	*Executor

	plan      *plan
	execution *models.ExecutionContext
	observer  Observer
	logger    *slog.Logger
	trigger   string
	states    map[string]nodeState
	selected  map[string]map[string]bool
}

type dispatch struct {
	node  *models.Node
	input map[string]any
	out   Outcome
	err   error
}

// Execute runs the automation and returns its ExecutionContext. Node errors
// are recorded, not returned; an error is returned only when the run could
// not be planned or ctx was cancelled between generations.
func (e *Executor) Execute(ctx context.Context, req Request) (*models.ExecutionContext, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	observer := req.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	automation := req.Automation
	logger := e.logger.With("automation_id", automation.ID, "run_id", runID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "automation.run",
		attribute.String(otelhelper.AutomationIDKey, automation.ID),
		attribute.String(otelhelper.AutomationNameKey, automation.Name),
		attribute.String(otelhelper.RunIDKey, runID),
	)
	defer span.End()

	p, err := newPlan(ctx, e.invoker, automation, logger)
	if err == nil && req.TriggerNodeID != "" {
		if node := automation.Node(req.TriggerNodeID); node == nil || !node.IsTrigger() {
			err = fmt.Errorf("%w: %s", ErrNoTriggerNode, req.TriggerNodeID)
		}
	}

	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "failed to plan run", "error", err)

		return nil, fmt.Errorf("planning automation %s: %w", automation.ID, err)
	}

	r := &run{
		Executor:  e,
		plan:      p,
		execution: models.NewExecutionContext(runID, automation.ID, e.now()),
		observer:  observer,
		logger:    logger,
		trigger:   req.TriggerNodeID,
		states:    make(map[string]nodeState, len(p.order)),
		selected:  make(map[string]map[string]bool),
	}

	logger.InfoContext(ctx, "starting run", "planned_nodes", len(p.order))
	observer.RunStarted(r.execution)

	runErr := r.loop(ctx, req.Input)

	finishedAt := e.now()
	r.execution.FinishedAt = &finishedAt

	r.execution.Status = models.ExecutionStatusCompleted
	if runErr != nil || r.execution.Failed() {
		r.execution.Status = models.ExecutionStatusFailed
	}

	if runErr != nil {
		otelhelper.SetError(span, runErr)
		logger.ErrorContext(ctx, "run interrupted", "error", runErr)
	}

	logger.InfoContext(ctx, "run finished", "status", r.execution.Status, "executed_nodes", len(r.execution.ExecutedNodes))
	observer.RunFinished(r.execution)

	return r.execution, runErr
}

func (r *run) loop(ctx context.Context, rootInput map[string]any) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var ready []*dispatch

		for _, node := range r.plan.order {
			if r.states[node.ID] != statePending {
				continue
			}

			if node.IsTrigger() {
				if r.trigger != "" && node.ID != r.trigger {
					r.states[node.ID] = statePruned
					continue
				}

				ready = append(ready, &dispatch{node: node, input: Seed(node, rootInput)})
				continue
			}

			settled, broken, active := r.inspect(node)

			switch {
			case !settled:
				continue
			case broken != "":
				r.skip(ctx, node, fmt.Sprintf("upstream node %s did not succeed", broken))
			case active == nil:
				r.states[node.ID] = statePruned
				r.logger.DebugContext(ctx, "node pruned", "node_id", node.ID)
			default:
				input, err := Resolve(node, active, r.execution.ExecutedNodes)
				if err != nil {
					r.skip(ctx, node, err.Error())
					continue
				}

				ready = append(ready, &dispatch{node: node, input: input})
			}
		}

		if len(ready) == 0 {
			return nil
		}

		r.dispatch(ctx, ready)
	}
}

// inspect classifies the inbound edges of node once all of them settled.
// broken names the first source that failed or was skipped. active holds the
// links to resolve and is nil when the node is pruned: every edge was pruned,
// or the node is a branch target that no condition selected.
func (r *run) inspect(node *models.Node) (settled bool, broken string, active []*models.Link) {
	activeEdges, control, selected := 0, 0, 0

	for _, e := range r.plan.inbound[node.ID] {
		state := r.edgeState(e, node.ID)
		if e.link == nil {
			control++
		}

		switch state {
		case edgeUnsettled:
			return false, "", nil
		case edgePruned:
		case edgeBroken:
			if broken == "" {
				broken = e.from
			}
		case edgeActive:
			activeEdges++

			if e.link == nil {
				selected++
			} else {
				active = append(active, e.link)
			}
		}
	}

	if broken != "" || activeEdges == 0 || (control > 0 && selected == 0) {
		return true, broken, nil
	}

	if active == nil {
		active = []*models.Link{}
	}

	return true, "", active
}

func (r *run) edgeState(e edge, to string) edgeState {
	if !r.plan.planned[e.from] {
		return edgeBroken
	}

	switch r.states[e.from] {
	case statePending:
		return edgeUnsettled
	case statePruned:
		return edgePruned
	case stateFailed, stateSkipped:
		return edgeBroken
	case stateSucceeded:
	}

	if r.plan.branches[e.from][to] && !r.selected[e.from][to] {
		return edgePruned
	}

	return edgeActive
}

func (r *run) dispatch(ctx context.Context, ready []*dispatch) {
	var group errgroup.Group
	if r.maxParallel > 0 {
		group.SetLimit(r.maxParallel)
	}

	for _, d := range ready {
		r.observer.NodeStarted(r.execution.ID, d.node)

		group.Go(func() error {
			d.out, d.err = r.invoke(ctx, d.node, d.input)

			return nil
		})
	}

	_ = group.Wait()

	for _, d := range ready {
		r.record(ctx, d)
	}
}

func (r *run) invoke(ctx context.Context, node *models.Node, input map[string]any) (Outcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "node.execute",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
		attribute.String(otelhelper.NodeReferenceKey, node.ReferenceID),
	)
	defer span.End()

	r.logger.DebugContext(ctx, "executing node", "node_id", node.ID, "node_type", node.Type)

	out, err := r.plan.targets[node.ID].Resolve(ctx, input)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, node.ID))
		return Outcome{}, err
	}

	span.SetAttributes(attribute.String(otelhelper.NodeStatusKey, string(models.NodeStatusSuccess)))

	return out, nil
}

func (r *run) record(ctx context.Context, d *dispatch) {
	result := &models.NodeResult{
		NodeID:    d.node.ID,
		Timestamp: r.now(),
	}
	r.execution.ExecutedNodes[d.node.ID] = result

	if d.err != nil {
		result.Status = models.NodeStatusError
		result.Error = d.err.Error()
		r.states[d.node.ID] = stateFailed

		r.logger.ErrorContext(ctx, "node failed", "node_id", d.node.ID, "error", d.err)
		r.observer.NodeFailed(r.execution.ID, d.node, result)

		return
	}

	result.Status = models.NodeStatusSuccess
	result.Output = d.out.Output
	r.states[d.node.ID] = stateSucceeded

	if _, ok := r.plan.branches[d.node.ID]; ok {
		selected := make(map[string]bool, len(d.out.Branch))
		for _, id := range d.out.Branch {
			selected[id] = true
		}

		r.selected[d.node.ID] = selected
	}

	r.logger.InfoContext(ctx, "node completed", "node_id", d.node.ID)
	r.observer.NodeCompleted(r.execution.ID, d.node, result)
}

func (r *run) skip(ctx context.Context, node *models.Node, reason string) {
	result := &models.NodeResult{
		NodeID:    node.ID,
		Status:    models.NodeStatusSkipped,
		Error:     reason,
		Timestamp: r.now(),
	}
	r.execution.ExecutedNodes[node.ID] = result
	r.states[node.ID] = stateSkipped

	r.logger.InfoContext(ctx, "node skipped", "node_id", node.ID, "reason", reason)
	r.observer.NodeSkipped(r.execution.ID, node, result)
}
