package funnel

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ojmachado/leadflow/pkg/eventbus"
	"github.com/ojmachado/leadflow/pkg/events"
	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/otelhelper"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

// Engine is the execution scheduler. It owns no timer: triggers are invoked by
// external events and ProcessExecutions by whatever periodic caller the
// deployment wires up. A single logical engine instance is assumed active at a
// time; no leasing or locking is implemented.
type Engine struct {
	persistence persistence.Persistence
	interpreter *Interpreter
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time

	// When true, the trigger entry point skips funnels that already have a
	// waiting execution for the same lead. Re-entrant tag triggers can
	// otherwise fan out without bound.
	dedupActiveExecutions bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the engine's time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTracer attaches a tracer to the engine's poll passes.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithActiveExecutionDedup limits each (funnel, lead) pair to one waiting
// execution.
func WithActiveExecutionDedup() Option {
	return func(e *Engine) {
		e.dedupActiveExecutions = true
	}
}

// NewEngine creates the execution scheduler.
func NewEngine(
	store persistence.Persistence,
	interpreter *Interpreter,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	engine := &Engine{
		persistence: store,
		interpreter: interpreter,
		eventBus:    eventBus,
		logger:      logger.With("module", "funnel_engine"),
		tracer:      noop.NewTracerProvider().Tracer("leadflow"),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// TriggerFunnel creates one execution per active funnel matching the trigger
// name, then runs a poll pass immediately so executions without an initial
// delay are processed right away.
func (e *Engine) TriggerFunnel(ctx context.Context, triggerName string, lead *models.Lead, contextData map[string]string) error {
	logger := e.logger.With("trigger", triggerName, "lead_id", lead.ID)

	funnels, err := e.persistence.Funnels(ctx)
	if err != nil {
		return err
	}

	created := 0

	for _, funnel := range funnels {
		if !funnel.IsActive || funnel.Trigger != triggerName {
			continue
		}

		if len(funnel.Nodes) == 0 || funnel.StartNodeID == nil {
			continue
		}

		if e.dedupActiveExecutions {
			active, err := e.hasActiveExecution(ctx, funnel.ID, lead.ID)
			if err != nil {
				return err
			}

			if active {
				logger.Debug("Skipping funnel with active execution", "funnel_id", funnel.ID)

				continue
			}
		}

		execution := &models.FunnelExecution{
			ID:            uuid.New().String(),
			FunnelID:      funnel.ID,
			LeadID:        lead.ID,
			CurrentNodeID: funnel.StartNodeID,
			Status:        models.ExecutionStatusWaiting,
			NextRunAt:     e.now(),
			History:       []models.HistoryEntry{},
			Context:       contextData,
		}

		err := e.persistence.CreateExecution(ctx, execution)
		if err != nil {
			return err
		}

		created++

		logger.Info("Created funnel execution",
			"funnel_id", funnel.ID,
			"execution_id", execution.ID)

		e.publish(ctx, execution.ID, events.FunnelTriggered{
			BaseEvent:   e.baseEvent(events.FunnelTriggeredEvent),
			TriggerName: triggerName,
			FunnelID:    funnel.ID,
			LeadID:      lead.ID,
			ExecutionID: execution.ID,
		})
	}

	if created == 0 {
		return nil
	}

	return e.ProcessExecutions(ctx)
}

// TriggerGlobalFunnel fires the trigger once per active lead. Used for events
// not tied to a single lead, such as a new post being published.
func (e *Engine) TriggerGlobalFunnel(ctx context.Context, triggerName string, contextData map[string]string) error {
	leads, err := e.persistence.Leads(ctx)
	if err != nil {
		return err
	}

	for _, lead := range leads {
		if lead.Status != models.LeadStatusActive {
			continue
		}

		err := e.TriggerFunnel(ctx, triggerName, lead, contextData)
		if err != nil {
			return err
		}
	}

	return nil
}

// ProcessExecutions advances every due execution until it suspends or
// completes. Executions are drained sequentially and independently; one
// execution's failure never fails the pass.
func (e *Engine) ProcessExecutions(ctx context.Context) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "funnel.process_executions")
	defer span.End()

	executions, err := e.persistence.Executions(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	funnels, err := e.persistence.Funnels(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	leads, err := e.persistence.Leads(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	funnelsByID := make(map[string]*models.Funnel, len(funnels))
	for _, funnel := range funnels {
		funnelsByID[funnel.ID] = funnel
	}

	leadsByID := make(map[string]*models.Lead, len(leads))
	for _, lead := range leads {
		leadsByID[lead.ID] = lead
	}

	now := e.now()
	span.SetAttributes(attribute.Int("leadflow.executions.total", len(executions)))

	for _, execution := range executions {
		if !execution.Due(now) {
			continue
		}

		e.processExecution(ctx, execution, funnelsByID, leadsByID, now)
	}

	return nil
}

// processExecution drains one execution: node after node until a suspension,
// a terminal edge, or a failure. Nothing is committed for a failed step, so
// the execution is retried from the same node on a later pass.
func (e *Engine) processExecution(
	ctx context.Context,
	execution *models.FunnelExecution,
	funnelsByID map[string]*models.Funnel,
	leadsByID map[string]*models.Lead,
	now time.Time,
) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "funnel.process_execution",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.FunnelIDKey, execution.FunnelID),
		attribute.String(otelhelper.LeadIDKey, execution.LeadID))
	defer span.End()

	logger := e.logger.With("execution_id", execution.ID, "funnel_id", execution.FunnelID)

	funnel, funnelOK := funnelsByID[execution.FunnelID]
	lead, leadOK := leadsByID[execution.LeadID]

	if !funnelOK || !leadOK {
		logger.Warn("Funnel or lead no longer exists, force-completing execution",
			"lead_id", execution.LeadID)
		e.forceComplete(ctx, execution, execution.History)

		return
	}

	cursor := execution.CurrentNodeID
	history := execution.History

	for cursor != nil {
		node, ok := funnel.NodeByID(*cursor)
		if !ok {
			// An execution pointing at a node that no longer exists would
			// otherwise stay waiting forever.
			logger.Warn("Execution references unreachable node, force-completing",
				"node_id", *cursor)
			e.forceComplete(ctx, execution, history)

			return
		}

		outcome, err := e.interpreter.Step(ctx, node, execution, lead, now)
		if err != nil {
			logger.Error("Node step failed, aborting pass for execution",
				"node_id", node.ID, "error", err)
			otelhelper.SetError(span, err,
				attribute.String(otelhelper.NodeIDKey, node.ID),
				attribute.String(otelhelper.NodeTypeKey, string(node.Type)))

			e.publish(ctx, execution.ID, events.ExecutionFailed{
				BaseEvent:   e.baseEvent(events.ExecutionFailedEvent),
				ExecutionID: execution.ID,
				FunnelID:    execution.FunnelID,
				NodeID:      node.ID,
				Error:       err.Error(),
			})

			return
		}

		if outcome.Sent {
			e.publish(ctx, execution.ID, events.MessageSent{
				BaseEvent:   e.baseEvent(events.MessageSentEvent),
				ExecutionID: execution.ID,
				NodeID:      node.ID,
				Channel:     outcome.Channel,
				Recipient:   outcome.Recipient,
			})
		}

		if outcome.Kind == OutcomeSuspended {
			// Send-window corrections are rescheduling, not progress; only
			// real transitions land in the history.
			if outcome.ResumeNodeID == nil || *outcome.ResumeNodeID != node.ID {
				history = append(history, models.HistoryEntry{
					NodeID: node.ID,
					Type:   node.Type,
					Detail: outcome.Detail,
					At:     now,
				})
			}

			patch := persistence.ExecutionPatch{
				SetCurrentNode: true,
				CurrentNodeID:  outcome.ResumeNodeID,
				NextRunAt:      &outcome.ResumeAt,
				History:        history,
			}

			err := e.persistence.UpdateExecution(ctx, execution.ID, patch)
			if err != nil {
				logger.Error("Failed to persist suspension", "error", err)
			}

			return
		}

		history = append(history, models.HistoryEntry{
			NodeID: node.ID,
			Type:   node.Type,
			Detail: outcome.Detail,
			At:     now,
		})

		cursor = outcome.NextNodeID
	}

	e.complete(ctx, execution, history, false)
}

// forceComplete terminates an execution that can no longer make progress.
func (e *Engine) forceComplete(ctx context.Context, execution *models.FunnelExecution, history []models.HistoryEntry) {
	e.complete(ctx, execution, history, true)
}

func (e *Engine) complete(ctx context.Context, execution *models.FunnelExecution, history []models.HistoryEntry, forced bool) {
	status := models.ExecutionStatusCompleted
	patch := persistence.ExecutionPatch{
		Status:         &status,
		SetCurrentNode: true,
		CurrentNodeID:  nil,
		History:        history,
	}

	err := e.persistence.UpdateExecution(ctx, execution.ID, patch)
	if err != nil {
		e.logger.Error("Failed to mark execution completed",
			"execution_id", execution.ID, "error", err)

		return
	}

	e.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:   e.baseEvent(events.ExecutionCompletedEvent),
		ExecutionID: execution.ID,
		FunnelID:    execution.FunnelID,
		LeadID:      execution.LeadID,
		Forced:      forced,
	})
}

func (e *Engine) hasActiveExecution(ctx context.Context, funnelID, leadID string) (bool, error) {
	executions, err := e.persistence.Executions(ctx)
	if err != nil {
		return false, err
	}

	for _, execution := range executions {
		if execution.FunnelID == funnelID && execution.LeadID == leadID &&
			execution.Status == models.ExecutionStatusWaiting {
			return true, nil
		}
	}

	return false, nil
}

func (e *Engine) baseEvent(eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: e.now(),
	}
}

// publish is best-effort: a bus failure is logged, never propagated into the
// engine's control flow.
func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	err := e.eventBus.Publish(ctx, key, event)
	if err != nil {
		e.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
