// Package funnel implements the funnel execution engine: the node interpreter
// and the scheduler that drives executions through their funnel graphs.
package funnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/notify"
	"github.com/ojmachado/leadflow/pkg/persistence"
	"github.com/ojmachado/leadflow/pkg/template"
)

// ChannelEmail and ChannelWhatsApp identify the outbound channel of a sent
// message in outcomes and events.
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// sendWindowTolerance is how far the stored nextRunAt may drift from a
// WhatsApp send window before the execution is rescheduled instead of sent.
const sendWindowTolerance = time.Minute

// OutcomeKind classifies the result of interpreting one node.
type OutcomeKind int

const (
	// OutcomeAdvanced means the node's effect ran (or was skipped as a
	// pass-through) and the execution continues with NextNodeID in the same
	// pass.
	OutcomeAdvanced OutcomeKind = iota

	// OutcomeSuspended means the execution must stop for this pass. The
	// scheduler persists ResumeNodeID and ResumeAt before moving on.
	OutcomeSuspended
)

// StepOutcome is the explicit result of one node step. It makes the
// scheduler's persist-or-not decision a branch instead of an artifact of error
// propagation.
type StepOutcome struct {
	Kind         OutcomeKind
	NextNodeID   *string // advanced: node to continue with, nil = terminal
	ResumeNodeID *string // suspended: node to persist as current
	ResumeAt     time.Time

	// Message dispatch bookkeeping, for events and history.
	Sent      bool
	Channel   string
	Recipient string
	Detail    string
}

// Interpreter executes the side effect of exactly one node and computes the
// next step. It holds no workflow state; all I/O goes through the injected
// collaborators.
type Interpreter struct {
	templates persistence.TemplateRepository
	email     notify.EmailSender
	whatsapp  notify.WhatsAppSender
	logger    *slog.Logger
}

// NewInterpreter creates a node interpreter.
func NewInterpreter(
	templates persistence.TemplateRepository,
	email notify.EmailSender,
	whatsapp notify.WhatsAppSender,
	logger *slog.Logger,
) *Interpreter {
	return &Interpreter{
		templates: templates,
		email:     email,
		whatsapp:  whatsapp,
		logger:    logger.With("module", "interpreter"),
	}
}

// Step interprets one node for the given execution and lead at the given
// instant. A returned error means the node's side effect failed; the caller
// must not commit any state for this pass.
func (i *Interpreter) Step(
	ctx context.Context,
	node *models.FunnelNode,
	execution *models.FunnelExecution,
	lead *models.Lead,
	now time.Time,
) (StepOutcome, error) {
	switch data := node.Data.(type) {
	case models.EmailData:
		return i.stepEmail(ctx, node, data, execution, lead)
	case models.WhatsAppData:
		return i.stepWhatsApp(ctx, node, data, execution, lead, now)
	case models.DelayData:
		return stepDelay(node, data, now), nil
	case models.ConditionData:
		return stepCondition(node, data, lead), nil
	case nil:
		// Nodes built without a payload behave as pass-throughs.
		return StepOutcome{Kind: OutcomeAdvanced, NextNodeID: node.NextNodeID}, nil
	default:
		return StepOutcome{}, fmt.Errorf("unhandled node type %q on node %s", node.Type, node.ID)
	}
}

func (i *Interpreter) stepEmail(
	ctx context.Context,
	node *models.FunnelNode,
	data models.EmailData,
	execution *models.FunnelExecution,
	lead *models.Lead,
) (StepOutcome, error) {
	if data.Subject == "" || data.Content == "" {
		return StepOutcome{Kind: OutcomeAdvanced, NextNodeID: node.NextNodeID, Detail: "skipped: empty email"}, nil
	}

	subject := template.Substitute(data.Subject, execution.Context, lead)
	content := template.Substitute(data.Content, execution.Context, lead)

	err := i.email.Send(ctx, lead.Email, subject, content)
	if err != nil {
		return StepOutcome{}, fmt.Errorf("failed to send email for node %s: %w", node.ID, err)
	}

	return StepOutcome{
		Kind:       OutcomeAdvanced,
		NextNodeID: node.NextNodeID,
		Sent:       true,
		Channel:    ChannelEmail,
		Recipient:  lead.Email,
		Detail:     subject,
	}, nil
}

func (i *Interpreter) stepWhatsApp(
	ctx context.Context,
	node *models.FunnelNode,
	data models.WhatsAppData,
	execution *models.FunnelExecution,
	lead *models.Lead,
	now time.Time,
) (StepOutcome, error) {
	// The send window is enforced before anything else, mirroring the
	// scheduling contract: a window mismatch reschedules the execution even
	// when the node would end up skipping the send.
	if data.SendTime != "" {
		target, err := sendWindowTarget(data.SendTime, now)
		if err != nil {
			i.logger.Warn("Ignoring malformed send window",
				"node_id", node.ID, "send_time", data.SendTime, "error", err)
		} else if absDuration(execution.NextRunAt.Sub(target)) > sendWindowTolerance {
			nodeID := node.ID

			return StepOutcome{
				Kind:         OutcomeSuspended,
				ResumeNodeID: &nodeID,
				ResumeAt:     target,
				Detail:       "waiting for send window",
			}, nil
		}
	}

	// Missing phone or template reference is not an error; the node is a
	// pass-through.
	if lead.Phone == "" || data.TemplateID == "" {
		return StepOutcome{Kind: OutcomeAdvanced, NextNodeID: node.NextNodeID, Detail: "skipped: no phone or template"}, nil
	}

	messageTemplate, err := i.templates.TemplateByID(ctx, data.TemplateID)
	if err != nil {
		if errors.Is(err, persistence.ErrTemplateNotFound) {
			return StepOutcome{Kind: OutcomeAdvanced, NextNodeID: node.NextNodeID, Detail: "skipped: template missing"}, nil
		}

		return StepOutcome{}, fmt.Errorf("failed to load template %s for node %s: %w", data.TemplateID, node.ID, err)
	}

	fallback := template.Substitute(messageTemplate.Content, execution.Context, lead)

	err = i.whatsapp.SendHybrid(ctx, notify.HybridMessage{
		To:           lead.Phone,
		TemplateName: notify.ForceFallbackTemplate,
		Variables:    []string{},
		FallbackText: fallback,
	})
	if err != nil {
		return StepOutcome{}, fmt.Errorf("failed to send whatsapp message for node %s: %w", node.ID, err)
	}

	return StepOutcome{
		Kind:       OutcomeAdvanced,
		NextNodeID: node.NextNodeID,
		Sent:       true,
		Channel:    ChannelWhatsApp,
		Recipient:  lead.Phone,
		Detail:     messageTemplate.Title,
	}, nil
}

func stepDelay(node *models.FunnelNode, data models.DelayData, now time.Time) StepOutcome {
	hours := data.Hours
	if hours <= 0 {
		hours = models.DefaultDelayHours
	}

	return StepOutcome{
		Kind:         OutcomeSuspended,
		ResumeNodeID: node.NextNodeID,
		ResumeAt:     now.Add(time.Duration(hours) * time.Hour),
		Detail:       fmt.Sprintf("delay %dh", hours),
	}
}

func stepCondition(node *models.FunnelNode, data models.ConditionData, lead *models.Lead) StepOutcome {
	target := data.Target
	if target == "" {
		target = models.ConditionTargetTags
	}

	operator := data.Operator
	if operator == "" {
		operator = models.OperatorContains
	}

	// Only the tags target is defined; everything else evaluates to false.
	result := false
	if target == models.ConditionTargetTags {
		switch operator {
		case models.OperatorContains:
			result = lead.HasTag(data.Value)
		case models.OperatorNotContains:
			result = !lead.HasTag(data.Value)
		}
	}

	next := node.FalseNodeID
	if result {
		next = node.TrueNodeID
	}

	return StepOutcome{
		Kind:       OutcomeAdvanced,
		NextNodeID: next,
		Detail:     fmt.Sprintf("condition %s %s %q = %t", target, operator, data.Value, result),
	}
}

// sendWindowTarget resolves an "HH:MM" wall-clock window to the next concrete
// instant: today's occurrence, or tomorrow's when today's has already passed.
func sendWindowTarget(sendTime string, now time.Time) (time.Time, error) {
	parts := strings.SplitN(sendTime, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid send time %q", sendTime)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return time.Time{}, fmt.Errorf("invalid hour in send time %q", sendTime)
	}

	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return time.Time{}, fmt.Errorf("invalid minute in send time %q", sendTime)
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), hours, minutes, 0, 0, now.Location())
	if target.Before(now) {
		target = target.AddDate(0, 0, 1)
	}

	return target, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
