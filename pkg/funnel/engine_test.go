package funnel_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ojmachado/leadflow/pkg/eventbus"
	"github.com/ojmachado/leadflow/pkg/events"
	"github.com/ojmachado/leadflow/pkg/funnel"
	"github.com/ojmachado/leadflow/pkg/mocks"
	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/persistence/file"
)

type engineFixture struct {
	engine   *funnel.Engine
	store    *file.Persistence
	email    *mocks.MockEmailSender
	whatsapp *mocks.MockWhatsAppSender
	eventBus *mocks.MockEventBus
	now      time.Time
}

func newEngineFixture(t *testing.T, opts ...funnel.Option) *engineFixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	email := &mocks.MockEmailSender{}
	whatsapp := &mocks.MockWhatsAppSender{}
	eventBus := &mocks.MockEventBus{}

	interpreter := funnel.NewInterpreter(store, email, whatsapp, slog.Default())

	fixture := &engineFixture{
		store:    store,
		email:    email,
		whatsapp: whatsapp,
		eventBus: eventBus,
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	opts = append([]funnel.Option{funnel.WithClock(func() time.Time { return fixture.now })}, opts...)
	fixture.engine = funnel.NewEngine(store, interpreter, eventBus, slog.Default(), opts...)

	return fixture
}

func (f *engineFixture) allowPublish() {
	f.eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func emailFunnel(trigger string, active bool) *models.Funnel {
	start := "n1"

	return &models.Funnel{
		ID:          "funnel-1",
		Name:        "Boas-vindas",
		Trigger:     trigger,
		IsActive:    active,
		StartNodeID: &start,
		Nodes: []*models.FunnelNode{
			{
				ID:   "n1",
				Type: models.NodeTypeEmail,
				Data: models.EmailData{Subject: "Oi {{name}}", Content: "Bem-vindo"},
			},
		},
	}
}

func TestEngine_TriggerFunnel_CreatesAndRunsExecution(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	f.allowPublish()

	ctx := context.Background()
	lead := &models.Lead{ID: "lead-1", Name: "Ana", Email: "ana@example.com", Status: models.LeadStatusActive}
	require.NoError(t, f.store.SaveLead(ctx, lead))
	require.NoError(t, f.store.SaveFunnel(ctx, emailFunnel("lead_subscribed", true)))

	f.email.On("Send", mock.Anything, "ana@example.com", "Oi Ana", "Bem-vindo").Return(nil)

	require.NoError(t, f.engine.TriggerFunnel(ctx, "lead_subscribed", lead, map[string]string{"source": "form"}))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	execution := executions[0]
	assert.Equal(t, "funnel-1", execution.FunnelID)
	assert.Equal(t, "lead-1", execution.LeadID)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Nil(t, execution.CurrentNodeID)
	assert.Equal(t, map[string]string{"source": "form"}, execution.Context)
	require.Len(t, execution.History, 1)
	assert.Equal(t, "n1", execution.History[0].NodeID)

	f.email.AssertExpectations(t)
	f.eventBus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.MatchedBy(func(event eventbus.Event) bool {
		return event.GetType() == events.FunnelTriggeredEvent
	}))
}

func TestEngine_TriggerFunnel_SkipsInactiveAndMismatched(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)

	ctx := context.Background()
	require.NoError(t, f.store.SaveFunnel(ctx, emailFunnel("lead_subscribed", false)))

	other := emailFunnel("other_trigger", true)
	other.ID = "funnel-2"
	require.NoError(t, f.store.SaveFunnel(ctx, other))

	lead := &models.Lead{ID: "lead-1", Email: "a@b.c"}
	require.NoError(t, f.engine.TriggerFunnel(ctx, "lead_subscribed", lead, nil))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestEngine_TriggerFunnel_SkipsEmptyFunnel(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)

	ctx := context.Background()
	empty := &models.Funnel{ID: "funnel-1", Name: "Vazio", Trigger: "lead_subscribed", IsActive: true}
	require.NoError(t, f.store.SaveFunnel(ctx, empty))

	lead := &models.Lead{ID: "lead-1", Email: "a@b.c"}
	require.NoError(t, f.engine.TriggerFunnel(ctx, "lead_subscribed", lead, nil))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestEngine_TriggerFunnel_DedupSkipsActiveExecution(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, funnel.WithActiveExecutionDedup())
	f.allowPublish()

	ctx := context.Background()
	lead := &models.Lead{ID: "lead-1", Email: "a@b.c"}
	require.NoError(t, f.store.SaveLead(ctx, lead))

	start := "n1"
	delayed := &models.Funnel{
		ID:          "funnel-1",
		Name:        "Atraso",
		Trigger:     "tag_added:vip",
		IsActive:    true,
		StartNodeID: &start,
		Nodes: []*models.FunnelNode{
			{ID: "n1", Type: models.NodeTypeDelay, Data: models.DelayData{Hours: 2}},
		},
	}
	require.NoError(t, f.store.SaveFunnel(ctx, delayed))

	require.NoError(t, f.engine.TriggerFunnel(ctx, "tag_added:vip", lead, nil))
	require.NoError(t, f.engine.TriggerFunnel(ctx, "tag_added:vip", lead, nil))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestEngine_TriggerGlobalFunnel_FansOutToActiveLeads(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	f.allowPublish()

	ctx := context.Background()
	require.NoError(t, f.store.SaveLead(ctx, &models.Lead{ID: "lead-1", Name: "Ana", Email: "ana@example.com", Status: models.LeadStatusActive}))
	require.NoError(t, f.store.SaveLead(ctx, &models.Lead{ID: "lead-2", Name: "Bia", Email: "bia@example.com", Status: models.LeadStatusActive}))
	require.NoError(t, f.store.SaveLead(ctx, &models.Lead{ID: "lead-3", Email: "fora@example.com", Status: models.LeadStatusUnsubscribed}))

	require.NoError(t, f.store.SaveFunnel(ctx, emailFunnel("new_post_published", true)))

	f.email.On("Send", mock.Anything, "ana@example.com", "Oi Ana", "Bem-vindo").Return(nil)
	f.email.On("Send", mock.Anything, "bia@example.com", "Oi Bia", "Bem-vindo").Return(nil)

	require.NoError(t, f.engine.TriggerGlobalFunnel(ctx, "new_post_published", nil))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)
	assert.Len(t, executions, 2)
	f.email.AssertExpectations(t)
}

func TestEngine_ProcessExecutions_DelaySuspends(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	f.allowPublish()

	ctx := context.Background()
	lead := &models.Lead{ID: "lead-1", Email: "a@b.c"}
	require.NoError(t, f.store.SaveLead(ctx, lead))

	start := "n1"
	withDelay := &models.Funnel{
		ID:          "funnel-1",
		Name:        "Com atraso",
		Trigger:     "t",
		IsActive:    true,
		StartNodeID: &start,
		Nodes: []*models.FunnelNode{
			{ID: "n1", Type: models.NodeTypeDelay, Data: models.DelayData{Hours: 48}, NextNodeID: strPtr("n2")},
			{ID: "n2", Type: models.NodeTypeEmail, Data: models.EmailData{Subject: "s", Content: "c"}},
		},
	}
	require.NoError(t, f.store.SaveFunnel(ctx, withDelay))

	require.NoError(t, f.engine.TriggerFunnel(ctx, "t", lead, nil))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	execution := executions[0]
	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)
	require.NotNil(t, execution.CurrentNodeID)
	assert.Equal(t, "n2", *execution.CurrentNodeID)
	assert.Equal(t, f.now.Add(48*time.Hour), execution.NextRunAt.UTC())
	require.Len(t, execution.History, 1)
	assert.Equal(t, "n1", execution.History[0].NodeID)

	// The email after the delay must not have been sent yet.
	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	// A poll after the delay elapses sends the email and completes.
	f.now = f.now.Add(49 * time.Hour)
	f.email.On("Send", mock.Anything, "a@b.c", "s", "c").Return(nil)

	require.NoError(t, f.engine.ProcessExecutions(ctx))

	executions, err = f.store.Executions(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, executions[0].Status)
	f.email.AssertExpectations(t)
}

func TestEngine_ProcessExecutions_SkipsNotDue(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)

	ctx := context.Background()
	require.NoError(t, f.store.SaveLead(ctx, &models.Lead{ID: "lead-1", Email: "a@b.c"}))
	require.NoError(t, f.store.SaveFunnel(ctx, emailFunnel("t", true)))

	node := "n1"
	require.NoError(t, f.store.CreateExecution(ctx, &models.FunnelExecution{
		ID:            "exec-1",
		FunnelID:      "funnel-1",
		LeadID:        "lead-1",
		CurrentNodeID: &node,
		Status:        models.ExecutionStatusWaiting,
		NextRunAt:     f.now.Add(time.Hour),
	}))

	require.NoError(t, f.engine.ProcessExecutions(ctx))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, executions[0].Status)
	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_ProcessExecutions_ForceCompletesOrphanedExecution(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	f.allowPublish()

	ctx := context.Background()

	node := "n1"
	require.NoError(t, f.store.CreateExecution(ctx, &models.FunnelExecution{
		ID:            "exec-1",
		FunnelID:      "ghost-funnel",
		LeadID:        "ghost-lead",
		CurrentNodeID: &node,
		Status:        models.ExecutionStatusWaiting,
		NextRunAt:     f.now.Add(-time.Minute),
	}))

	require.NoError(t, f.engine.ProcessExecutions(ctx))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, executions[0].Status)
	assert.Nil(t, executions[0].CurrentNodeID)

	f.eventBus.AssertCalled(t, "Publish", mock.Anything, "exec-1", mock.MatchedBy(func(event eventbus.Event) bool {
		completed, ok := event.(events.ExecutionCompleted)

		return ok && completed.Forced
	}))
}

func TestEngine_ProcessExecutions_ForceCompletesUnreachableNode(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	f.allowPublish()

	ctx := context.Background()
	require.NoError(t, f.store.SaveLead(ctx, &models.Lead{ID: "lead-1", Email: "a@b.c"}))
	require.NoError(t, f.store.SaveFunnel(ctx, emailFunnel("t", true)))

	ghost := "removed-node"
	require.NoError(t, f.store.CreateExecution(ctx, &models.FunnelExecution{
		ID:            "exec-1",
		FunnelID:      "funnel-1",
		LeadID:        "lead-1",
		CurrentNodeID: &ghost,
		Status:        models.ExecutionStatusWaiting,
		NextRunAt:     f.now.Add(-time.Minute),
	}))

	require.NoError(t, f.engine.ProcessExecutions(ctx))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, executions[0].Status)
}

func TestEngine_ProcessExecutions_FailedSendLeavesExecutionInPlace(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	f.allowPublish()

	ctx := context.Background()
	lead := &models.Lead{ID: "lead-1", Name: "Ana", Email: "ana@example.com"}
	require.NoError(t, f.store.SaveLead(ctx, lead))
	require.NoError(t, f.store.SaveFunnel(ctx, emailFunnel("t", true)))

	node := "n1"
	require.NoError(t, f.store.CreateExecution(ctx, &models.FunnelExecution{
		ID:            "exec-1",
		FunnelID:      "funnel-1",
		LeadID:        "lead-1",
		CurrentNodeID: &node,
		Status:        models.ExecutionStatusWaiting,
		NextRunAt:     f.now.Add(-time.Minute),
	}))

	f.email.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	require.NoError(t, f.engine.ProcessExecutions(ctx))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)

	execution := executions[0]
	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)
	require.NotNil(t, execution.CurrentNodeID)
	assert.Equal(t, "n1", *execution.CurrentNodeID)
	assert.Empty(t, execution.History)

	f.eventBus.AssertCalled(t, "Publish", mock.Anything, "exec-1", mock.MatchedBy(func(event eventbus.Event) bool {
		return event.GetType() == events.ExecutionFailedEvent
	}))
}

func TestEngine_ProcessExecutions_ConditionBranching(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	f.allowPublish()

	ctx := context.Background()
	require.NoError(t, f.store.SaveLead(ctx, &models.Lead{ID: "lead-1", Name: "Ana", Email: "ana@example.com", Tags: []string{"vip"}}))

	start := "cond"
	branching := &models.Funnel{
		ID:          "funnel-1",
		Name:        "Ramificação",
		Trigger:     "t",
		IsActive:    true,
		StartNodeID: &start,
		Nodes: []*models.FunnelNode{
			{
				ID:          "cond",
				Type:        models.NodeTypeCondition,
				Data:        models.ConditionData{Target: "tags", Operator: models.OperatorContains, Value: "vip"},
				TrueNodeID:  strPtr("vip-mail"),
				FalseNodeID: strPtr("regular-mail"),
			},
			{ID: "vip-mail", Type: models.NodeTypeEmail, Data: models.EmailData{Subject: "VIP", Content: "c"}},
			{ID: "regular-mail", Type: models.NodeTypeEmail, Data: models.EmailData{Subject: "Regular", Content: "c"}},
		},
	}
	require.NoError(t, f.store.SaveFunnel(ctx, branching))

	f.email.On("Send", mock.Anything, "ana@example.com", "VIP", "c").Return(nil)

	lead, err := f.store.LeadByID(ctx, "lead-1")
	require.NoError(t, err)
	require.NoError(t, f.engine.TriggerFunnel(ctx, "t", lead, nil))

	executions, err := f.store.Executions(ctx)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusCompleted, executions[0].Status)

	f.email.AssertExpectations(t)
	f.email.AssertNotCalled(t, "Send", mock.Anything, "ana@example.com", "Regular", "c")
}

func TestEngine_ProcessExecutions_CompletedIsAbsorbing(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)

	ctx := context.Background()
	require.NoError(t, f.store.SaveLead(ctx, &models.Lead{ID: "lead-1", Email: "a@b.c"}))
	require.NoError(t, f.store.SaveFunnel(ctx, emailFunnel("t", true)))

	require.NoError(t, f.store.CreateExecution(ctx, &models.FunnelExecution{
		ID:        "exec-1",
		FunnelID:  "funnel-1",
		LeadID:    "lead-1",
		Status:    models.ExecutionStatusCompleted,
		NextRunAt: f.now.Add(-time.Hour),
	}))

	require.NoError(t, f.engine.ProcessExecutions(ctx))

	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.eventBus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
