package funnel_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ojmachado/leadflow/pkg/funnel"
	"github.com/ojmachado/leadflow/pkg/mocks"
	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/notify"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

func newTestInterpreter(t *testing.T) (*funnel.Interpreter, *mocks.MockPersistence, *mocks.MockEmailSender, *mocks.MockWhatsAppSender) {
	t.Helper()

	store := &mocks.MockPersistence{}
	email := &mocks.MockEmailSender{}
	whatsapp := &mocks.MockWhatsAppSender{}
	interpreter := funnel.NewInterpreter(store, email, whatsapp, slog.Default())

	return interpreter, store, email, whatsapp
}

func strPtr(s string) *string {
	return &s
}

func TestInterpreter_Step_Email(t *testing.T) {
	t.Parallel()

	interpreter, _, email, _ := newTestInterpreter(t)

	lead := &models.Lead{Name: "Ana", Email: "ana@example.com"}
	execution := &models.FunnelExecution{Context: map[string]string{"post_title": "Go"}}
	node := &models.FunnelNode{
		ID:   "n1",
		Type: models.NodeTypeEmail,
		Data: models.EmailData{
			Subject: "Novo post: {{post_title}}",
			Content: "Olá {{name}}",
		},
		NextNodeID: strPtr("n2"),
	}

	email.On("Send", mock.Anything, "ana@example.com", "Novo post: Go", "Olá Ana").Return(nil)

	outcome, err := interpreter.Step(context.Background(), node, execution, lead, time.Now())
	require.NoError(t, err)

	assert.Equal(t, funnel.OutcomeAdvanced, outcome.Kind)
	assert.Equal(t, "n2", *outcome.NextNodeID)
	assert.True(t, outcome.Sent)
	assert.Equal(t, funnel.ChannelEmail, outcome.Channel)
	assert.Equal(t, "ana@example.com", outcome.Recipient)
	email.AssertExpectations(t)
}

func TestInterpreter_Step_Email_EmptyContentSkips(t *testing.T) {
	t.Parallel()

	interpreter, _, email, _ := newTestInterpreter(t)

	node := &models.FunnelNode{
		ID:         "n1",
		Type:       models.NodeTypeEmail,
		Data:       models.EmailData{Subject: "", Content: "algo"},
		NextNodeID: strPtr("n2"),
	}

	outcome, err := interpreter.Step(context.Background(), node, &models.FunnelExecution{}, &models.Lead{Email: "a@b.c"}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, funnel.OutcomeAdvanced, outcome.Kind)
	assert.False(t, outcome.Sent)
	email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInterpreter_Step_WhatsApp(t *testing.T) {
	t.Parallel()

	interpreter, store, _, whatsapp := newTestInterpreter(t)

	lead := &models.Lead{Name: "Ana", Email: "ana@example.com", Phone: "+5511999999999"}
	node := &models.FunnelNode{
		ID:         "n1",
		Type:       models.NodeTypeWhatsApp,
		Data:       models.WhatsAppData{TemplateID: "tpl-1"},
		NextNodeID: strPtr("n2"),
	}

	store.On("TemplateByID", mock.Anything, "tpl-1").Return(&models.MessageTemplate{
		ID:      "tpl-1",
		Title:   "Alerta",
		Content: "Oi {{name}}",
	}, nil)

	whatsapp.On("SendHybrid", mock.Anything, notify.HybridMessage{
		To:           "+5511999999999",
		TemplateName: notify.ForceFallbackTemplate,
		Variables:    []string{},
		FallbackText: "Oi Ana",
	}).Return(nil)

	outcome, err := interpreter.Step(context.Background(), node, &models.FunnelExecution{}, lead, time.Now())
	require.NoError(t, err)

	assert.True(t, outcome.Sent)
	assert.Equal(t, funnel.ChannelWhatsApp, outcome.Channel)
	assert.Equal(t, "+5511999999999", outcome.Recipient)
	whatsapp.AssertExpectations(t)
}

func TestInterpreter_Step_WhatsApp_NoPhoneSkips(t *testing.T) {
	t.Parallel()

	interpreter, _, _, whatsapp := newTestInterpreter(t)

	node := &models.FunnelNode{
		ID:         "n1",
		Type:       models.NodeTypeWhatsApp,
		Data:       models.WhatsAppData{TemplateID: "tpl-1"},
		NextNodeID: strPtr("n2"),
	}

	outcome, err := interpreter.Step(context.Background(), node, &models.FunnelExecution{}, &models.Lead{}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, funnel.OutcomeAdvanced, outcome.Kind)
	assert.False(t, outcome.Sent)
	whatsapp.AssertNotCalled(t, "SendHybrid", mock.Anything, mock.Anything)
}

func TestInterpreter_Step_WhatsApp_MissingTemplateSkips(t *testing.T) {
	t.Parallel()

	interpreter, store, _, whatsapp := newTestInterpreter(t)

	node := &models.FunnelNode{
		ID:         "n1",
		Type:       models.NodeTypeWhatsApp,
		Data:       models.WhatsAppData{TemplateID: "ghost"},
		NextNodeID: strPtr("n2"),
	}

	store.On("TemplateByID", mock.Anything, "ghost").Return(nil, persistence.ErrTemplateNotFound)

	outcome, err := interpreter.Step(context.Background(), node, &models.FunnelExecution{}, &models.Lead{Phone: "+55"}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, funnel.OutcomeAdvanced, outcome.Kind)
	assert.Equal(t, "n2", *outcome.NextNodeID)
	assert.False(t, outcome.Sent)
	whatsapp.AssertNotCalled(t, "SendHybrid", mock.Anything, mock.Anything)
}

func TestInterpreter_Step_WhatsApp_SendWindow(t *testing.T) {
	t.Parallel()

	interpreter, _, _, whatsapp := newTestInterpreter(t)

	// The poll runs at 08:00; the node's window is 10:00.
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	node := &models.FunnelNode{
		ID:         "n1",
		Type:       models.NodeTypeWhatsApp,
		Data:       models.WhatsAppData{TemplateID: "tpl-1", SendTime: "10:00"},
		NextNodeID: strPtr("n2"),
	}
	execution := &models.FunnelExecution{NextRunAt: now}

	outcome, err := interpreter.Step(context.Background(), node, execution, &models.Lead{Phone: "+55"}, now)
	require.NoError(t, err)

	assert.Equal(t, funnel.OutcomeSuspended, outcome.Kind)
	require.NotNil(t, outcome.ResumeNodeID)
	assert.Equal(t, "n1", *outcome.ResumeNodeID)
	assert.Equal(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), outcome.ResumeAt)
	whatsapp.AssertNotCalled(t, "SendHybrid", mock.Anything, mock.Anything)
}

func TestInterpreter_Step_WhatsApp_SendWindowRollsToTomorrow(t *testing.T) {
	t.Parallel()

	interpreter, _, _, _ := newTestInterpreter(t)

	// 10:00 already passed today, so the window resolves to tomorrow.
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	node := &models.FunnelNode{
		ID:   "n1",
		Type: models.NodeTypeWhatsApp,
		Data: models.WhatsAppData{TemplateID: "tpl-1", SendTime: "10:00"},
	}
	execution := &models.FunnelExecution{NextRunAt: now}

	outcome, err := interpreter.Step(context.Background(), node, execution, &models.Lead{Phone: "+55"}, now)
	require.NoError(t, err)

	assert.Equal(t, funnel.OutcomeSuspended, outcome.Kind)
	assert.Equal(t, time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC), outcome.ResumeAt)
}

func TestInterpreter_Step_WhatsApp_InsideWindowSends(t *testing.T) {
	t.Parallel()

	interpreter, store, _, whatsapp := newTestInterpreter(t)

	// The poll lands just before the window with NextRunAt matching it, so the
	// send proceeds.
	target := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	now := target.Add(-30 * time.Second)
	node := &models.FunnelNode{
		ID:   "n1",
		Type: models.NodeTypeWhatsApp,
		Data: models.WhatsAppData{TemplateID: "tpl-1", SendTime: "10:00"},
	}
	execution := &models.FunnelExecution{NextRunAt: target}

	store.On("TemplateByID", mock.Anything, "tpl-1").Return(&models.MessageTemplate{
		ID:      "tpl-1",
		Content: "mensagem",
	}, nil)
	whatsapp.On("SendHybrid", mock.Anything, mock.Anything).Return(nil)

	outcome, err := interpreter.Step(context.Background(), node, execution, &models.Lead{Phone: "+55"}, now)
	require.NoError(t, err)

	assert.Equal(t, funnel.OutcomeAdvanced, outcome.Kind)
	assert.True(t, outcome.Sent)
}

func TestInterpreter_Step_WhatsApp_MalformedWindowIgnored(t *testing.T) {
	t.Parallel()

	interpreter, _, _, _ := newTestInterpreter(t)

	node := &models.FunnelNode{
		ID:         "n1",
		Type:       models.NodeTypeWhatsApp,
		Data:       models.WhatsAppData{SendTime: "25:99"},
		NextNodeID: strPtr("n2"),
	}

	// Malformed window is skipped; with no template the node passes through.
	outcome, err := interpreter.Step(context.Background(), node, &models.FunnelExecution{}, &models.Lead{Phone: "+55"}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, funnel.OutcomeAdvanced, outcome.Kind)
}

func TestInterpreter_Step_Delay(t *testing.T) {
	t.Parallel()

	interpreter, _, _, _ := newTestInterpreter(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		hours    int
		expected time.Time
	}{
		{name: "explicit hours", hours: 48, expected: now.Add(48 * time.Hour)},
		{name: "zero hours falls back to default", hours: 0, expected: now.Add(models.DefaultDelayHours * time.Hour)},
		{name: "negative hours falls back to default", hours: -3, expected: now.Add(models.DefaultDelayHours * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node := &models.FunnelNode{
				ID:         "n1",
				Type:       models.NodeTypeDelay,
				Data:       models.DelayData{Hours: tt.hours},
				NextNodeID: strPtr("n2"),
			}

			outcome, err := interpreter.Step(context.Background(), node, &models.FunnelExecution{}, &models.Lead{}, now)
			require.NoError(t, err)

			assert.Equal(t, funnel.OutcomeSuspended, outcome.Kind)
			require.NotNil(t, outcome.ResumeNodeID)
			assert.Equal(t, "n2", *outcome.ResumeNodeID)
			assert.Equal(t, tt.expected, outcome.ResumeAt)
		})
	}
}

func TestInterpreter_Step_Condition(t *testing.T) {
	t.Parallel()

	interpreter, _, _, _ := newTestInterpreter(t)

	lead := &models.Lead{Tags: []string{"vip"}}

	tests := []struct {
		name     string
		data     models.ConditionData
		expected *string
	}{
		{
			name:     "contains matching tag goes true",
			data:     models.ConditionData{Target: "tags", Operator: models.OperatorContains, Value: "vip"},
			expected: strPtr("yes"),
		},
		{
			name:     "contains missing tag goes false",
			data:     models.ConditionData{Target: "tags", Operator: models.OperatorContains, Value: "cold"},
			expected: strPtr("no"),
		},
		{
			name:     "not_contains missing tag goes true",
			data:     models.ConditionData{Target: "tags", Operator: models.OperatorNotContains, Value: "cold"},
			expected: strPtr("yes"),
		},
		{
			name:     "empty target defaults to tags",
			data:     models.ConditionData{Value: "vip"},
			expected: strPtr("yes"),
		},
		{
			name:     "unknown target evaluates false",
			data:     models.ConditionData{Target: "score", Operator: models.OperatorContains, Value: "vip"},
			expected: strPtr("no"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node := &models.FunnelNode{
				ID:          "n1",
				Type:        models.NodeTypeCondition,
				Data:        tt.data,
				TrueNodeID:  strPtr("yes"),
				FalseNodeID: strPtr("no"),
			}

			outcome, err := interpreter.Step(context.Background(), node, &models.FunnelExecution{}, lead, time.Now())
			require.NoError(t, err)

			assert.Equal(t, funnel.OutcomeAdvanced, outcome.Kind)
			require.NotNil(t, outcome.NextNodeID)
			assert.Equal(t, *tt.expected, *outcome.NextNodeID)
		})
	}
}

func TestInterpreter_Step_NilDataPassesThrough(t *testing.T) {
	t.Parallel()

	interpreter, _, _, _ := newTestInterpreter(t)

	node := &models.FunnelNode{ID: "n1", Type: models.NodeTypeEmail, NextNodeID: strPtr("n2")}

	outcome, err := interpreter.Step(context.Background(), node, &models.FunnelExecution{}, &models.Lead{}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, funnel.OutcomeAdvanced, outcome.Kind)
	assert.Equal(t, "n2", *outcome.NextNodeID)
}
