package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojmachado/leadflow/pkg/models"
)

func TestFunnelNode_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		expected models.NodeData
	}{
		{
			name: "email node",
			raw: `{
				"id": "n1",
				"type": "EMAIL",
				"position": {"x": 100, "y": 150},
				"data": {"subject": "Oi {{name}}", "content": "<p>conteúdo</p>", "customTitle": "Boas-vindas"}
			}`,
			expected: models.EmailData{
				Subject:     "Oi {{name}}",
				Content:     "<p>conteúdo</p>",
				CustomTitle: "Boas-vindas",
			},
		},
		{
			name: "whatsapp node",
			raw: `{
				"id": "n2",
				"type": "WHATSAPP",
				"position": {"x": 0, "y": 0},
				"data": {"waTemplateId": "tpl-1", "waTemplateTitle": "WA: Alerta", "sendTime": "09:30"}
			}`,
			expected: models.WhatsAppData{
				TemplateID:    "tpl-1",
				TemplateTitle: "WA: Alerta",
				SendTime:      "09:30",
			},
		},
		{
			name: "delay node",
			raw: `{
				"id": "n3",
				"type": "DELAY",
				"position": {"x": 0, "y": 0},
				"data": {"hours": 48}
			}`,
			expected: models.DelayData{Hours: 48},
		},
		{
			name: "condition node",
			raw: `{
				"id": "n4",
				"type": "CONDITION",
				"position": {"x": 0, "y": 0},
				"data": {"conditionTarget": "tags", "conditionOperator": "contains", "conditionValue": "vip"}
			}`,
			expected: models.ConditionData{
				Target:   models.ConditionTargetTags,
				Operator: models.OperatorContains,
				Value:    "vip",
			},
		},
		{
			name: "missing data defaults to zero payload",
			raw: `{
				"id": "n5",
				"type": "DELAY",
				"position": {"x": 0, "y": 0}
			}`,
			expected: models.DelayData{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var node models.FunnelNode
			err := json.Unmarshal([]byte(tt.raw), &node)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, node.Data)
		})
	}
}

func TestFunnelNode_UnmarshalJSON_UnknownType(t *testing.T) {
	t.Parallel()

	var node models.FunnelNode
	err := json.Unmarshal([]byte(`{"id": "n1", "type": "SMS", "data": {}}`), &node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node type")
}

func TestFunnelNode_MarshalJSON_RoundTrip(t *testing.T) {
	t.Parallel()

	next := "n2"
	node := models.FunnelNode{
		ID:       "n1",
		Type:     models.NodeTypeWhatsApp,
		Position: models.Position{X: 100, Y: 150},
		Data: models.WhatsAppData{
			TemplateID: "tpl-1",
			SendTime:   "10:00",
		},
		NextNodeID: &next,
	}

	raw, err := json.Marshal(node)
	require.NoError(t, err)

	var decoded models.FunnelNode
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, node, decoded)
}

func TestFunnel_Validate(t *testing.T) {
	t.Parallel()

	nodeID := "n1"
	missing := "ghost"

	tests := []struct {
		name    string
		funnel  models.Funnel
		wantErr bool
	}{
		{
			name:   "empty funnel is valid",
			funnel: models.Funnel{ID: "f1"},
		},
		{
			name: "valid single node",
			funnel: models.Funnel{
				ID:          "f1",
				StartNodeID: &nodeID,
				Nodes: []*models.FunnelNode{
					{ID: nodeID, Type: models.NodeTypeDelay, Data: models.DelayData{Hours: 1}},
				},
			},
		},
		{
			name: "unknown start node",
			funnel: models.Funnel{
				ID:          "f1",
				StartNodeID: &missing,
				Nodes: []*models.FunnelNode{
					{ID: nodeID, Type: models.NodeTypeDelay, Data: models.DelayData{Hours: 1}},
				},
			},
			wantErr: true,
		},
		{
			name: "dangling next reference",
			funnel: models.Funnel{
				ID:          "f1",
				StartNodeID: &nodeID,
				Nodes: []*models.FunnelNode{
					{ID: nodeID, Type: models.NodeTypeDelay, Data: models.DelayData{Hours: 1}, NextNodeID: &missing},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.funnel.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLead_HasTag(t *testing.T) {
	t.Parallel()

	lead := &models.Lead{Tags: []string{"vip", "newsletter"}}

	assert.True(t, lead.HasTag("vip"))
	assert.False(t, lead.HasTag("cold"))
	assert.False(t, (&models.Lead{}).HasTag("vip"))
}

func TestFunnelExecution_Due(t *testing.T) {
	t.Parallel()

	now := time.Now()

	waiting := &models.FunnelExecution{Status: models.ExecutionStatusWaiting, NextRunAt: now.Add(-time.Minute)}
	future := &models.FunnelExecution{Status: models.ExecutionStatusWaiting, NextRunAt: now.Add(time.Hour)}
	completed := &models.FunnelExecution{Status: models.ExecutionStatusCompleted, NextRunAt: now.Add(-time.Minute)}

	assert.True(t, waiting.Due(now))
	assert.False(t, future.Due(now))
	assert.False(t, completed.Due(now))
}
