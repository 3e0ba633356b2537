// Package models defines the core domain models for funnel automation.
package models

import (
	"encoding/json"
	"fmt"
)

// Funnel is a marketing automation workflow template. It is created and edited
// by an administrator and read-only to the execution engine.
type Funnel struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"        validate:"required,min=3"`
	Trigger     string        `json:"trigger"     validate:"required"`
	IsActive    bool          `json:"isActive"`
	Nodes       []*FunnelNode `json:"nodes"`
	StartNodeID *string       `json:"startNodeId"`
}

// NodeByID returns the node with the given id, or false when the funnel has no
// such node.
func (f *Funnel) NodeByID(id string) (*FunnelNode, bool) {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// Validate checks the structural invariants of the funnel graph: the start node
// and every non-null next/true/false reference must resolve to a node in the
// funnel.
func (f *Funnel) Validate() error {
	if len(f.Nodes) == 0 {
		return nil
	}

	if f.StartNodeID != nil {
		if _, ok := f.NodeByID(*f.StartNodeID); !ok {
			return fmt.Errorf("start node %s not found in funnel %s", *f.StartNodeID, f.ID)
		}
	}

	for _, node := range f.Nodes {
		for _, ref := range []*string{node.NextNodeID, node.TrueNodeID, node.FalseNodeID} {
			if ref == nil {
				continue
			}

			if _, ok := f.NodeByID(*ref); !ok {
				return fmt.Errorf("node %s references unknown node %s", node.ID, *ref)
			}
		}
	}

	return nil
}

// NodeType identifies the kind of a funnel node.
type NodeType string

const (
	NodeTypeEmail     NodeType = "EMAIL"
	NodeTypeWhatsApp  NodeType = "WHATSAPP"
	NodeTypeDelay     NodeType = "DELAY"
	NodeTypeCondition NodeType = "CONDITION"
)

// Position carries editor canvas coordinates. The engine ignores it.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NodeData is the closed set of per-kind node payloads. Exactly one concrete
// type exists per NodeType; interpreters dispatch with a type switch.
type NodeData interface {
	nodeData()
}

// EmailData is the payload of an EMAIL node. Subject and Content are
// placeholder templates.
type EmailData struct {
	Subject     string `json:"subject"`
	Content     string `json:"content"`
	CustomTitle string `json:"customTitle,omitempty"`
}

func (EmailData) nodeData() {}

// WhatsAppData is the payload of a WHATSAPP node. TemplateID references an
// internal message template; SendTime is an optional "HH:MM" wall-clock send
// window.
type WhatsAppData struct {
	TemplateID    string `json:"waTemplateId"`
	TemplateTitle string `json:"waTemplateTitle,omitempty"`
	SendTime      string `json:"sendTime,omitempty"`
	CustomTitle   string `json:"customTitle,omitempty"`
}

func (WhatsAppData) nodeData() {}

// DelayData is the payload of a DELAY node. A zero Hours falls back to 24.
type DelayData struct {
	Hours       int    `json:"hours"`
	CustomTitle string `json:"customTitle,omitempty"`
}

func (DelayData) nodeData() {}

// DefaultDelayHours is used when a DELAY node carries no positive hour count.
const DefaultDelayHours = 24

// ConditionOperator is the comparison applied by a CONDITION node.
type ConditionOperator string

const (
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
)

// ConditionTargetTags is the only condition target currently supported.
const ConditionTargetTags = "tags"

// ConditionData is the payload of a CONDITION node.
type ConditionData struct {
	Target      string            `json:"conditionTarget"`
	Operator    ConditionOperator `json:"conditionOperator"`
	Value       string            `json:"conditionValue"`
	CustomTitle string            `json:"customTitle,omitempty"`
}

func (ConditionData) nodeData() {}

// FunnelNode is one workflow step. Data holds the kind-specific payload;
// NextNodeID applies to EMAIL/WHATSAPP/DELAY nodes, TrueNodeID/FalseNodeID to
// CONDITION nodes. A nil reference is a terminal edge.
type FunnelNode struct {
	ID          string   `json:"id"`
	Type        NodeType `json:"type"`
	Position    Position `json:"position"`
	Data        NodeData `json:"data"`
	NextNodeID  *string  `json:"nextNodeId,omitempty"`
	TrueNodeID  *string  `json:"trueNodeId,omitempty"`
	FalseNodeID *string  `json:"falseNodeId,omitempty"`
}

type funnelNodeJSON struct {
	ID          string          `json:"id"`
	Type        NodeType        `json:"type"`
	Position    Position        `json:"position"`
	Data        json.RawMessage `json:"data"`
	NextNodeID  *string         `json:"nextNodeId,omitempty"`
	TrueNodeID  *string         `json:"trueNodeId,omitempty"`
	FalseNodeID *string         `json:"falseNodeId,omitempty"`
}

// UnmarshalJSON decodes the kind-specific payload based on the node type.
func (n *FunnelNode) UnmarshalJSON(raw []byte) error {
	var aux funnelNodeJSON

	err := json.Unmarshal(raw, &aux)
	if err != nil {
		return err
	}

	n.ID = aux.ID
	n.Type = aux.Type
	n.Position = aux.Position
	n.NextNodeID = aux.NextNodeID
	n.TrueNodeID = aux.TrueNodeID
	n.FalseNodeID = aux.FalseNodeID

	data := aux.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	switch aux.Type {
	case NodeTypeEmail:
		var payload EmailData
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("failed to decode email node %s: %w", aux.ID, err)
		}

		n.Data = payload
	case NodeTypeWhatsApp:
		var payload WhatsAppData
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("failed to decode whatsapp node %s: %w", aux.ID, err)
		}

		n.Data = payload
	case NodeTypeDelay:
		var payload DelayData
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("failed to decode delay node %s: %w", aux.ID, err)
		}

		n.Data = payload
	case NodeTypeCondition:
		var payload ConditionData
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("failed to decode condition node %s: %w", aux.ID, err)
		}

		n.Data = payload
	default:
		return fmt.Errorf("unknown node type %q on node %s", aux.Type, aux.ID)
	}

	return nil
}

// MarshalJSON encodes the node with its kind-specific payload inlined under
// "data".
func (n FunnelNode) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode data of node %s: %w", n.ID, err)
	}

	return json.Marshal(funnelNodeJSON{
		ID:          n.ID,
		Type:        n.Type,
		Position:    n.Position,
		Data:        data,
		NextNodeID:  n.NextNodeID,
		TrueNodeID:  n.TrueNodeID,
		FalseNodeID: n.FalseNodeID,
	})
}
