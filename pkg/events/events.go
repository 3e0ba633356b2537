// Package events defines event types for funnel and lead lifecycle
// notifications.
package events

import (
	"time"
)

type EventType string

// Topic is the event stream shared by every leadflow process.
const Topic = "leadflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Funnel lifecycle events.
	FunnelTriggeredEvent    EventType = "funnel.triggered"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	MessageSentEvent        EventType = "message.sent"

	// Lead directory events. The scheduler listens to these to re-enter the
	// trigger entry point without the lead directory calling the engine.
	LeadSubscribedEvent EventType = "lead.subscribed"
	LeadTagAddedEvent   EventType = "lead.tag_added"
)

// TagTriggerPrefix prefixes the synthetic trigger name fired when a tag is
// added to a lead.
const TagTriggerPrefix = "tag_added:"

// TagTriggerName builds the synthetic trigger name for a tag addition.
func TagTriggerName(tag string) string {
	return TagTriggerPrefix + tag
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// FunnelTriggered is published for every execution created by the trigger
// entry point.
type FunnelTriggered struct {
	BaseEvent

	TriggerName string `json:"trigger_name"`
	FunnelID    string `json:"funnel_id"`
	LeadID      string `json:"lead_id"`
	ExecutionID string `json:"execution_id"`
}

func (e FunnelTriggered) GetType() EventType {
	return FunnelTriggeredEvent
}

// ExecutionCompleted is published when an execution reaches its terminal node.
type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FunnelID    string `json:"funnel_id"`
	LeadID      string `json:"lead_id"`
	Forced      bool   `json:"forced,omitempty"` // true when force-completed (missing funnel/lead or unreachable node)
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionFailed is published when a node side effect fails and the
// execution's pass is aborted. The execution stays at its current node and is
// retried on a later poll.
type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FunnelID    string `json:"funnel_id"`
	NodeID      string `json:"node_id"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// MessageSent is published after an email or WhatsApp message is dispatched.
type MessageSent struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Channel     string `json:"channel"` // "email" or "whatsapp"
	Recipient   string `json:"recipient"`
}

func (e MessageSent) GetType() EventType {
	return MessageSentEvent
}

// LeadSubscribed is published by the lead directory on a new subscription.
type LeadSubscribed struct {
	BaseEvent

	LeadID  string            `json:"lead_id"`
	Email   string            `json:"email"`
	Source  string            `json:"source,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

func (e LeadSubscribed) GetType() EventType {
	return LeadSubscribedEvent
}

// LeadTagAdded is published by the lead directory when a tag is appended to a
// lead. Tag-triggered funnels fan out from this event.
type LeadTagAdded struct {
	BaseEvent

	LeadID string `json:"lead_id"`
	Tag    string `json:"tag"`
}

func (e LeadTagAdded) GetType() EventType {
	return LeadTagAddedEvent
}
