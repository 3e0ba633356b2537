package models

import "time"

// ExecutionStatus is the lifecycle state of a funnel execution. Completed is
// absorbing: completed executions are skipped on every future poll.
type ExecutionStatus string

const (
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusCompleted ExecutionStatus = "completed"
)

// HistoryEntry records one committed node transition. History is informational
// only and never read back by the engine.
type HistoryEntry struct {
	NodeID string    `json:"nodeId"`
	Type   NodeType  `json:"type"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// FunnelExecution is one running instance of a funnel for one lead.
//
// While Status is waiting, CurrentNodeID is non-nil and NextRunAt marks the
// earliest time the scheduler should advance the execution. Context is captured
// once at trigger time and immutable for the execution's lifetime.
type FunnelExecution struct {
	ID            string            `json:"id"`
	FunnelID      string            `json:"funnelId"`
	LeadID        string            `json:"leadId"`
	CurrentNodeID *string           `json:"currentNodeId"`
	Status        ExecutionStatus   `json:"status"`
	NextRunAt     time.Time         `json:"nextRunAt"`
	History       []HistoryEntry    `json:"history"`
	Context       map[string]string `json:"context,omitempty"`
}

// Due reports whether the execution should be advanced at the given instant.
func (e *FunnelExecution) Due(now time.Time) bool {
	return e.Status != ExecutionStatusCompleted && !e.NextRunAt.After(now)
}
