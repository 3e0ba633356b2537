package models

import "time"

// LeadStatus represents the subscription state of a lead.
type LeadStatus string

const (
	LeadStatusActive       LeadStatus = "active"
	LeadStatusUnsubscribed LeadStatus = "unsubscribed"
)

// Lead is a contact tracked by the lead directory. Email is the unique upsert
// key; tags are mutated by the directory and feed funnel conditions.
type Lead struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"         validate:"required,email"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	ExternalID    string     `json:"externalId,omitempty"`
	Source        string     `json:"source,omitempty"`
	Status        LeadStatus `json:"status"`
	PipelineStage string     `json:"pipelineStage,omitempty"`
	Tags          []string   `json:"tags"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// HasTag reports whether the lead carries the given tag.
func (l *Lead) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}

	return false
}
