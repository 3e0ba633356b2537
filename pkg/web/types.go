// Package web provides the REST API for funnel and lead management.
package web

import "github.com/ojmachado/leadflow/pkg/models"

// SaveFunnelRequest is the request body for creating or replacing a funnel.
// The funnel graph is saved as a whole; there is no per-node endpoint.
type SaveFunnelRequest struct {
	ID          string               `json:"id,omitempty"`
	Name        string               `json:"name"        validate:"required,min=3"`
	Trigger     string               `json:"trigger"     validate:"required"`
	IsActive    bool                 `json:"isActive"`
	Nodes       []*models.FunnelNode `json:"nodes"`
	StartNodeID *string              `json:"startNodeId"`
}

// SubscribeRequest is the request body for registering a new lead.
type SubscribeRequest struct {
	Email  string `json:"email"  validate:"required,email"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Source string `json:"source"`
}

// AddTagRequest is the request body for tagging a lead.
type AddTagRequest struct {
	Tag string `json:"tag" validate:"required,min=1"`
}

// UpdateLeadRequest is the request body for changing a lead's contact
// details. Absent fields are left unchanged.
type UpdateLeadRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// UpdateStageRequest is the request body for moving a lead through the
// pipeline.
type UpdateStageRequest struct {
	Stage string `json:"stage" validate:"required,min=1"`
}

// TriggerRequest is the request body for firing a funnel trigger. LeadID is
// optional: without it the trigger fires globally for every active lead.
type TriggerRequest struct {
	Trigger string            `json:"trigger" validate:"required"`
	LeadID  string            `json:"leadId,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}
