// Package leads implements the lead directory: subscriptions, pipeline stage
// management and tagging. Lifecycle changes are announced on the event bus;
// the directory never calls into the funnel engine directly.
package leads

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ojmachado/leadflow/pkg/eventbus"
	"github.com/ojmachado/leadflow/pkg/events"
	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

// LeadSubscribedTrigger fires for funnels listening on new subscriptions.
const LeadSubscribedTrigger = "lead_subscribed"

type Service struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(store persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		persistence: store,
		eventBus:    eventBus,
		logger:      logger.With("module", "leads"),
		now:         time.Now,
	}
}

// Subscribe registers a new lead. The email is normalized and hashed into the
// external id used by ad-platform integrations.
func (s *Service) Subscribe(ctx context.Context, email, source, name, phone string) (*models.Lead, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	lead := &models.Lead{
		ID:            uuid.New().String(),
		Email:         normalized,
		Name:          name,
		Phone:         phone,
		ExternalID:    hashEmail(normalized),
		Source:        source,
		Status:        models.LeadStatusActive,
		PipelineStage: "new",
		Tags:          []string{},
		CreatedAt:     s.now(),
	}

	err := s.persistence.SaveLead(ctx, lead)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lead subscribed", "lead_id", lead.ID, "source", source)

	s.publish(ctx, lead.ID, events.LeadSubscribed{
		BaseEvent: s.baseEvent(events.LeadSubscribedEvent),
		LeadID:    lead.ID,
		Email:     lead.Email,
		Source:    source,
	})

	return lead, nil
}

// AddTag appends a tag to a lead. Adding a tag the lead already carries is a
// no-op and publishes nothing, so tag-triggered funnels fire at most once per
// tag.
func (s *Service) AddTag(ctx context.Context, leadID, tag string) error {
	lead, err := s.persistence.LeadByID(ctx, leadID)
	if err != nil {
		return err
	}

	if lead.HasTag(tag) {
		return nil
	}

	lead.Tags = append(lead.Tags, tag)

	err = s.persistence.SaveLead(ctx, lead)
	if err != nil {
		return err
	}

	s.logger.Info("Tag added to lead", "lead_id", leadID, "tag", tag)

	s.publish(ctx, leadID, events.LeadTagAdded{
		BaseEvent: s.baseEvent(events.LeadTagAddedEvent),
		LeadID:    leadID,
		Tag:       tag,
	})

	return nil
}

// UpdateStage moves a lead to another pipeline stage.
func (s *Service) UpdateStage(ctx context.Context, leadID, stage string) error {
	lead, err := s.persistence.LeadByID(ctx, leadID)
	if err != nil {
		return err
	}

	lead.PipelineStage = stage

	return s.persistence.SaveLead(ctx, lead)
}

// LeadUpdate holds the optional contact fields UpdateLead may change. Nil
// fields are left untouched.
type LeadUpdate struct {
	Name  *string
	Phone *string
}

// UpdateLead changes a lead's contact details. Email is immutable because the
// external id is derived from it.
func (s *Service) UpdateLead(ctx context.Context, leadID string, update LeadUpdate) (*models.Lead, error) {
	lead, err := s.persistence.LeadByID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		lead.Name = *update.Name
	}

	if update.Phone != nil {
		lead.Phone = *update.Phone
	}

	err = s.persistence.SaveLead(ctx, lead)
	if err != nil {
		return nil, err
	}

	return lead, nil
}

// Unsubscribe marks a lead as unsubscribed. Global triggers skip unsubscribed
// leads.
func (s *Service) Unsubscribe(ctx context.Context, leadID string) error {
	lead, err := s.persistence.LeadByID(ctx, leadID)
	if err != nil {
		return err
	}

	lead.Status = models.LeadStatusUnsubscribed

	return s.persistence.SaveLead(ctx, lead)
}

func (s *Service) baseEvent(eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: s.now(),
	}
}

func (s *Service) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	err := s.eventBus.Publish(ctx, key, event)
	if err != nil {
		s.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(email))

	return hex.EncodeToString(sum[:])
}
