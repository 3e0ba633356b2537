package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/ojmachado/leadflow/pkg/eventbus"
	"github.com/ojmachado/leadflow/pkg/events"
	"github.com/ojmachado/leadflow/pkg/funnel"
	"github.com/ojmachado/leadflow/pkg/leads"
	"github.com/ojmachado/leadflow/pkg/persistence"
	"github.com/ojmachado/leadflow/pkg/triggers/queue"
)

type SchedulerConfig struct {
	ID           string
	PollSchedule string
	TriggerQueue string
	RedisAddr    string
}

// Scheduler runs the periodic execution poll and turns lead lifecycle events
// and external queue messages into funnel triggers.
type Scheduler struct {
	config      SchedulerConfig
	engine      *funnel.Engine
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	logger      *slog.Logger

	cron   *cron.Cron
	intake *queue.Intake
}

func NewScheduler(
	config SchedulerConfig,
	engine *funnel.Engine,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		config:      config,
		engine:      engine,
		persistence: store,
		eventBus:    eventBus,
		logger:      logger.With("module", "scheduler"),
	}
}

// Start wires up the poll cron, the event subscriptions and the optional
// queue intake, then blocks until a shutdown signal or context cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	sCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := s.startPoll(sCtx)
	if err != nil {
		return err
	}

	err = s.subscribeLeadEvents(sCtx)
	if err != nil {
		return err
	}

	if s.config.TriggerQueue != "" {
		err = s.startIntake(sCtx)
		if err != nil {
			return err
		}
	}

	s.logger.Info("Scheduler started", "poll_schedule", s.config.PollSchedule)

	s.waitForShutdown(sCtx, cancel)

	return nil
}

func (s *Scheduler) startPoll(ctx context.Context) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.config.PollSchedule, func() {
		err := s.engine.ProcessExecutions(ctx)
		if err != nil {
			s.logger.Error("Execution poll failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", s.config.PollSchedule, err)
	}

	s.cron.Start()

	return nil
}

// subscribeLeadEvents re-enters the trigger entry point for lead lifecycle
// events published by the directory.
func (s *Scheduler) subscribeLeadEvents(ctx context.Context) error {
	err := s.eventBus.Handle(events.LeadSubscribedEvent, func(ctx context.Context, event any) error {
		subscribed, ok := event.(*events.LeadSubscribed)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", events.LeadSubscribedEvent)
		}

		return s.triggerForLead(ctx, leads.LeadSubscribedTrigger, subscribed.LeadID, subscribed.Context)
	})
	if err != nil {
		return err
	}

	err = s.eventBus.Handle(events.LeadTagAddedEvent, func(ctx context.Context, event any) error {
		tagged, ok := event.(*events.LeadTagAdded)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", events.LeadTagAddedEvent)
		}

		return s.triggerForLead(ctx, events.TagTriggerName(tagged.Tag), tagged.LeadID, nil)
	})
	if err != nil {
		return err
	}

	return s.eventBus.Subscribe(ctx)
}

func (s *Scheduler) triggerForLead(ctx context.Context, triggerName, leadID string, contextData map[string]string) error {
	lead, err := s.persistence.LeadByID(ctx, leadID)
	if err != nil {
		return err
	}

	return s.engine.TriggerFunnel(ctx, triggerName, lead, contextData)
}

func (s *Scheduler) startIntake(ctx context.Context) error {
	intake, err := queue.NewIntake(queue.Config{
		Addr:  s.config.RedisAddr,
		Queue: s.config.TriggerQueue,
	}, s.logger)
	if err != nil {
		return err
	}

	s.intake = intake

	return s.intake.Start(ctx, func(ctx context.Context, message queue.TriggerMessage) error {
		if message.LeadID != "" {
			return s.triggerForLead(ctx, message.Trigger, message.LeadID, message.Context)
		}

		return s.engine.TriggerGlobalFunnel(ctx, message.Trigger, message.Context)
	})
}

func (s *Scheduler) waitForShutdown(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		s.logger.Info("Received signal, shutting down", "signal", sig)
	case <-ctx.Done():
		s.logger.Info("Context cancelled, shutting down")
	}

	cancel()

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	if s.intake != nil {
		err := s.intake.Stop(context.WithoutCancel(ctx))
		if err != nil {
			s.logger.Error("Failed to stop queue intake", "error", err)
		}
	}
}
