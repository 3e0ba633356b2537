package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/ojmachado/leadflow/pkg/cmd"
	"github.com/ojmachado/leadflow/pkg/funnel"
	"github.com/ojmachado/leadflow/pkg/log"
	notifylog "github.com/ojmachado/leadflow/pkg/notify/log"
)

func main() {
	command := &cli.Command{
		Name:                  "leadflow-scheduler",
		Usage:                 "Start the leadflow execution scheduler",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler-id",
				Aliases: []string{"id"},
				Usage:   "Custom scheduler ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "poll-schedule",
				Usage:   "Cron expression for the execution poll",
				Value:   "* * * * *",
				Sources: cli.EnvVars("POLL_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "trigger-queue",
				Usage:   "Redis list consumed for external trigger messages (disabled when empty)",
				Value:   "",
				Sources: cli.EnvVars("TRIGGER_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the trigger queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			schedulerID := command.String("scheduler-id")
			if schedulerID == "" {
				schedulerID = fmt.Sprintf("scheduler-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("leadflow-scheduler").With("scheduler_id", schedulerID)

			logger.Info("Initializing leadflow scheduler")

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			sender := notifylog.NewSender(logger)
			interpreter := funnel.NewInterpreter(store, sender, sender, logger)
			engine := funnel.NewEngine(store, interpreter, eventBus, logger,
				funnel.WithActiveExecutionDedup())

			scheduler := NewScheduler(SchedulerConfig{
				ID:           schedulerID,
				PollSchedule: command.String("poll-schedule"),
				TriggerQueue: command.String("trigger-queue"),
				RedisAddr:    command.String("redis-addr"),
			}, engine, store, eventBus, logger)

			return scheduler.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
