// Package queue consumes trigger messages from a Redis list. External systems
// (the CMS publishing pipeline, landing pages) push JSON messages and the
// scheduler turns them into funnel triggers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// TriggerMessage is the wire format pushed onto the intake list. LeadID is
// optional: a message without one fires the trigger globally for every active
// lead.
type TriggerMessage struct {
	Trigger string            `json:"trigger"`
	LeadID  string            `json:"leadId,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

// Callback handles one decoded trigger message.
type Callback func(ctx context.Context, message TriggerMessage) error

type Intake struct {
	Queue string

	client   redis.UniversalClient
	callback Callback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup

	addr     string
	password string
	db       int
}

// Config holds the Redis connection settings for the intake.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

func NewIntake(config Config, logger *slog.Logger) (*Intake, error) {
	if config.Queue == "" {
		return nil, errors.New("queue intake list name is required")
	}

	addr := config.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	return &Intake{
		Queue:    config.Queue,
		addr:     addr,
		password: config.Password,
		db:       config.DB,
		stopCh:   make(chan struct{}),
		logger: logger.With(
			"module", "queue_intake",
			"queue", config.Queue,
		),
	}, nil
}

func (i *Intake) Start(ctx context.Context, callback Callback) error {
	i.logger.InfoContext(ctx, "Starting queue intake")
	i.callback = callback

	err := i.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	i.wg.Add(1)

	go i.consume(ctx)

	return nil
}

func (i *Intake) connect(ctx context.Context) error {
	i.client = redis.NewClient(&redis.Options{
		Addr:     i.addr,
		Password: i.password,
		DB:       i.db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := i.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	i.logger.InfoContext(ctx, "Connected to Redis", "addr", i.addr, "db", i.db)

	return nil
}

func (i *Intake) consume(ctx context.Context) {
	defer i.wg.Done()

	for {
		select {
		case <-i.stopCh:
			i.logger.InfoContext(ctx, "Queue intake stopped")

			return
		case <-ctx.Done():
			i.logger.InfoContext(ctx, "Context cancelled, stopping queue intake")

			return
		default:
			err := i.processMessage(ctx)
			if err != nil {
				i.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (i *Intake) processMessage(ctx context.Context) error {
	result, err := i.client.BLPop(ctx, 1*time.Second, i.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	raw := result[1]

	var message TriggerMessage
	if err := json.Unmarshal([]byte(raw), &message); err != nil {
		i.logger.WarnContext(ctx, "Discarding malformed trigger message", "error", err)

		return nil
	}

	if message.Trigger == "" {
		i.logger.WarnContext(ctx, "Discarding trigger message without trigger name")

		return nil
	}

	i.logger.InfoContext(ctx, "Received trigger message", "trigger", message.Trigger)

	go func() {
		err := i.callback(ctx, message)
		if err != nil {
			i.logger.ErrorContext(ctx, "Error handling trigger message",
				"trigger", message.Trigger, "error", err)
		}
	}()

	return nil
}

func (i *Intake) Stop(ctx context.Context) error {
	i.logger.InfoContext(ctx, "Stopping queue intake")

	close(i.stopCh)
	i.wg.Wait()

	if i.client != nil {
		err := i.client.Close()
		if err != nil {
			i.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
