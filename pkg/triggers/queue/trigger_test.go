package queue_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojmachado/leadflow/pkg/triggers/queue"
)

func TestNewIntake(t *testing.T) {
	t.Parallel()

	intake, err := queue.NewIntake(queue.Config{Queue: "leadflow:triggers"}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "leadflow:triggers", intake.Queue)
}

func TestNewIntake_RequiresQueueName(t *testing.T) {
	t.Parallel()

	_, err := queue.NewIntake(queue.Config{}, slog.Default())
	assert.Error(t, err)
}
