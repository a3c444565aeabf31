package lifecycle_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nebnav/internal/lifecycle"
	"nebnav/internal/models"
)

func TestSchedulerRunOnceSweepsBacklog(t *testing.T) {
	coord, store, clk := newTestCoordinator(t)
	sched := lifecycle.NewScheduler(coord, 0, slog.Default())
	ctx := context.Background()

	_, err := coord.CreateTask(ctx, models.Draft{Text: "forgotten", Category: models.CategoryQuietNebula},
		&lifecycle.ExpeditionRef{ID: "e", Title: "E"})
	require.NoError(t, err)

	clk.Advance(31 * 24 * time.Hour)

	moved, skipped, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, int64(1), moved)

	voided, err := store.ListTasksByState(ctx, models.StateVoid)
	require.NoError(t, err)
	assert.Len(t, voided, 1)

	// Nothing left to move; a second run is a clean no-op.
	moved, skipped, err = sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Zero(t, moved)
}

func TestSchedulerStartRunsStartupSweep(t *testing.T) {
	coord, store, clk := newTestCoordinator(t)
	sched := lifecycle.NewScheduler(coord, 0, slog.Default())
	ctx := context.Background()

	_, err := coord.CreateTask(ctx, models.Draft{Text: "dusty", Category: models.CategorySupernova},
		&lifecycle.ExpeditionRef{ID: "e", Title: "E"})
	require.NoError(t, err)

	clk.Advance(40 * 24 * time.Hour)

	// Interval zero: Start sweeps once and returns.
	sched.Start(ctx)

	voided, err := store.ListTasksByState(ctx, models.StateVoid)
	require.NoError(t, err)
	assert.Len(t, voided, 1)
}

func TestSchedulerStartStopsOnCancel(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	sched := lifecycle.NewScheduler(coord, 10*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
