package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/booking-manager/internal/testfixtures"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_RepeatsUntilCancelled(t *testing.T) {
	t.Parallel()

	var ticks, failures, disabled atomic.Int32
	runner := New(discardLogger(),
		Job{Name: "tick", Interval: 5 * time.Millisecond, Task: func(context.Context) (int, error) {
			return int(ticks.Add(1)), nil
		}},
		Job{Name: "broken", Interval: 5 * time.Millisecond, Task: func(context.Context) (int, error) {
			failures.Add(1)
			return 0, errors.New("store unavailable")
		}},
		Job{Name: "off", Interval: 0, Task: func(context.Context) (int, error) {
			disabled.Add(1)
			return 0, nil
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)

	require.Eventually(t, func() bool {
		return ticks.Load() >= 2 && failures.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	runner.Wait()

	stopped := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, ticks.Load())
	assert.Zero(t, disabled.Load())
}

func TestMaintenanceJobs(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewMemoryHarness(t)
	staff := testfixtures.NewUserFixture()
	manager := testfixtures.NewUserFixture(testfixtures.AsAdmin())
	h.SeedUser(t, staff)
	h.SeedUser(t, manager)
	h.Login(t, staff)

	h.SeedBooking(t, staff.Actor(), testfixtures.NewBookingInput(h.Clock.DaysFromNow(1, h.Location)))

	schedule := Schedule{
		ReminderInterval:      15 * time.Minute,
		ReminderThreshold:     2 * time.Hour,
		ExpiryCheckInterval:   time.Hour,
		PurgeInterval:         24 * time.Hour,
		NotificationRetention: 30 * 24 * time.Hour,
		SessionPruneInterval:  time.Hour,
	}
	jobs := MaintenanceJobs(schedule, h.Maintenance, h.Notifications, h.Auth)

	byName := map[string]Job{}
	for _, job := range jobs {
		byName[job.Name] = job
	}
	require.Len(t, byName, 4)
	assert.Equal(t, 15*time.Minute, byName["remind_pending"].Interval)
	assert.Equal(t, time.Hour, byName["prune_sessions"].Interval)

	ctx := context.Background()

	n, err := byName["remind_pending"].Task(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.Clock.Advance(3 * time.Hour)
	n, err = byName["remind_pending"].Task(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = byName["flag_expired"].Task(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.Clock.Advance(3 * 24 * time.Hour)
	n, err = byName["flag_expired"].Task(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	h.Dispatcher.Wait()

	n, err = byName["prune_sessions"].Task(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = byName["purge_read_notifications"].Task(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMaintenanceJobs_NilDependencies(t *testing.T) {
	t.Parallel()

	assert.Empty(t, MaintenanceJobs(Schedule{}, nil, nil, nil))
}
