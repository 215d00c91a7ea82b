package worker

import (
	"context"
	"time"
)

type Maintenance interface {
	RemindPending(ctx context.Context, threshold time.Duration) (int, error)
	FlagExpired(ctx context.Context) (int, error)
}

type InboxPurger interface {
	PurgeRead(ctx context.Context, retention time.Duration) (int, error)
}

type SessionPruner interface {
	PruneSessions(ctx context.Context) (int, error)
}

// Schedule holds the job intervals and thresholds taken from configuration.
type Schedule struct {
	ReminderInterval      time.Duration
	ReminderThreshold     time.Duration
	ExpiryCheckInterval   time.Duration
	PurgeInterval         time.Duration
	NotificationRetention time.Duration
	SessionPruneInterval  time.Duration
}

// MaintenanceJobs builds the standard job set. A nil dependency disables
// the jobs that need it.
func MaintenanceJobs(schedule Schedule, maintenance Maintenance, inbox InboxPurger, sessions SessionPruner) []Job {
	var jobs []Job
	if maintenance != nil {
		jobs = append(jobs,
			Job{
				Name:     "remind_pending",
				Interval: schedule.ReminderInterval,
				Task: func(ctx context.Context) (int, error) {
					return maintenance.RemindPending(ctx, schedule.ReminderThreshold)
				},
			},
			Job{
				Name:     "flag_expired",
				Interval: schedule.ExpiryCheckInterval,
				Task:     maintenance.FlagExpired,
			},
		)
	}
	if inbox != nil {
		jobs = append(jobs, Job{
			Name:     "purge_read_notifications",
			Interval: schedule.PurgeInterval,
			Task: func(ctx context.Context) (int, error) {
				return inbox.PurgeRead(ctx, schedule.NotificationRetention)
			},
		})
	}
	if sessions != nil {
		jobs = append(jobs, Job{
			Name:     "prune_sessions",
			Interval: schedule.SessionPruneInterval,
			Task:     sessions.PruneSessions,
		})
	}
	return jobs
}
