package jobs

import (
	"time"

	river "github.com/riverqueue/river"
)

// PeriodicJobs returns the periodic job schedule the composition root
// registers on the River client, grounded on the teacher's single daily
// notification-cleanup periodic job pattern (internal/jobs/notification_cleanup.go).
func PeriodicJobs(ingestTickInterval, cveSyncInterval time.Duration) []*river.PeriodicJob {
	if ingestTickInterval <= 0 {
		ingestTickInterval = time.Minute
	}
	if cveSyncInterval <= 0 {
		cveSyncInterval = time.Hour
	}

	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(ingestTickInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return IngestDueSourcesArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(cveSyncInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return CVESyncArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return EventsPurgeArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		),
	}
}
