// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartEngagementScheduler runs the recurring maintenance jobs:
// a nightly aggregate recompute from the ledger (repairs any projection
// that lagged a failed write) and a per-minute sweep that deactivates
// ritual activities past their end time.
func StartEngagementScheduler(ledger *LedgerService, activities *ActivityService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Nightly at 03:00 UTC: rebuild every projection from hope_ledger.
	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() {
			n, err := ledger.RecomputeAll()
			if err != nil {
				log.Printf("[Scheduler] Aggregate recompute failed: %v", err)
				return
			}
			log.Printf("✅ Nightly recompute repaired aggregates for %d receiver(s)", n)
		}),
	)

	// Every minute: deactivate expired ritual activities.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(activities.DeactivateExpired),
	)
}
