// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartExpiryScheduler prompts a post-expiry evaluation of every due mission on
// each tick, so no mission stays ACTIVE after its end date waiting for traffic.
func (s *MissionService) StartExpiryScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			closed, err := s.ExpireDueMissions(ctx)
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}
			if closed > 0 {
				log.Printf("✅ Closed %d expired mission(s)", closed)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule mission expiry: %w", err)
	}

	sched.Start()
	log.Printf("[Scheduler] Mission expiry scan every %s", interval)
	return sched, nil
}
