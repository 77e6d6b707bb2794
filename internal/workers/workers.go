package workers

import (
	"context"
	"log"
	"time"

	"ecoQuestAPI/services"
)

// Runner drives the periodic expiry sweeps: milestones whose period window
// has closed and challenges past their end date. Both sweeps are idempotent
// conditional updates, so overlapping runs or restarts are harmless.
type Runner struct {
	milestones *services.MilestoneService
	challenges *services.ChallengeService
}

func NewRunner(milestones *services.MilestoneService, challenges *services.ChallengeService) *Runner {
	return &Runner{
		milestones: milestones,
		challenges: challenges,
	}
}

// Start launches both sweep loops. They stop when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx, "milestone-sweep", 24*time.Hour, func(ctx context.Context, now time.Time) error {
		_, err := r.milestones.SweepExpired(ctx, now)
		return err
	})

	go r.loop(ctx, "challenge-sweep", time.Hour, func(ctx context.Context, now time.Time) error {
		_, err := r.challenges.SweepExpired(ctx, now)
		return err
	})
}

func (r *Runner) loop(ctx context.Context, name string, interval time.Duration, sweep func(context.Context, time.Time) error) {
	log.Printf("worker %s: starting, interval %s", name, interval)

	// Run once at startup to catch anything that expired while we were down.
	r.runOnce(ctx, name, sweep)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker %s: stopping", name)
			return
		case <-ticker.C:
			r.runOnce(ctx, name, sweep)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, name string, sweep func(context.Context, time.Time) error) {
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if err := sweep(sweepCtx, time.Now().UTC()); err != nil {
		log.Printf("worker %s: %v", name, err)
	}
}
