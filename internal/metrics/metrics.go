package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	SweepMilestones = "milestones"
	SweepChallenges = "challenges"

	SinkFeed = "feed"
	SinkPush = "push"
)

var (
	ActionsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_actions_processed_total",
			Help: "Qualifying user actions run through the coordinator",
		},
		[]string{"result"},
	)

	PointsAwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "progression_points_awarded_total",
			Help: "Points awarded including streak multipliers and bonuses",
		},
	)

	BadgesAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_badges_awarded_total",
			Help: "Badges recorded by the conditional award write",
		},
		[]string{"badge_id"},
	)

	MilestonesCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_milestones_completed_total",
			Help: "Recurring milestones that reached their target in-window",
		},
		[]string{"type"},
	)

	ChallengesCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "progression_challenges_completed_total",
			Help: "Community challenges that reached their CO2 goal",
		},
	)

	SweepResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_sweep_resolved_total",
			Help: "Rows transitioned to failed by the expiry sweeps",
		},
		[]string{"sweep"},
	)

	SinkFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_sink_failures_total",
			Help: "Best-effort sink writes (feed, push) that failed",
		},
		[]string{"sink"},
	)
)
