package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoQuestAPI/internal/activity"
	"ecoQuestAPI/internal/badge"
	"ecoQuestAPI/internal/metrics"
	"ecoQuestAPI/internal/milestone"
	"ecoQuestAPI/internal/progression"
	"ecoQuestAPI/internal/user"
)

// ActionResult is what one qualifying action produced across the pipeline.
type ActionResult struct {
	Progress            *user.Progress         `json:"progress"`
	PointsAwarded       int                    `json:"points_awarded"`
	NewBadges           []string               `json:"new_badges"`
	CompletedMilestones []*milestone.Milestone `json:"completed_milestones"`
}

// ProgressionService is the coordinator invoked once per qualifying action.
// It fans out to the user aggregate, the milestone and challenge trackers,
// badge evaluation and the feed. There is no cross-aggregate transaction:
// each step's failure is isolated and logged, and the pipeline continues
// where safe.
type ProgressionService struct {
	users      UserStore
	milestones *MilestoneService
	challenges *ChallengeService
	feed       *ActivityService
	push       PushSender

	// now is swappable for tests.
	now func() time.Time
}

func NewProgressionService(db *pgxpool.Pool, milestones *MilestoneService, challenges *ChallengeService, feed *ActivityService, push PushSender) *ProgressionService {
	return &ProgressionService{
		users:      &pgUserStore{db: db},
		milestones: milestones,
		challenges: challenges,
		feed:       feed,
		push:       push,
		now:        time.Now,
	}
}

func NewProgressionServiceWithStore(users UserStore, milestones *MilestoneService, challenges *ChallengeService, feed *ActivityService, push PushSender) *ProgressionService {
	return &ProgressionService{
		users:      users,
		milestones: milestones,
		challenges: challenges,
		feed:       feed,
		push:       push,
		now:        time.Now,
	}
}

// RecordAction runs the fan-out for one completed qualifying action.
//
// Points and streak are finalized before badge evaluation because badges
// depend on the post-update totals; the points multiplier uses the streak as
// it stood before today's action. Milestone and challenge updates are
// independent of each other but both see the same co2Saved value.
func (s *ProgressionService) RecordAction(ctx context.Context, userID uuid.UUID, co2Saved float64, basePoints int) (*ActionResult, error) {
	now := s.now().UTC()
	today := progression.StartOfDay(now)

	// 1. Read current streak state; a missing user row is a hard error.
	prev, err := s.users.GetProgress(ctx, userID)
	if err != nil {
		metrics.ActionsProcessedTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, fmt.Errorf("failed to load progress for user %s: %w", userID, err)
	}

	streak := progression.UpdateStreak(prev.LastActiveDate, prev.CurrentStreak, prev.LongestStreak, today)
	awarded := progression.CalculatePoints(basePoints, prev.CurrentStreak)

	// 2. Persist totals and streak via atomic adds.
	updated, err := s.users.ApplyAction(ctx, userID, awarded, co2Saved, streak, today)
	if err != nil {
		metrics.ActionsProcessedTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, fmt.Errorf("failed to apply action for user %s: %w", userID, err)
	}
	metrics.PointsAwardedTotal.Add(float64(awarded))

	result := &ActionResult{Progress: updated, PointsAwarded: awarded}

	// 3. Recurring milestones. Tracker failures are logged inside and must
	// not block badge evaluation or feed emission.
	result.CompletedMilestones = s.milestones.ApplyAction(ctx, userID, updated.CommunityID, co2Saved, now)

	// 4. Community challenge, if the user belongs to one. A missing or
	// resolved challenge is a benign no-op.
	if updated.CommunityID != nil {
		if _, err := s.challenges.Contribute(ctx, *updated.CommunityID, userID, co2Saved, now); err != nil {
			log.Printf("RecordAction: challenge contribution for user %s: %v", userID, err)
		}
	}

	// 5. Badges on post-update stats.
	result.NewBadges = s.awardBadges(ctx, updated, now)

	// 6. Feed entry for the action itself, after the state it describes.
	if updated.CommunityID != nil {
		s.feed.Emit(ctx, *updated.CommunityID, &userID, activity.TypeMissionComplete, map[string]any{
			"co2_saved":      co2Saved,
			"points_awarded": awarded,
			"current_streak": updated.CurrentStreak,
		})
	}

	metrics.ActionsProcessedTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return result, nil
}

// awardBadges evaluates the catalog against post-update stats and records
// each qualifying badge behind the conditional insert. Losing that race to a
// concurrent completion by the same user counts as success and produces no
// duplicate feed entry.
func (s *ProgressionService) awardBadges(ctx context.Context, p *user.Progress, now time.Time) []string {
	earned, err := s.users.ListBadgeIDs(ctx, p.UserID)
	if err != nil {
		log.Printf("awardBadges: list for user %s: %v", p.UserID, err)
		return nil
	}

	stats := badge.Stats{
		MissionsCount: p.MissionsCount,
		TotalCo2Saved: p.TotalCo2Saved,
		CurrentStreak: p.CurrentStreak,
		HasCommunity:  p.CommunityID != nil,
	}

	var newBadges []string
	for _, id := range badge.Evaluate(earned, stats) {
		recorded, err := s.users.AwardBadge(ctx, p.UserID, id, now)
		if err != nil {
			log.Printf("awardBadges: award %s for user %s: %v", id, p.UserID, err)
			continue
		}
		if !recorded {
			continue
		}

		newBadges = append(newBadges, id)
		metrics.BadgesAwardedTotal.WithLabelValues(id).Inc()

		b, _ := badge.ByID(id)
		if p.CommunityID != nil {
			userID := p.UserID
			s.feed.Emit(ctx, *p.CommunityID, &userID, activity.TypeBadgeEarned, map[string]any{
				"badge_id": b.ID,
				"label":    b.Label,
			})
		}

		if s.push != nil {
			go func(userID uuid.UUID, label string) {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := s.push.Send(ctx, userID, "Badge earned!", label, nil); err != nil {
					metrics.SinkFailuresTotal.WithLabelValues(metrics.SinkPush).Inc()
					log.Printf("awardBadges: push for user %s: %v", userID, err)
				}
			}(p.UserID, b.Label)
		}
	}

	return newBadges
}
