package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoQuestAPI/internal/activity"
	"ecoQuestAPI/internal/metrics"
	"ecoQuestAPI/internal/milestone"
)

// MilestoneStore persists recurring milestone rows. Uniqueness on
// (user_id, type, period_key) is the invariant everything else leans on:
// InsertIfAbsent must be a conditional insert so concurrent creators converge
// on one row, and AddProgress/MarkCompleted must refuse rows outside the
// active state.
type MilestoneStore interface {
	// InsertIfAbsent creates the row unless (user_id, type, period_key)
	// already exists. Reports whether this call created it.
	InsertIfAbsent(ctx context.Context, m *milestone.Milestone) (bool, error)
	Get(ctx context.Context, userID uuid.UUID, typ milestone.Type, periodKey string) (*milestone.Milestone, error)
	// AddProgress atomically adds delta to current_value and recomputes the
	// clamped percent, but only while the row is active and its window is
	// still open; otherwise it returns ErrInvalidState.
	AddProgress(ctx context.Context, id uuid.UUID, delta float64, now time.Time) (*milestone.Milestone, error)
	// MarkCompleted transitions active -> completed. Reports whether this
	// call performed the transition.
	MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// SweepExpired transitions every active row with period_end < now to
	// failed and returns how many it touched.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	ListCurrent(ctx context.Context, userID uuid.UUID, now time.Time) ([]*milestone.Milestone, error)
}

// MilestoneService maintains per-user recurring goals: lazy resolve-or-create
// per period, atomic progress, completion rewards and the daily expiry sweep.
type MilestoneService struct {
	store   MilestoneStore
	users   UserStore
	feed    *ActivityService
	push    PushSender
	catalog []milestone.Definition
}

func NewMilestoneService(db *pgxpool.Pool, users UserStore, feed *ActivityService, push PushSender) *MilestoneService {
	return &MilestoneService{
		store:   &pgMilestoneStore{db: db},
		users:   users,
		feed:    feed,
		push:    push,
		catalog: milestone.Catalog,
	}
}

func NewMilestoneServiceWithStore(store MilestoneStore, users UserStore, feed *ActivityService, push PushSender) *MilestoneService {
	return &MilestoneService{
		store:   store,
		users:   users,
		feed:    feed,
		push:    push,
		catalog: milestone.Catalog,
	}
}

// ApplyAction advances every catalog goal for one qualifying action and
// returns the milestones this action completed. Each goal is handled
// independently: a failure on one is logged and does not block the rest.
func (s *MilestoneService) ApplyAction(ctx context.Context, userID uuid.UUID, communityID *uuid.UUID, co2Saved float64, now time.Time) []*milestone.Milestone {
	var completed []*milestone.Milestone

	for _, def := range s.catalog {
		m, err := s.advanceOne(ctx, userID, def, co2Saved, now)
		if err != nil {
			log.Printf("ApplyAction: milestone %s for user %s: %v", def.Type, userID, err)
			continue
		}
		if m != nil {
			s.reward(ctx, m, communityID, now)
			completed = append(completed, m)
		}
	}

	return completed
}

// advanceOne resolves the current-period row for def and applies the
// contribution. It returns the milestone only when this call completed it.
func (s *MilestoneService) advanceOne(ctx context.Context, userID uuid.UUID, def milestone.Definition, co2Saved float64, now time.Time) (*milestone.Milestone, error) {
	if _, err := s.resolveOrCreate(ctx, userID, def, now); err != nil {
		return nil, err
	}

	row, err := s.store.Get(ctx, userID, def.Type, milestone.PeriodKeyFor(def.Period, now))
	if err != nil {
		return nil, err
	}

	delta := milestone.ContributionFor(def.Unit, co2Saved)

	updated, err := s.store.AddProgress(ctx, row.ID, delta, now)
	if err != nil {
		// Terminal or out-of-window rows are not advanced; an action landing
		// after period_end resolves a fresh row on its next call.
		if errors.Is(err, ErrInvalidState) {
			return nil, nil
		}
		return nil, err
	}

	if updated.CurrentValue >= updated.TargetValue {
		won, err := s.store.MarkCompleted(ctx, updated.ID, now)
		if err != nil {
			return nil, err
		}
		if won {
			updated.Status = milestone.StatusCompleted
			completedAt := now.UTC()
			updated.CompletedAt = &completedAt
			return updated, nil
		}
		// Someone else observed the terminal condition first; that is still
		// success, just not ours to reward.
	}

	return nil, nil
}

// resolveOrCreate guarantees the (user, type, periodKey) row exists.
func (s *MilestoneService) resolveOrCreate(ctx context.Context, userID uuid.UUID, def milestone.Definition, now time.Time) (bool, error) {
	created, err := s.store.InsertIfAbsent(ctx, milestone.New(userID, def, now))
	if err != nil {
		return false, fmt.Errorf("failed to resolve milestone %s: %w", def.Type, err)
	}
	return created, nil
}

// reward pays out a completed milestone: bonus points, the optional badge
// through the conditional award path, a feed entry and a push. Reward-side
// failures never undo the completion.
func (s *MilestoneService) reward(ctx context.Context, m *milestone.Milestone, communityID *uuid.UUID, now time.Time) {
	metrics.MilestonesCompletedTotal.WithLabelValues(string(m.Type)).Inc()

	if m.BonusPoints > 0 {
		if err := s.users.AddBonusPoints(ctx, m.UserID, m.BonusPoints); err != nil {
			log.Printf("reward: bonus points for milestone %s user %s: %v", m.Type, m.UserID, err)
		} else {
			metrics.PointsAwardedTotal.Add(float64(m.BonusPoints))
		}
	}

	if m.BadgeID != nil {
		awarded, err := s.users.AwardBadge(ctx, m.UserID, *m.BadgeID, now)
		if err != nil {
			log.Printf("reward: badge %s for user %s: %v", *m.BadgeID, m.UserID, err)
		} else if awarded {
			metrics.BadgesAwardedTotal.WithLabelValues(*m.BadgeID).Inc()
		}
	}

	if communityID != nil {
		userID := m.UserID
		s.feed.Emit(ctx, *communityID, &userID, activity.TypeMilestone, map[string]any{
			"milestone_type": m.Type,
			"label":          m.Label,
			"period_key":     m.PeriodKey,
			"bonus_points":   m.BonusPoints,
		})
	}

	if s.push != nil {
		go func(userID uuid.UUID, label string, bonus int) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.push.Send(ctx, userID, "Milestone complete!", label, map[string]any{"bonus_points": bonus}); err != nil {
				metrics.SinkFailuresTotal.WithLabelValues(metrics.SinkPush).Inc()
				log.Printf("reward: push for user %s: %v", userID, err)
			}
		}(m.UserID, m.Label, m.BonusPoints)
	}
}

// SweepExpired fails every still-active milestone whose window has closed.
// Re-running a sweep that finds nothing is a no-op.
func (s *MilestoneService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	swept, err := s.store.SweepExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("milestone sweep failed: %w", err)
	}
	if swept > 0 {
		metrics.SweepResolvedTotal.WithLabelValues(metrics.SweepMilestones).Add(float64(swept))
		log.Printf("SweepExpired: failed %d expired milestones", swept)
	}
	return swept, nil
}

// ListCurrent returns the caller's milestones whose window contains now.
func (s *MilestoneService) ListCurrent(ctx context.Context, userID uuid.UUID, now time.Time) ([]*milestone.Milestone, error) {
	rows, err := s.store.ListCurrent(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	if rows == nil {
		rows = []*milestone.Milestone{}
	}
	return rows, nil
}
