package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoQuestAPI/internal/activity"
	"ecoQuestAPI/internal/challenge"
	"ecoQuestAPI/internal/metrics"
)

// ChallengeStore persists community challenges and the participant join
// table. The CO2 counter only moves through atomic adds; participant
// registration only through the conditional join-row insert.
type ChallengeStore interface {
	// GetActive returns the community's challenge with status=active and
	// start_date <= now <= end_date, or ErrNotFound.
	GetActive(ctx context.Context, communityID uuid.UUID, now time.Time) (*challenge.Challenge, error)
	// Insert lands the challenge only while the community has no other
	// active row; a raced insert affects nothing and the caller re-reads.
	Insert(ctx context.Context, c *challenge.Challenge) error
	// AddCo2 atomically adds amount to current_co2_kg while the challenge is
	// active, returning the post-update row; ErrInvalidState otherwise.
	AddCo2(ctx context.Context, id uuid.UUID, amount float64) (*challenge.Challenge, error)
	// RegisterParticipant inserts the (challenge, user) join row if absent
	// and, only when this call created it, increments participant_count.
	// Reports whether this call registered the user.
	RegisterParticipant(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (bool, error)
	HasParticipant(ctx context.Context, challengeID, userID uuid.UUID) (bool, error)
	// MarkCompleted transitions active -> completed; reports whether this
	// call performed the transition.
	MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// SweepExpired fails every active challenge with end_date < now and
	// returns the affected community ids so callers can start fresh ones.
	SweepExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// ChallengeService maintains the one-active-challenge-per-community
// invariant, accumulates member contributions and resolves completion and
// expiry.
type ChallengeService struct {
	store ChallengeStore
	feed  *ActivityService
	push  PushSender
}

func NewChallengeService(db *pgxpool.Pool, feed *ActivityService, push PushSender) *ChallengeService {
	return &ChallengeService{store: &pgChallengeStore{db: db}, feed: feed, push: push}
}

func NewChallengeServiceWithStore(store ChallengeStore, feed *ActivityService, push PushSender) *ChallengeService {
	return &ChallengeService{store: store, feed: feed, push: push}
}

// EnsureActive guarantees the community has a running challenge, creating
// one from a random catalog template when none exists. Concurrent callers
// may both find nothing and try to create; the store's conditional insert
// lets only one active row land, and the re-read converges everyone on it.
func (s *ChallengeService) EnsureActive(ctx context.Context, communityID uuid.UUID, now time.Time) (*challenge.Challenge, error) {
	existing, err := s.store.GetActive(ctx, communityID, now)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tpl := challenge.Templates[rand.Intn(len(challenge.Templates))]
	fresh := challenge.FromTemplate(communityID, tpl, now)
	if err := s.store.Insert(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	// Re-read so racing creators converge on one row (earliest start wins).
	created, err := s.store.GetActive(ctx, communityID, now)
	if err != nil {
		return fresh, nil
	}
	return created, nil
}

// Contribute applies one action's CO2 amount to the community's active
// challenge. No active challenge is a benign no-op. The CO2 increment and
// the participant registration are two separate writes; registration is
// idempotent so a retry after a crash between them cannot double-count CO2.
func (s *ChallengeService) Contribute(ctx context.Context, communityID, userID uuid.UUID, co2Kg float64, now time.Time) (*challenge.Challenge, error) {
	active, err := s.store.GetActive(ctx, communityID, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	updated, err := s.store.AddCo2(ctx, active.ID, co2Kg)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			// Resolved between the read and the write; the contribution is
			// dropped with the challenge already terminal.
			return nil, nil
		}
		return nil, err
	}

	if err := s.EnsureParticipant(ctx, updated.ID, userID, now); err != nil {
		// Registration can be retried independently; the CO2 is in.
		log.Printf("Contribute: participant registration for user %s challenge %s: %v", userID, updated.ID, err)
	}

	if updated.CurrentCo2Kg >= updated.GoalCo2Kg && updated.Status == challenge.StatusActive {
		s.complete(ctx, updated, now)
	}

	return updated, nil
}

// EnsureParticipant records the user toward participant_count at most once
// per challenge, no matter how many contributing actions (or retries) occur.
func (s *ChallengeService) EnsureParticipant(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) error {
	_, err := s.store.RegisterParticipant(ctx, challengeID, userID, now)
	return err
}

func (s *ChallengeService) complete(ctx context.Context, c *challenge.Challenge, now time.Time) {
	won, err := s.store.MarkCompleted(ctx, c.ID, now)
	if err != nil {
		log.Printf("complete: challenge %s: %v", c.ID, err)
		return
	}
	if !won {
		// A concurrent contribution or the sweep got there first.
		return
	}

	c.Status = challenge.StatusCompleted
	completedAt := now.UTC()
	c.CompletedAt = &completedAt
	metrics.ChallengesCompletedTotal.Inc()

	// Community-wide event, no specific user.
	s.feed.Emit(ctx, c.CommunityID, nil, activity.TypeChallengeCompleted, map[string]any{
		"challenge_id": c.ID,
		"title":        c.Title,
		"goal_co2_kg":  c.GoalCo2Kg,
	})

	if s.push != nil {
		go func(communityID uuid.UUID, title string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.push.SendToCommunity(ctx, communityID, "Challenge complete!", title, nil); err != nil {
				metrics.SinkFailuresTotal.WithLabelValues(metrics.SinkPush).Inc()
				log.Printf("complete: push for community %s: %v", communityID, err)
			}
		}(c.CommunityID, c.Title)
	}
}

// SweepExpired fails every active challenge past its end date, then starts a
// fresh challenge for each affected community. A challenge at 480/500 when
// the clock runs out goes to failed, never completed.
func (s *ChallengeService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	communityIDs, err := s.store.SweepExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("challenge sweep failed: %w", err)
	}

	if len(communityIDs) > 0 {
		metrics.SweepResolvedTotal.WithLabelValues(metrics.SweepChallenges).Add(float64(len(communityIDs)))
		log.Printf("SweepExpired: failed %d expired challenges", len(communityIDs))
	}

	for _, communityID := range communityIDs {
		if _, err := s.EnsureActive(ctx, communityID, now); err != nil {
			log.Printf("SweepExpired: ensure-active for community %s: %v", communityID, err)
		}
	}

	return len(communityIDs), nil
}

// GetActive exposes the community's running challenge, with the caller's
// participation flag for display.
func (s *ChallengeService) GetActive(ctx context.Context, communityID, userID uuid.UUID, now time.Time) (*challenge.Challenge, bool, error) {
	active, err := s.store.GetActive(ctx, communityID, now)
	if err != nil {
		return nil, false, err
	}

	participating, err := s.store.HasParticipant(ctx, active.ID, userID)
	if err != nil {
		return nil, false, err
	}
	return active, participating, nil
}
