package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoQuestAPI/internal/challenge"
)

type pgChallengeStore struct {
	db *pgxpool.Pool
}

const challengeColumns = `id, community_id, title, description, goal_co2_kg, current_co2_kg, start_date, end_date, status, completed_at, participant_count`

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	err := row.Scan(
		&c.ID,
		&c.CommunityID,
		&c.Title,
		&c.Description,
		&c.GoalCo2Kg,
		&c.CurrentCo2Kg,
		&c.StartDate,
		&c.EndDate,
		&c.Status,
		&c.CompletedAt,
		&c.ParticipantCount,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *pgChallengeStore) GetActive(ctx context.Context, communityID uuid.UUID, now time.Time) (*challenge.Challenge, error) {
	query := `
	SELECT ` + challengeColumns + `
	FROM community_challenges
	WHERE community_id = $1 AND status = 'active' AND start_date <= $2 AND end_date >= $2
	ORDER BY start_date ASC
	LIMIT 1
	`

	c, err := scanChallenge(s.db.QueryRow(ctx, query, communityID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active challenge: %w", err)
	}
	return c, nil
}

func (s *pgChallengeStore) Insert(ctx context.Context, c *challenge.Challenge) error {
	// The partial unique index on (community_id) WHERE status = 'active'
	// makes this a conditional insert: when two creators race, only one
	// active row lands and the loser converges on it via the re-read.
	query := `
	INSERT INTO community_challenges (` + challengeColumns + `)
	VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, NULL, 0)
	ON CONFLICT (community_id) WHERE status = 'active' DO NOTHING
	`

	_, err := s.db.Exec(ctx, query,
		c.ID, c.CommunityID, c.Title, c.Description, c.GoalCo2Kg,
		c.StartDate, c.EndDate, c.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert challenge: %w", err)
	}
	return nil
}

func (s *pgChallengeStore) AddCo2(ctx context.Context, id uuid.UUID, amount float64) (*challenge.Challenge, error) {
	// Increase-only atomic add; the counter may exceed the goal, no clamp.
	query := `
	UPDATE community_challenges
	SET current_co2_kg = current_co2_kg + $2
	WHERE id = $1 AND status = 'active'
	RETURNING ` + challengeColumns + `
	`

	c, err := scanChallenge(s.db.QueryRow(ctx, query, id, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to add challenge co2: %w", err)
	}
	return c, nil
}

func (s *pgChallengeStore) RegisterParticipant(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (bool, error) {
	// The join row's primary key is the idempotency guard: only the insert
	// that actually lands bumps participant_count, so a user contributing
	// five times is counted exactly once.
	query := `
	INSERT INTO challenge_participants (challenge_id, user_id, joined_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (challenge_id, user_id) DO NOTHING
	`

	result, err := s.db.Exec(ctx, query, challengeID, userID, now)
	if err != nil {
		return false, fmt.Errorf("failed to register participant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	_, err = s.db.Exec(ctx, `UPDATE community_challenges SET participant_count = participant_count + 1 WHERE id = $1`, challengeID)
	if err != nil {
		return true, fmt.Errorf("failed to bump participant count: %w", err)
	}
	return true, nil
}

func (s *pgChallengeStore) HasParticipant(ctx context.Context, challengeID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2)`
	if err := s.db.QueryRow(ctx, query, challengeID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return exists, nil
}

func (s *pgChallengeStore) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
	UPDATE community_challenges
	SET status = 'completed', completed_at = $2
	WHERE id = $1 AND status = 'active'
	`

	result, err := s.db.Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to complete challenge: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *pgChallengeStore) SweepExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
	UPDATE community_challenges
	SET status = 'failed'
	WHERE status = 'active' AND end_date < $1
	RETURNING community_id
	`

	rows, err := s.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep challenges: %w", err)
	}
	defer rows.Close()

	var communityIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan swept challenge: %w", err)
		}
		communityIDs = append(communityIDs, id)
	}

	return communityIDs, rows.Err()
}
