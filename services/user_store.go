package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoQuestAPI/internal/badge"
	"ecoQuestAPI/internal/progression"
	"ecoQuestAPI/internal/user"
)

// UserStore persists the per-user progression aggregate. Counter columns are
// only ever touched with atomic "add to current value" updates; the badge set
// only with a conditional insert.
type UserStore interface {
	GetProgress(ctx context.Context, userID uuid.UUID) (*user.Progress, error)
	// ApplyAction adds the awarded points, the saved CO2 and one mission to
	// the running totals and persists the new streak state, returning the
	// post-update row.
	ApplyAction(ctx context.Context, userID uuid.UUID, points int, co2Saved float64, streak progression.StreakResult, activeDate time.Time) (*user.Progress, error)
	AddBonusPoints(ctx context.Context, userID uuid.UUID, points int) error
	ListBadgeIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error)
	ListBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error)
	// AwardBadge records a badge only if not already present. The returned
	// bool reports whether this call created the row; losing the race is
	// success from the caller's perspective.
	AwardBadge(ctx context.Context, userID uuid.UUID, badgeID string, now time.Time) (bool, error)
	SetCommunity(ctx context.Context, userID, communityID uuid.UUID) error
}

type pgUserStore struct {
	db *pgxpool.Pool
}

// NewUserStore returns the Postgres-backed progress store for wiring services
// that share it.
func NewUserStore(db *pgxpool.Pool) UserStore {
	return &pgUserStore{db: db}
}

const progressColumns = `user_id, total_points, total_co2_saved, footprint_baseline, missions_count, current_streak, longest_streak, last_active_date, community_id`

func scanProgress(row pgx.Row) (*user.Progress, error) {
	p := &user.Progress{}
	err := row.Scan(
		&p.UserID,
		&p.TotalPoints,
		&p.TotalCo2Saved,
		&p.FootprintBaseline,
		&p.MissionsCount,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.LastActiveDate,
		&p.CommunityID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user progress: %w", err)
	}
	return p, nil
}

func (s *pgUserStore) GetProgress(ctx context.Context, userID uuid.UUID) (*user.Progress, error) {
	query := `
	SELECT ` + progressColumns + `
	FROM user_progress
	WHERE user_id = $1
	`
	return scanProgress(s.db.QueryRow(ctx, query, userID))
}

func (s *pgUserStore) ApplyAction(ctx context.Context, userID uuid.UUID, points int, co2Saved float64, streak progression.StreakResult, activeDate time.Time) (*user.Progress, error) {
	// Totals are atomic adds so concurrent actions never lose updates; the
	// streak columns are plain sets computed by the caller, with GREATEST
	// keeping longest_streak monotone.
	query := `
	UPDATE user_progress
	SET
		total_points = total_points + $2,
		total_co2_saved = total_co2_saved + $3,
		missions_count = missions_count + 1,
		current_streak = $4,
		longest_streak = GREATEST(longest_streak, $5),
		last_active_date = $6
	WHERE user_id = $1
	RETURNING ` + progressColumns + `
	`

	p, err := scanProgress(s.db.QueryRow(ctx, query, userID, points, co2Saved, streak.CurrentStreak, streak.LongestStreak, activeDate))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to apply action: %w", err)
	}
	return p, nil
}

func (s *pgUserStore) AddBonusPoints(ctx context.Context, userID uuid.UUID, points int) error {
	query := `
	UPDATE user_progress
	SET total_points = total_points + $2
	WHERE user_id = $1
	`

	result, err := s.db.Exec(ctx, query, userID, points)
	if err != nil {
		return fmt.Errorf("failed to add bonus points: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgUserStore) ListBadgeIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	rows, err := s.db.Query(ctx, `SELECT badge_id FROM user_badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch badge ids: %w", err)
	}
	defer rows.Close()

	earned := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan badge id: %w", err)
		}
		earned[id] = true
	}

	return earned, rows.Err()
}

func (s *pgUserStore) ListBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error) {
	query := `
	SELECT badge_id, earned_at
	FROM user_badges
	WHERE user_id = $1
	ORDER BY earned_at ASC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch badges: %w", err)
	}
	defer rows.Close()

	var badges []*badge.UserBadge
	for rows.Next() {
		b := &badge.UserBadge{}
		if err := rows.Scan(&b.BadgeID, &b.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, b)
	}

	return badges, rows.Err()
}

func (s *pgUserStore) AwardBadge(ctx context.Context, userID uuid.UUID, badgeID string, now time.Time) (bool, error) {
	query := `
	INSERT INTO user_badges (user_id, badge_id, earned_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, badge_id) DO NOTHING
	`

	result, err := s.db.Exec(ctx, query, userID, badgeID, now)
	if err != nil {
		return false, fmt.Errorf("failed to award badge: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *pgUserStore) SetCommunity(ctx context.Context, userID, communityID uuid.UUID) error {
	result, err := s.db.Exec(ctx, `UPDATE user_progress SET community_id = $2 WHERE user_id = $1`, userID, communityID)
	if err != nil {
		return fmt.Errorf("failed to set community: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = s.db.Exec(ctx, `UPDATE users SET community_id = $2, updated_at = NOW() WHERE id = $1`, userID, communityID)
	if err != nil {
		return fmt.Errorf("failed to set user community: %w", err)
	}
	return nil
}
