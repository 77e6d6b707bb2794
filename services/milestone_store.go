package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoQuestAPI/internal/milestone"
)

type pgMilestoneStore struct {
	db *pgxpool.Pool
}

const milestoneColumns = `id, user_id, type, period, period_key, target_value, unit, label, current_value, percent_complete, status, bonus_points, badge_id, period_start, period_end, completed_at, created_at`

func scanMilestone(row pgx.Row) (*milestone.Milestone, error) {
	m := &milestone.Milestone{}
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.Type,
		&m.Period,
		&m.PeriodKey,
		&m.TargetValue,
		&m.Unit,
		&m.Label,
		&m.CurrentValue,
		&m.PercentComplete,
		&m.Status,
		&m.BonusPoints,
		&m.BadgeID,
		&m.PeriodStart,
		&m.PeriodEnd,
		&m.CompletedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *pgMilestoneStore) InsertIfAbsent(ctx context.Context, m *milestone.Milestone) (bool, error) {
	// The unique index on (user_id, type, period_key) makes this safe under
	// concurrent resolve-or-create: every loser converges on the winner's row.
	query := `
	INSERT INTO recurring_milestones (` + milestoneColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, $9, $10, $11, $12, $13, NULL, $14)
	ON CONFLICT (user_id, type, period_key) DO NOTHING
	`

	result, err := s.db.Exec(ctx, query,
		m.ID, m.UserID, m.Type, m.Period, m.PeriodKey,
		m.TargetValue, m.Unit, m.Label,
		m.Status, m.BonusPoints, m.BadgeID,
		m.PeriodStart, m.PeriodEnd, m.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert milestone: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *pgMilestoneStore) Get(ctx context.Context, userID uuid.UUID, typ milestone.Type, periodKey string) (*milestone.Milestone, error) {
	query := `
	SELECT ` + milestoneColumns + `
	FROM recurring_milestones
	WHERE user_id = $1 AND type = $2 AND period_key = $3
	`

	m, err := scanMilestone(s.db.QueryRow(ctx, query, userID, typ, periodKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}
	return m, nil
}

func (s *pgMilestoneStore) AddProgress(ctx context.Context, id uuid.UUID, delta float64, now time.Time) (*milestone.Milestone, error) {
	// Guarded atomic add: only active rows whose window is still open move.
	// Terminal rows are immutable, so a late event can never advance a
	// closed period.
	query := `
	UPDATE recurring_milestones
	SET
		current_value = current_value + $2,
		percent_complete = LEAST(100, ROUND(100 * (current_value + $2) / target_value))
	WHERE id = $1 AND status = 'active' AND period_end > $3
	RETURNING ` + milestoneColumns + `
	`

	m, err := scanMilestone(s.db.QueryRow(ctx, query, id, delta, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to add milestone progress: %w", err)
	}
	return m, nil
}

func (s *pgMilestoneStore) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	// Conditional transition: whichever of completion and the expiry sweep
	// observes the terminal condition first wins; the other affects no rows.
	query := `
	UPDATE recurring_milestones
	SET status = 'completed', completed_at = $2
	WHERE id = $1 AND status = 'active'
	`

	result, err := s.db.Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to complete milestone: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *pgMilestoneStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
	UPDATE recurring_milestones
	SET status = 'failed'
	WHERE status = 'active' AND period_end < $1
	`

	result, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep milestones: %w", err)
	}
	return result.RowsAffected(), nil
}

func (s *pgMilestoneStore) ListCurrent(ctx context.Context, userID uuid.UUID, now time.Time) ([]*milestone.Milestone, error) {
	query := `
	SELECT ` + milestoneColumns + `
	FROM recurring_milestones
	WHERE user_id = $1 AND period_start <= $2 AND period_end > $2
	ORDER BY period, type
	`

	rows, err := s.db.Query(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*milestone.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}

	return milestones, rows.Err()
}
