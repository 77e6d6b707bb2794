package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoQuestAPI/internal/activity"
)

type pgActivityStore struct {
	db *pgxpool.Pool
}

func decodeActivityMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func (s *pgActivityStore) Insert(ctx context.Context, a *activity.Activity) error {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal activity metadata: %w", err)
	}

	query := `
	INSERT INTO community_activities (id, community_id, user_id, type, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.Exec(ctx, query, a.ID, a.CommunityID, a.UserID, a.Type, metadata, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	return nil
}

func (s *pgActivityStore) ListByCommunity(ctx context.Context, communityID uuid.UUID, limit, offset int) ([]*activity.Activity, int, error) {
	query := `
	SELECT id, community_id, user_id, type, metadata, created_at
	FROM community_activities
	WHERE community_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Query(ctx, query, communityID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch activities: %w", err)
	}
	defer rows.Close()

	var entries []*activity.Activity
	for rows.Next() {
		a := &activity.Activity{}
		var metadata []byte
		err := rows.Scan(&a.ID, &a.CommunityID, &a.UserID, &a.Type, &metadata, &a.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		if a.Metadata, err = decodeActivityMetadata(metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to decode activity metadata: %w", err)
		}
		entries = append(entries, a)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating activities: %w", err)
	}

	var total int
	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM community_activities WHERE community_id = $1`, communityID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	return entries, total, nil
}
