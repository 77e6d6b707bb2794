package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoQuestAPI/internal/activity"
	"ecoQuestAPI/internal/metrics"
)

// ActivityStore persists the append-only community feed.
type ActivityStore interface {
	Insert(ctx context.Context, a *activity.Activity) error
	ListByCommunity(ctx context.Context, communityID uuid.UUID, limit, offset int) ([]*activity.Activity, int, error)
}

// ActivityService appends feed entries and serves the paginated reader. The
// feed is a best-effort projection of state changes that already happened:
// Emit never propagates failures back to the pipeline.
type ActivityService struct {
	store ActivityStore
}

func NewActivityService(db *pgxpool.Pool) *ActivityService {
	return &ActivityService{store: &pgActivityStore{db: db}}
}

func NewActivityServiceWithStore(store ActivityStore) *ActivityService {
	return &ActivityService{store: store}
}

// Emit appends one feed entry. Failures are logged and retried once; the
// state change the entry describes is the source of truth and is never
// rolled back.
func (s *ActivityService) Emit(ctx context.Context, communityID uuid.UUID, userID *uuid.UUID, typ activity.Type, metadata map[string]any) {
	entry := &activity.Activity{
		ID:          uuid.New(),
		CommunityID: communityID,
		UserID:      userID,
		Type:        typ,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.Insert(ctx, entry); err != nil {
		log.Printf("Emit: feed append failed (type=%s community=%s), retrying once: %v", typ, communityID, err)
		if err := s.store.Insert(ctx, entry); err != nil {
			metrics.SinkFailuresTotal.WithLabelValues(metrics.SinkFeed).Inc()
			log.Printf("Emit: feed append retry failed, dropping entry (type=%s community=%s): %v", typ, communityID, err)
		}
	}
}

// GetFeed returns one reverse-chronological page of a community's feed.
func (s *ActivityService) GetFeed(ctx context.Context, communityID uuid.UUID, page, pageSize int) (*activity.FeedResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	entries, total, err := s.store.ListByCommunity(ctx, communityID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	if entries == nil {
		entries = []*activity.Activity{}
	}

	return &activity.FeedResponse{
		Activities: entries,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}, nil
}
