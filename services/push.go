package services

import (
	"context"

	"github.com/google/uuid"
)

// PushSender is the narrow push-notification sink invoked on badge,
// milestone and challenge completion. Fire-and-forget: callers log failures
// and never let them touch the state change being announced.
type PushSender interface {
	Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]any) error
	SendToCommunity(ctx context.Context, communityID uuid.UUID, title, body string, data map[string]any) error
}
