package activity

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeMissionComplete    Type = "mission_complete"
	TypeMemberJoined       Type = "member_joined"
	TypeBadgeEarned        Type = "badge_earned"
	TypeChallengeCompleted Type = "challenge_completed"
	TypeMilestone          Type = "milestone"
)

// Activity is one append-only feed entry. UserID is nil for community-wide
// events such as challenge completion.
type Activity struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	CommunityID uuid.UUID      `json:"community_id" db:"community_id"`
	UserID      *uuid.UUID     `json:"user_id,omitempty" db:"user_id"`
	Type        Type           `json:"type" db:"type"`
	Metadata    map[string]any `json:"metadata" db:"metadata"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// FeedResponse is a reverse-chronological page of the community feed.
type FeedResponse struct {
	Activities []*Activity `json:"activities"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalCount int         `json:"total_count"`
}
