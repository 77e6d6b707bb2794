package user

import (
	"time"

	"github.com/google/uuid"

	"ecoQuestAPI/internal/badge"
	"ecoQuestAPI/internal/milestone"
)

// User mirrors the Clerk-managed identity plus app profile fields.
type User struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ClerkID     string     `json:"clerk_id" db:"clerk_id"`
	Email       string     `json:"email" db:"email"`
	Username    string     `json:"username" db:"username"`
	ImageURL    string     `json:"image_url" db:"image_url"`
	CommunityID *uuid.UUID `json:"community_id,omitempty" db:"community_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Progress is the denormalized per-user progression row mutated by every
// qualifying action. It is never deleted, only updated.
type Progress struct {
	UserID            uuid.UUID  `json:"user_id" db:"user_id"`
	TotalPoints       int        `json:"total_points" db:"total_points"`
	TotalCo2Saved     float64    `json:"total_co2_saved" db:"total_co2_saved"`
	FootprintBaseline float64    `json:"footprint_baseline" db:"footprint_baseline"`
	MissionsCount     int        `json:"missions_count" db:"missions_count"`
	CurrentStreak     int        `json:"current_streak" db:"current_streak"`
	LongestStreak     int        `json:"longest_streak" db:"longest_streak"`
	LastActiveDate    *time.Time `json:"last_active_date,omitempty" db:"last_active_date"`
	CommunityID       *uuid.UUID `json:"community_id,omitempty" db:"community_id"`
}

// Community is a group of users racing a shared challenge.
type Community struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	MemberCount int       `json:"member_count" db:"member_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ProfileResponse bundles everything the profile screen shows.
type ProfileResponse struct {
	Progress   *Progress              `json:"progress"`
	Badges     []*badge.UserBadge     `json:"badges"`
	Milestones []*milestone.Milestone `json:"milestones"`
}

type RecordActionRequest struct {
	Co2Saved   float64 `json:"co2_saved"`
	BasePoints int     `json:"base_points"`
}

type JoinCommunityRequest struct {
	CommunityID string `json:"community_id"`
}
