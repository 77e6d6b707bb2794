package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Challenge is one community-wide CO2 reduction goal. At most one row per
// community is active at a time; historical rows are retained.
type Challenge struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	CommunityID      uuid.UUID  `json:"community_id" db:"community_id"`
	Title            string     `json:"title" db:"title"`
	Description      string     `json:"description" db:"description"`
	GoalCo2Kg        float64    `json:"goal_co2_kg" db:"goal_co2_kg"`
	CurrentCo2Kg     float64    `json:"current_co2_kg" db:"current_co2_kg"`
	StartDate        time.Time  `json:"start_date" db:"start_date"`
	EndDate          time.Time  `json:"end_date" db:"end_date"`
	Status           Status     `json:"status" db:"status"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ParticipantCount int        `json:"participant_count" db:"participant_count"`
}

// Participant is the (challenge, user) join row. Its existence is the sole
// record that the user has been counted toward ParticipantCount; it is
// created once and never updated or deleted.
type Participant struct {
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	JoinedAt    time.Time `json:"joined_at" db:"joined_at"`
}

// Template describes one catalog challenge a community can run.
type Template struct {
	Title        string
	Description  string
	GoalCo2Kg    float64
	DurationDays int
}

// Templates is the fixed challenge catalog. Which template gets picked for a
// new challenge is not load-bearing; EnsureActive chooses uniformly.
var Templates = []Template{
	{
		Title:        "Car-Free Fortnight",
		Description:  "Skip the car together and save 250 kg of CO2 in two weeks.",
		GoalCo2Kg:    250,
		DurationDays: 14,
	},
	{
		Title:        "Plant-Powered Month",
		Description:  "Swap meat for plants and save 500 kg of CO2 as a community this month.",
		GoalCo2Kg:    500,
		DurationDays: 30,
	},
	{
		Title:        "Energy Saver Sprint",
		Description:  "Cut household energy use and save 150 kg of CO2 in one week.",
		GoalCo2Kg:    150,
		DurationDays: 7,
	},
	{
		Title:        "Zero-Waste Challenge",
		Description:  "Reduce, reuse and recycle your way to 300 kg of CO2 saved in three weeks.",
		GoalCo2Kg:    300,
		DurationDays: 21,
	},
}

// FromTemplate instantiates an active challenge for a community starting now.
func FromTemplate(communityID uuid.UUID, tpl Template, now time.Time) *Challenge {
	now = now.UTC()
	return &Challenge{
		ID:          uuid.New(),
		CommunityID: communityID,
		Title:       tpl.Title,
		Description: tpl.Description,
		GoalCo2Kg:   tpl.GoalCo2Kg,
		StartDate:   now,
		EndDate:     now.AddDate(0, 0, tpl.DurationDays),
		Status:      StatusActive,
	}
}

// ProgressPercent reports goal progress clamped to 100 for display; the
// stored CurrentCo2Kg itself is never clamped.
func (c *Challenge) ProgressPercent() int {
	if c.GoalCo2Kg <= 0 {
		return 100
	}
	pct := int(100 * c.CurrentCo2Kg / c.GoalCo2Kg)
	if pct > 100 {
		return 100
	}
	return pct
}
