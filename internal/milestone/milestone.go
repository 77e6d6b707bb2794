package milestone

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Type string

const (
	TypeWeeklyCo2       Type = "weekly_co2"
	TypeWeeklyMissions  Type = "weekly_missions"
	TypeMonthlyCo2      Type = "monthly_co2"
	TypeMonthlyMissions Type = "monthly_missions"
)

type Unit string

const (
	UnitKgCo2    Unit = "kg_co2"
	UnitMissions Unit = "missions"
)

// Milestone is one per-user recurring goal row. The tuple
// (UserID, Type, PeriodKey) is unique; re-resolving the same period always
// converges on the same row.
type Milestone struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	Type            Type       `json:"type" db:"type"`
	Period          Period     `json:"period" db:"period"`
	PeriodKey       string     `json:"period_key" db:"period_key"`
	TargetValue     float64    `json:"target_value" db:"target_value"`
	Unit            Unit       `json:"unit" db:"unit"`
	Label           string     `json:"label" db:"label"`
	CurrentValue    float64    `json:"current_value" db:"current_value"`
	PercentComplete int        `json:"percent_complete" db:"percent_complete"`
	Status          Status     `json:"status" db:"status"`
	BonusPoints     int        `json:"bonus_points" db:"bonus_points"`
	BadgeID         *string    `json:"badge_id,omitempty" db:"badge_id"`
	PeriodStart     time.Time  `json:"period_start" db:"period_start"`
	PeriodEnd       time.Time  `json:"period_end" db:"period_end"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Definition is one catalog entry describing a recurring goal.
type Definition struct {
	Type        Type
	Period      Period
	Unit        Unit
	TargetValue float64
	Label       string
	BonusPoints int
	BadgeID     *string
}

// Catalog lists the recurring goals every user races each period.
var Catalog = []Definition{
	{Type: TypeWeeklyCo2, Period: PeriodWeekly, Unit: UnitKgCo2, TargetValue: 25, Label: "Save 25 kg of CO2 this week", BonusPoints: 100},
	{Type: TypeWeeklyMissions, Period: PeriodWeekly, Unit: UnitMissions, TargetValue: 5, Label: "Complete 5 missions this week", BonusPoints: 75},
	{Type: TypeMonthlyCo2, Period: PeriodMonthly, Unit: UnitKgCo2, TargetValue: 100, Label: "Save 100 kg of CO2 this month", BonusPoints: 300},
	{Type: TypeMonthlyMissions, Period: PeriodMonthly, Unit: UnitMissions, TargetValue: 20, Label: "Complete 20 missions this month", BonusPoints: 250},
}

// PeriodKeyFor derives the deterministic window key for now: ISO week
// ("2024-W17") for weekly goals, year-month ("2024-05") for monthly ones.
// Boundaries are UTC.
func PeriodKeyFor(p Period, now time.Time) string {
	now = now.UTC()
	if p == PeriodWeekly {
		year, week := now.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return fmt.Sprintf("%d-%02d", now.Year(), int(now.Month()))
}

// PeriodBoundsFor returns the [start, end) window containing now. Weekly
// windows run Monday 00:00 UTC to the next Monday; monthly windows run the
// first of the month to the first of the next month.
func PeriodBoundsFor(p Period, now time.Time) (start, end time.Time) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if p == PeriodWeekly {
		weekday := int(day.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		start = day.AddDate(0, 0, -(weekday - 1))
		return start, start.AddDate(0, 0, 7)
	}

	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// ContributionFor maps one action's values onto a goal unit: the saved CO2
// for kg goals, a single mission increment for mission goals. Milestone and
// challenge updates must both see the same co2Saved for one action.
func ContributionFor(u Unit, co2Saved float64) float64 {
	if u == UnitKgCo2 {
		return co2Saved
	}
	return 1
}

// PercentComplete clamps progress to [0, 100].
func PercentComplete(current, target float64) int {
	if target <= 0 {
		return 100
	}
	pct := int(math.Round(100 * current / target))
	if pct > 100 {
		return 100
	}
	return pct
}

// New builds a fresh active row for def in the period containing now.
func New(userID uuid.UUID, def Definition, now time.Time) *Milestone {
	start, end := PeriodBoundsFor(def.Period, now)
	return &Milestone{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        def.Type,
		Period:      def.Period,
		PeriodKey:   PeriodKeyFor(def.Period, now),
		TargetValue: def.TargetValue,
		Unit:        def.Unit,
		Label:       def.Label,
		Status:      StatusActive,
		BonusPoints: def.BonusPoints,
		BadgeID:     def.BadgeID,
		PeriodStart: start,
		PeriodEnd:   end,
		CreatedAt:   now.UTC(),
	}
}
