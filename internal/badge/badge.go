package badge

import "time"

type Unit string

const (
	UnitMissions      Unit = "missions"
	UnitKgCo2         Unit = "kg_co2"
	UnitStreak        Unit = "streak"
	UnitCommunityJoin Unit = "community_join"
)

// Badge is one entry of the static catalog. Badges are identified by stable
// string ids; a user's earned badges are rows in user_badges referencing
// these ids.
type Badge struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Threshold int    `json:"threshold"`
	Unit      Unit   `json:"unit"`
}

// UserBadge is one earned badge.
type UserBadge struct {
	BadgeID  string    `json:"badge_id" db:"badge_id"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}

// Stats is the post-update snapshot badge thresholds are evaluated against.
type Stats struct {
	MissionsCount int
	TotalCo2Saved float64
	CurrentStreak int
	HasCommunity  bool
}

// Catalog is the fixed badge catalog, loaded once at process start and
// referenced by id everywhere else.
var Catalog = []Badge{
	{ID: "first_mission", Label: "First Steps", Threshold: 1, Unit: UnitMissions},
	{ID: "mission_10", Label: "Habit Builder", Threshold: 10, Unit: UnitMissions},
	{ID: "mission_50", Label: "Eco Warrior", Threshold: 50, Unit: UnitMissions},
	{ID: "mission_100", Label: "Mission Centurion", Threshold: 100, Unit: UnitMissions},
	{ID: "co2_10", Label: "Carbon Saver", Threshold: 10, Unit: UnitKgCo2},
	{ID: "co2_100", Label: "Climate Guardian", Threshold: 100, Unit: UnitKgCo2},
	{ID: "co2_500", Label: "Planet Protector", Threshold: 500, Unit: UnitKgCo2},
	{ID: "streak_7", Label: "One Green Week", Threshold: 7, Unit: UnitStreak},
	{ID: "streak_30", Label: "Green Month", Threshold: 30, Unit: UnitStreak},
	{ID: "community_member", Label: "Better Together", Threshold: 1, Unit: UnitCommunityJoin},
}

// ByID looks a badge up in the catalog.
func ByID(id string) (Badge, bool) {
	for _, b := range Catalog {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// Evaluate returns the catalog ids that newly qualify for stats, skipping
// anything already in earned. The function itself is only a filter: the
// caller must record each id with a conditional "insert if absent" write,
// which is the actual idempotency guard under concurrent evaluation.
func Evaluate(earned map[string]bool, stats Stats) []string {
	var newly []string
	for _, b := range Catalog {
		if earned[b.ID] {
			continue
		}
		if qualifies(b, stats) {
			newly = append(newly, b.ID)
		}
	}
	return newly
}

func qualifies(b Badge, stats Stats) bool {
	switch b.Unit {
	case UnitMissions:
		return stats.MissionsCount >= b.Threshold
	case UnitKgCo2:
		return stats.TotalCo2Saved >= float64(b.Threshold)
	case UnitStreak:
		return stats.CurrentStreak >= b.Threshold
	case UnitCommunityJoin:
		return stats.HasCommunity
	default:
		return false
	}
}
