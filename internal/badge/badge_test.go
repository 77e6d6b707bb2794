package badge

import (
	"testing"
)

func TestEvaluateThresholds(t *testing.T) {
	tests := []struct {
		name  string
		stats Stats
		want  []string
	}{
		{
			name:  "nothing qualifies",
			stats: Stats{},
			want:  nil,
		},
		{
			name:  "first mission",
			stats: Stats{MissionsCount: 1},
			want:  []string{"first_mission"},
		},
		{
			name:  "missions and co2",
			stats: Stats{MissionsCount: 10, TotalCo2Saved: 12.5},
			want:  []string{"first_mission", "mission_10", "co2_10"},
		},
		{
			name:  "streak badge",
			stats: Stats{MissionsCount: 7, CurrentStreak: 7, TotalCo2Saved: 3},
			want:  []string{"first_mission", "streak_7"},
		},
		{
			name:  "community join has no numeric threshold",
			stats: Stats{HasCommunity: true},
			want:  []string{"community_member"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(map[string]bool{}, tt.stats)
			if len(got) != len(tt.want) {
				t.Fatalf("Evaluate = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Evaluate = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	stats := Stats{MissionsCount: 60, TotalCo2Saved: 150, CurrentStreak: 10, HasCommunity: true}

	earned := map[string]bool{}
	first := Evaluate(earned, stats)
	if len(first) == 0 {
		t.Fatal("expected badges on first evaluation")
	}

	for _, id := range first {
		earned[id] = true
	}

	// Same stats, same earned set: second pass must return nothing.
	second := Evaluate(earned, stats)
	if len(second) != 0 {
		t.Errorf("second evaluation returned %v, want empty", second)
	}
}

func TestEvaluateSkipsEarnedOnly(t *testing.T) {
	stats := Stats{MissionsCount: 10}
	earned := map[string]bool{"first_mission": true}

	got := Evaluate(earned, stats)
	if len(got) != 1 || got[0] != "mission_10" {
		t.Errorf("Evaluate = %v, want [mission_10]", got)
	}
}

func TestCatalogIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, b := range Catalog {
		if seen[b.ID] {
			t.Errorf("duplicate badge id %q in catalog", b.ID)
		}
		seen[b.ID] = true
	}
}

func TestByID(t *testing.T) {
	if _, ok := ByID("streak_30"); !ok {
		t.Error("streak_30 missing from catalog")
	}
	if _, ok := ByID("nope"); ok {
		t.Error("unexpected badge for unknown id")
	}
}
