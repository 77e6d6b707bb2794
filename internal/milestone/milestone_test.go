package milestone

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPeriodKeyFor(t *testing.T) {
	tests := []struct {
		period Period
		now    time.Time
		want   string
	}{
		{PeriodWeekly, time.Date(2024, time.April, 24, 12, 0, 0, 0, time.UTC), "2024-W17"},
		{PeriodMonthly, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), "2024-05"},
		// ISO week 1 of 2025 starts on Dec 30, 2024.
		{PeriodWeekly, time.Date(2024, time.December, 30, 8, 0, 0, 0, time.UTC), "2025-W01"},
		{PeriodMonthly, time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC), "2024-12"},
	}

	for _, tt := range tests {
		if got := PeriodKeyFor(tt.period, tt.now); got != tt.want {
			t.Errorf("PeriodKeyFor(%s, %s) = %q, want %q", tt.period, tt.now, got, tt.want)
		}
	}
}

func TestPeriodKeyStableWithinWindow(t *testing.T) {
	monday := time.Date(2024, time.April, 22, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, time.April, 28, 23, 59, 59, 0, time.UTC)

	if PeriodKeyFor(PeriodWeekly, monday) != PeriodKeyFor(PeriodWeekly, sunday) {
		t.Error("weekly key changed within the same ISO week")
	}
}

func TestPeriodBoundsWeekly(t *testing.T) {
	// Wednesday.
	now := time.Date(2024, time.April, 24, 15, 30, 0, 0, time.UTC)
	start, end := PeriodBoundsFor(PeriodWeekly, now)

	wantStart := time.Date(2024, time.April, 22, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, time.April, 29, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Errorf("bounds = [%s, %s), want [%s, %s)", start, end, wantStart, wantEnd)
	}

	// Sunday belongs to the same week, not the next.
	sunday := time.Date(2024, time.April, 28, 10, 0, 0, 0, time.UTC)
	start2, _ := PeriodBoundsFor(PeriodWeekly, sunday)
	if !start2.Equal(wantStart) {
		t.Errorf("sunday start = %s, want %s", start2, wantStart)
	}
}

func TestPeriodBoundsMonthly(t *testing.T) {
	now := time.Date(2024, time.February, 14, 9, 0, 0, 0, time.UTC)
	start, end := PeriodBoundsFor(PeriodMonthly, now)

	wantStart := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Errorf("bounds = [%s, %s), want [%s, %s)", start, end, wantStart, wantEnd)
	}
}

func TestPercentComplete(t *testing.T) {
	tests := []struct {
		current float64
		target  float64
		want    int
	}{
		{0, 50, 0},
		{25, 50, 50},
		{40, 50, 80},
		{50, 50, 100},
		// Overshoot clamps to 100, never 110.
		{55, 50, 100},
		{1, 3, 33},
	}

	for _, tt := range tests {
		if got := PercentComplete(tt.current, tt.target); got != tt.want {
			t.Errorf("PercentComplete(%v, %v) = %d, want %d", tt.current, tt.target, got, tt.want)
		}
	}
}

func TestContributionFor(t *testing.T) {
	if got := ContributionFor(UnitKgCo2, 7.5); got != 7.5 {
		t.Errorf("kg_co2 contribution = %v, want 7.5", got)
	}
	if got := ContributionFor(UnitMissions, 7.5); got != 1 {
		t.Errorf("missions contribution = %v, want 1", got)
	}
}

func TestNewMilestone(t *testing.T) {
	now := time.Date(2024, time.April, 24, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	m := New(userID, Catalog[0], now)
	if m.Status != StatusActive {
		t.Errorf("status = %s, want active", m.Status)
	}
	if m.PeriodKey != "2024-W17" {
		t.Errorf("period key = %q, want 2024-W17", m.PeriodKey)
	}
	if m.CurrentValue != 0 || m.PercentComplete != 0 {
		t.Errorf("new milestone has progress: %+v", m)
	}
	if !m.PeriodStart.Before(now) || !m.PeriodEnd.After(now) {
		t.Errorf("now outside window [%s, %s)", m.PeriodStart, m.PeriodEnd)
	}
}
