package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"ecoQuestAPI/internal/activity"
	"ecoQuestAPI/internal/challenge"
)

func newChallengeFixture() (*ChallengeService, *fakeChallengeStore, *fakeActivityStore) {
	store := newFakeChallengeStore()
	feedStore := &fakeActivityStore{}
	svc := NewChallengeServiceWithStore(store, NewActivityServiceWithStore(feedStore), nil)
	return svc, store, feedStore
}

func seedChallenge(store *fakeChallengeStore, communityID uuid.UUID, goal, current float64, now time.Time, days int) *challenge.Challenge {
	c := &challenge.Challenge{
		ID:           uuid.New(),
		CommunityID:  communityID,
		Title:        "Plant-Powered Month",
		GoalCo2Kg:    goal,
		CurrentCo2Kg: current,
		StartDate:    now.AddDate(0, 0, -1),
		EndDate:      now.AddDate(0, 0, days),
		Status:       challenge.StatusActive,
	}
	store.seed(c)
	return c
}

func TestEnsureActiveCreatesOnce(t *testing.T) {
	svc, _, _ := newChallengeFixture()
	communityID := uuid.New()
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	first, err := svc.EnsureActive(context.Background(), communityID, now)
	if err != nil {
		t.Fatalf("EnsureActive: %v", err)
	}
	if first.Status != challenge.StatusActive {
		t.Fatalf("expected an active challenge, got %s", first.Status)
	}

	second, err := svc.EnsureActive(context.Background(), communityID, now)
	if err != nil {
		t.Fatalf("second EnsureActive: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the existing challenge back, got a new one")
	}
}

func TestEnsureActiveConcurrentCreatorsConverge(t *testing.T) {
	svc, store, _ := newChallengeFixture()
	communityID := uuid.New()
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	const creators = 8
	results := make([]*challenge.Challenge, creators)

	var wg sync.WaitGroup
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := svc.EnsureActive(context.Background(), communityID, now)
			if err != nil {
				t.Errorf("EnsureActive: %v", err)
				return
			}
			results[i] = c
		}(i)
	}
	wg.Wait()

	if got := store.activeCount(communityID); got != 1 {
		t.Fatalf("expected exactly 1 active challenge after racing creators, got %d", got)
	}

	for i, c := range results {
		if c == nil {
			t.Fatalf("creator %d got no challenge", i)
		}
		if c.ID != results[0].ID {
			t.Errorf("creator %d converged on a different challenge", i)
		}
	}
}

func TestContributeCountsParticipantOnce(t *testing.T) {
	svc, store, _ := newChallengeFixture()
	communityID := uuid.New()
	userID := uuid.New()
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	seeded := seedChallenge(store, communityID, 500, 0, now, 20)

	for i := 0; i < 5; i++ {
		if _, err := svc.Contribute(context.Background(), communityID, userID, 10, now); err != nil {
			t.Fatalf("Contribute %d: %v", i, err)
		}
	}

	c := store.get(seeded.ID)
	if c.CurrentCo2Kg != 50 {
		t.Errorf("expected 50 kg accumulated, got %v", c.CurrentCo2Kg)
	}
	if c.ParticipantCount != 1 {
		t.Errorf("expected participant counted exactly once, got %d", c.ParticipantCount)
	}
}

func TestContributeCompletesAtGoal(t *testing.T) {
	svc, store, feed := newChallengeFixture()
	communityID := uuid.New()
	userID := uuid.New()
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	seeded := seedChallenge(store, communityID, 100, 95, now, 20)

	updated, err := svc.Contribute(context.Background(), communityID, userID, 10, now)
	if err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	if updated.Status != challenge.StatusCompleted {
		t.Fatalf("expected status completed, got %s", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	entries := feed.byType(activity.TypeChallengeCompleted)
	if len(entries) != 1 {
		t.Fatalf("expected 1 challenge_completed feed entry, got %d", len(entries))
	}
	if entries[0].UserID != nil {
		t.Error("challenge completion is a community event, not attributed to a user")
	}

	// Once terminal, further contributions are dropped.
	late, err := svc.Contribute(context.Background(), communityID, userID, 10, now)
	if err != nil {
		t.Fatalf("late Contribute: %v", err)
	}
	if late != nil {
		t.Errorf("expected a no-op against a resolved challenge, got %+v", late)
	}
	if got := store.get(seeded.ID).CurrentCo2Kg; got != 105 {
		t.Errorf("expected CO2 frozen at 105, got %v", got)
	}
}

func TestContributeWithoutActiveChallenge(t *testing.T) {
	svc, _, _ := newChallengeFixture()
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	c, err := svc.Contribute(context.Background(), uuid.New(), uuid.New(), 10, now)
	if err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	if c != nil {
		t.Errorf("expected a no-op with no active challenge, got %+v", c)
	}
}

func TestSweepExpiredFailsNearMiss(t *testing.T) {
	svc, store, _ := newChallengeFixture()
	communityID := uuid.New()
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	expired := seedChallenge(store, communityID, 500, 480, now.AddDate(0, 0, -30), 14)

	swept, err := svc.SweepExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept challenge, got %d", swept)
	}

	old := store.get(expired.ID)
	if old.Status != challenge.StatusFailed {
		t.Errorf("expected 480/500 at expiry to fail, got %s", old.Status)
	}
	if old.CompletedAt != nil {
		t.Error("a failed challenge must not carry a completion timestamp")
	}

	// The sweep starts a replacement for the affected community.
	fresh, err := store.GetActive(context.Background(), communityID, now)
	if err != nil {
		t.Fatalf("GetActive after sweep: %v", err)
	}
	if fresh.ID == expired.ID {
		t.Error("expected a fresh challenge, got the expired one")
	}
	if fresh.CurrentCo2Kg != 0 {
		t.Errorf("expected the replacement to start from zero, got %v", fresh.CurrentCo2Kg)
	}
}

func TestConcurrentContributions(t *testing.T) {
	svc, store, _ := newChallengeFixture()
	communityID := uuid.New()
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	seeded := seedChallenge(store, communityID, 500, 0, now, 20)

	userA := uuid.New()
	userB := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		userID := userA
		if i%2 == 1 {
			userID = userB
		}
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			if _, err := svc.Contribute(context.Background(), communityID, userID, 1, now); err != nil {
				t.Errorf("Contribute: %v", err)
			}
		}(userID)
	}
	wg.Wait()

	c := store.get(seeded.ID)
	if c.CurrentCo2Kg != 10 {
		t.Errorf("expected all contributions summed to 10, got %v", c.CurrentCo2Kg)
	}
	if c.ParticipantCount != 2 {
		t.Errorf("expected 2 distinct participants, got %d", c.ParticipantCount)
	}
}
