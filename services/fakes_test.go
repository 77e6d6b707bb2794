package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ecoQuestAPI/internal/activity"
	"ecoQuestAPI/internal/badge"
	"ecoQuestAPI/internal/challenge"
	"ecoQuestAPI/internal/milestone"
	"ecoQuestAPI/internal/progression"
	"ecoQuestAPI/internal/user"
)

// In-memory stores used across the service tests. They mirror the database
// contracts: counters move by atomic adds, uniqueness-guarded inserts are
// conditional, terminal rows refuse writes. All under one mutex so
// concurrent test goroutines exercise the same interleavings the real
// conditional writes allow.

type fakeUserStore struct {
	mu       sync.Mutex
	progress map[uuid.UUID]*user.Progress
	badges   map[uuid.UUID]map[string]time.Time
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		progress: make(map[uuid.UUID]*user.Progress),
		badges:   make(map[uuid.UUID]map[string]time.Time),
	}
}

func (f *fakeUserStore) seed(p *user.Progress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.progress[p.UserID] = &cp
}

func (f *fakeUserStore) GetProgress(ctx context.Context, userID uuid.UUID) (*user.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progress[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeUserStore) ApplyAction(ctx context.Context, userID uuid.UUID, points int, co2Saved float64, streak progression.StreakResult, activeDate time.Time) (*user.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progress[userID]
	if !ok {
		return nil, ErrNotFound
	}
	p.TotalPoints += points
	p.TotalCo2Saved += co2Saved
	p.MissionsCount++
	p.CurrentStreak = streak.CurrentStreak
	if streak.LongestStreak > p.LongestStreak {
		p.LongestStreak = streak.LongestStreak
	}
	d := activeDate
	p.LastActiveDate = &d
	cp := *p
	return &cp, nil
}

func (f *fakeUserStore) AddBonusPoints(ctx context.Context, userID uuid.UUID, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progress[userID]
	if !ok {
		return ErrNotFound
	}
	p.TotalPoints += points
	return nil
}

func (f *fakeUserStore) ListBadgeIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	earned := make(map[string]bool)
	for id := range f.badges[userID] {
		earned[id] = true
	}
	return earned, nil
}

func (f *fakeUserStore) ListBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*badge.UserBadge
	for id, at := range f.badges[userID] {
		out = append(out, &badge.UserBadge{BadgeID: id, EarnedAt: at})
	}
	return out, nil
}

func (f *fakeUserStore) AwardBadge(ctx context.Context, userID uuid.UUID, badgeID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.badges[userID] == nil {
		f.badges[userID] = make(map[string]time.Time)
	}
	if _, exists := f.badges[userID][badgeID]; exists {
		return false, nil
	}
	f.badges[userID][badgeID] = now
	return true, nil
}

func (f *fakeUserStore) SetCommunity(ctx context.Context, userID, communityID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progress[userID]
	if !ok {
		return ErrNotFound
	}
	id := communityID
	p.CommunityID = &id
	return nil
}

type fakeMilestoneStore struct {
	mu   sync.Mutex
	rows map[string]*milestone.Milestone
	byID map[uuid.UUID]*milestone.Milestone
}

func newFakeMilestoneStore() *fakeMilestoneStore {
	return &fakeMilestoneStore{
		rows: make(map[string]*milestone.Milestone),
		byID: make(map[uuid.UUID]*milestone.Milestone),
	}
}

func milestoneKey(userID uuid.UUID, typ milestone.Type, periodKey string) string {
	return fmt.Sprintf("%s|%s|%s", userID, typ, periodKey)
}

func (f *fakeMilestoneStore) InsertIfAbsent(ctx context.Context, m *milestone.Milestone) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := milestoneKey(m.UserID, m.Type, m.PeriodKey)
	if _, exists := f.rows[key]; exists {
		return false, nil
	}
	cp := *m
	f.rows[key] = &cp
	f.byID[cp.ID] = &cp
	return true, nil
}

func (f *fakeMilestoneStore) Get(ctx context.Context, userID uuid.UUID, typ milestone.Type, periodKey string) (*milestone.Milestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[milestoneKey(userID, typ, periodKey)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMilestoneStore) AddProgress(ctx context.Context, id uuid.UUID, delta float64, now time.Time) (*milestone.Milestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.Status != milestone.StatusActive || !m.PeriodEnd.After(now) {
		return nil, ErrInvalidState
	}
	m.CurrentValue += delta
	m.PercentComplete = milestone.PercentComplete(m.CurrentValue, m.TargetValue)
	cp := *m
	return &cp, nil
}

func (f *fakeMilestoneStore) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.Status != milestone.StatusActive {
		return false, nil
	}
	m.Status = milestone.StatusCompleted
	at := now
	m.CompletedAt = &at
	return true, nil
}

func (f *fakeMilestoneStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var swept int64
	for _, m := range f.byID {
		if m.Status == milestone.StatusActive && m.PeriodEnd.Before(now) {
			m.Status = milestone.StatusFailed
			swept++
		}
	}
	return swept, nil
}

func (f *fakeMilestoneStore) ListCurrent(ctx context.Context, userID uuid.UUID, now time.Time) ([]*milestone.Milestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*milestone.Milestone
	for _, m := range f.byID {
		if m.UserID == userID && !m.PeriodStart.After(now) && m.PeriodEnd.After(now) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeMilestoneStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeChallengeStore struct {
	mu           sync.Mutex
	challenges   map[uuid.UUID]*challenge.Challenge
	participants map[string]bool
}

func newFakeChallengeStore() *fakeChallengeStore {
	return &fakeChallengeStore{
		challenges:   make(map[uuid.UUID]*challenge.Challenge),
		participants: make(map[string]bool),
	}
}

func (f *fakeChallengeStore) seed(c *challenge.Challenge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.challenges[c.ID] = &cp
}

func (f *fakeChallengeStore) GetActive(ctx context.Context, communityID uuid.UUID, now time.Time) (*challenge.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *challenge.Challenge
	for _, c := range f.challenges {
		if c.CommunityID != communityID || c.Status != challenge.StatusActive {
			continue
		}
		if c.StartDate.After(now) || c.EndDate.Before(now) {
			continue
		}
		if best == nil || c.StartDate.Before(best.StartDate) {
			best = c
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeChallengeStore) Insert(ctx context.Context, c *challenge.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// One active row per community, like the partial unique index.
	for _, existing := range f.challenges {
		if existing.CommunityID == c.CommunityID && existing.Status == challenge.StatusActive {
			return nil
		}
	}
	cp := *c
	f.challenges[c.ID] = &cp
	return nil
}

func (f *fakeChallengeStore) AddCo2(ctx context.Context, id uuid.UUID, amount float64) (*challenge.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok || c.Status != challenge.StatusActive {
		return nil, ErrInvalidState
	}
	c.CurrentCo2Kg += amount
	cp := *c
	return &cp, nil
}

func (f *fakeChallengeStore) RegisterParticipant(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := challengeID.String() + "|" + userID.String()
	if f.participants[key] {
		return false, nil
	}
	f.participants[key] = true
	if c, ok := f.challenges[challengeID]; ok {
		c.ParticipantCount++
	}
	return true, nil
}

func (f *fakeChallengeStore) HasParticipant(ctx context.Context, challengeID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants[challengeID.String()+"|"+userID.String()], nil
}

func (f *fakeChallengeStore) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok || c.Status != challenge.StatusActive {
		return false, nil
	}
	c.Status = challenge.StatusCompleted
	at := now
	c.CompletedAt = &at
	return true, nil
}

func (f *fakeChallengeStore) SweepExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var communities []uuid.UUID
	for _, c := range f.challenges {
		if c.Status == challenge.StatusActive && c.EndDate.Before(now) {
			c.Status = challenge.StatusFailed
			communities = append(communities, c.CommunityID)
		}
	}
	return communities, nil
}

func (f *fakeChallengeStore) activeCount(communityID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.challenges {
		if c.CommunityID == communityID && c.Status == challenge.StatusActive {
			count++
		}
	}
	return count
}

func (f *fakeChallengeStore) get(id uuid.UUID) *challenge.Challenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

type fakeActivityStore struct {
	mu      sync.Mutex
	entries []*activity.Activity
}

func (f *fakeActivityStore) Insert(ctx context.Context, a *activity.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeActivityStore) ListByCommunity(ctx context.Context, communityID uuid.UUID, limit, offset int) ([]*activity.Activity, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*activity.Activity
	for _, a := range f.entries {
		if a.CommunityID == communityID {
			all = append(all, a)
		}
	}
	// Newest first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeActivityStore) byType(typ activity.Type) []*activity.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*activity.Activity
	for _, a := range f.entries {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}
