package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoQuestAPI/internal/activity"
	"ecoQuestAPI/internal/badge"
	"ecoQuestAPI/internal/metrics"
	"ecoQuestAPI/internal/milestone"
	"ecoQuestAPI/internal/user"
)

// UserService owns the user identity rows and the progress-adjacent reads
// the profile and community screens need.
type UserService struct {
	db         *pgxpool.Pool
	store      UserStore
	milestones *MilestoneService
	challenges *ChallengeService
	feed       *ActivityService
}

func NewUserService(db *pgxpool.Pool, milestones *MilestoneService, challenges *ChallengeService, feed *ActivityService) *UserService {
	return &UserService{
		db:         db,
		store:      &pgUserStore{db: db},
		milestones: milestones,
		challenges: challenges,
		feed:       feed,
	}
}

// Store exposes the progress store for the coordinator wiring in main.
func (s *UserService) Store() UserStore {
	return s.store
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `
	SELECT id, clerk_id, email, username, image_url, community_id, created_at, updated_at
	FROM users
	WHERE clerk_id = $1
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.ImageURL,
		&u.CommunityID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// CreateUser provisions the identity row and its zeroed progress aggregate.
// Both inserts are conditional so webhook retries are idempotent.
func (s *UserService) CreateUser(ctx context.Context, clerkID, email, username, imageURL string) (*user.User, error) {
	u := &user.User{
		ID:        uuid.New(),
		ClerkID:   clerkID,
		Email:     email,
		Username:  username,
		ImageURL:  imageURL,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	query := `
	INSERT INTO users (id, clerk_id, email, username, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (clerk_id) DO NOTHING
	`

	result, err := s.db.Exec(ctx, query, u.ID, u.ClerkID, u.Email, u.Username, u.ImageURL, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return s.GetUserByClerkID(ctx, clerkID)
	}

	_, err = s.db.Exec(ctx, `
	INSERT INTO user_progress (user_id)
	VALUES ($1)
	ON CONFLICT (user_id) DO NOTHING
	`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create user progress: %w", err)
	}

	return u, nil
}

// GetProfile bundles the progress row with earned badges and the goals for
// the current week and month.
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*user.ProfileResponse, error) {
	progress, err := s.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	badges, err := s.store.ListBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	milestones, err := s.milestones.ListCurrent(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	return &user.ProfileResponse{
		Progress:   progress,
		Badges:     badges,
		Milestones: milestones,
	}, nil
}

func (s *UserService) GetProgress(ctx context.Context, userID uuid.UUID) (*user.Progress, error) {
	return s.store.GetProgress(ctx, userID)
}

func (s *UserService) GetBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error) {
	badges, err := s.store.ListBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	if badges == nil {
		badges = []*badge.UserBadge{}
	}
	return badges, nil
}

func (s *UserService) GetMilestones(ctx context.Context, userID uuid.UUID) ([]*milestone.Milestone, error) {
	return s.milestones.ListCurrent(ctx, userID, time.Now().UTC())
}

func (s *UserService) GetCommunity(ctx context.Context, communityID uuid.UUID) (*user.Community, error) {
	query := `
	SELECT id, name, description, member_count, created_at
	FROM communities
	WHERE id = $1
	`

	c := &user.Community{}
	err := s.db.QueryRow(ctx, query, communityID).Scan(&c.ID, &c.Name, &c.Description, &c.MemberCount, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get community: %w", err)
	}

	return c, nil
}

// JoinCommunity attaches the user to a community: membership, the
// community_join badge, a feed entry and an active challenge to race.
func (s *UserService) JoinCommunity(ctx context.Context, userID, communityID uuid.UUID) error {
	if _, err := s.GetCommunity(ctx, communityID); err != nil {
		return err
	}

	if err := s.store.SetCommunity(ctx, userID, communityID); err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `UPDATE communities SET member_count = member_count + 1 WHERE id = $1`, communityID); err != nil {
		return fmt.Errorf("failed to bump member count: %w", err)
	}

	now := time.Now().UTC()

	awarded, err := s.store.AwardBadge(ctx, userID, "community_member", now)
	if err != nil {
		log.Printf("JoinCommunity: badge for user %s: %v", userID, err)
	} else if awarded {
		metrics.BadgesAwardedTotal.WithLabelValues("community_member").Inc()
	}

	s.feed.Emit(ctx, communityID, &userID, activity.TypeMemberJoined, map[string]any{})

	if _, err := s.challenges.EnsureActive(ctx, communityID, now); err != nil {
		log.Printf("JoinCommunity: ensure challenge for community %s: %v", communityID, err)
	}

	return nil
}

// RegisterDevice stores a push token for the user. Re-registering the same
// token moves it to the new owner.
func (s *UserService) RegisterDevice(ctx context.Context, userID uuid.UUID, token, platform string) error {
	query := `
	INSERT INTO device_tokens (token, user_id, platform, created_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (token) DO UPDATE SET user_id = $2, platform = $3
	`

	if _, err := s.db.Exec(ctx, query, token, userID, platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}
