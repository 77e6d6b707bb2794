package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ecoQuestAPI/internal/challenge"
	"ecoQuestAPI/internal/user"
	"ecoQuestAPI/middleware"
	"ecoQuestAPI/services"
)

type CommunityHandler struct {
	userService      *services.UserService
	challengeService *services.ChallengeService
	activityService  *services.ActivityService
}

func NewCommunityHandler(userService *services.UserService, challengeService *services.ChallengeService, activityService *services.ActivityService) *CommunityHandler {
	return &CommunityHandler{
		userService:      userService,
		challengeService: challengeService,
		activityService:  activityService,
	}
}

// GetCommunity returns the caller's community, or 404 when they have none.
func (h *CommunityHandler) GetCommunity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, ok := h.resolveUser(ctx, w)
	if !ok {
		return
	}
	if u.CommunityID == nil {
		respondWithError(w, http.StatusNotFound, "User has not joined a community")
		return
	}

	community, err := h.userService.GetCommunity(ctx, *u.CommunityID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Community not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load community")
		return
	}

	respondWithJSON(w, http.StatusOK, community)
}

func (h *CommunityHandler) JoinCommunity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, ok := h.resolveUser(ctx, w)
	if !ok {
		return
	}

	var req user.JoinCommunityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	communityID, err := uuid.Parse(req.CommunityID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "community_id must be a valid UUID")
		return
	}

	if err := h.userService.JoinCommunity(ctx, u.ID, communityID); err != nil {
		log.Printf("JoinCommunity Handler: Service error: %v", err)
		if errors.Is(err, services.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Community not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to join community")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Community joined successfully"})
}

type challengeResponse struct {
	Challenge       *challenge.Challenge `json:"challenge"`
	Participating   bool                 `json:"participating"`
	ProgressPercent int                  `json:"progress_percent"`
}

// GetChallenge returns the running challenge of the caller's community with
// the caller's participation flag.
func (h *CommunityHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, ok := h.resolveUser(ctx, w)
	if !ok {
		return
	}
	if u.CommunityID == nil {
		respondWithError(w, http.StatusNotFound, "User has not joined a community")
		return
	}

	active, participating, err := h.challengeService.GetActive(ctx, *u.CommunityID, u.ID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "No active challenge")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load challenge")
		return
	}

	respondWithJSON(w, http.StatusOK, challengeResponse{
		Challenge:       active,
		Participating:   participating,
		ProgressPercent: active.ProgressPercent(),
	})
}

// GetFeed serves one page of the community activity feed, newest first.
func (h *CommunityHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, ok := h.resolveUser(ctx, w)
	if !ok {
		return
	}
	if u.CommunityID == nil {
		respondWithError(w, http.StatusNotFound, "User has not joined a community")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	feed, err := h.activityService.GetFeed(ctx, *u.CommunityID, page, pageSize)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load feed")
		return
	}

	respondWithJSON(w, http.StatusOK, feed)
}

func (h *CommunityHandler) resolveUser(ctx context.Context, w http.ResponseWriter) (*user.User, bool) {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return nil, false
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	return u, true
}
