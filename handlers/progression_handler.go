package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"ecoQuestAPI/internal/user"
	"ecoQuestAPI/middleware"
	"ecoQuestAPI/services"
)

type ProgressionHandler struct {
	userService        *services.UserService
	progressionService *services.ProgressionService
}

func NewProgressionHandler(userService *services.UserService, progressionService *services.ProgressionService) *ProgressionHandler {
	return &ProgressionHandler{
		userService:        userService,
		progressionService: progressionService,
	}
}

// RecordAction ingests one completed eco action and runs the full fan-out:
// streak, points, milestones, community challenge, badges and the feed.
func (h *ProgressionHandler) RecordAction(w http.ResponseWriter, r *http.Request) {
	// The fan-out touches several tables, so this handler gets a longer
	// deadline than the read paths.
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	var req user.RecordActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("RecordAction Handler: Failed to decode request body: %v", err)
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Co2Saved < 0 {
		respondWithError(w, http.StatusBadRequest, "co2_saved must not be negative")
		return
	}
	if req.BasePoints <= 0 {
		respondWithError(w, http.StatusBadRequest, "base_points must be positive")
		return
	}

	result, err := h.progressionService.RecordAction(ctx, u.ID, req.Co2Saved, req.BasePoints)
	if err != nil {
		log.Printf("RecordAction Handler: Service error: %v", err)
		if errors.Is(err, services.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Progress not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to record action")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
