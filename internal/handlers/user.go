package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"benefitmetrics-backend/internal/middleware"
	"benefitmetrics-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// UserStore is the part of the user repository the HTTP layer needs.
type UserStore interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	FindOrCreate(ctx context.Context, email string) (*models.User, error)
	UpdateOnboarding(ctx context.Context, id bson.ObjectID, completed bool) (bool, error)
}

type UserHandler struct {
	users  UserStore
	logger *zap.Logger
}

func NewUserHandler(users UserStore, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

type UpdateOnboardingRequest struct {
	Completed *bool `json:"completed"`
}

// --- GET /user/status ---

func (h *UserHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error finding user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"onboarding_completed": user.OnboardingCompleted,
	})
}

// --- PATCH /user/onboarding ---
// An empty body marks onboarding completed.

func (h *UserHandler) UpdateOnboarding(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var req UpdateOnboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}

	found, err := h.users.UpdateOnboarding(r.Context(), userID, completed)
	if err != nil {
		h.logger.Error("Error updating onboarding", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update onboarding status")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":              "onboarding status updated",
		"onboarding_completed": completed,
	})
}

func requestUserID(w http.ResponseWriter, r *http.Request) (bson.ObjectID, bool) {
	userIDHex := middleware.GetUserID(r.Context())
	if userIDHex == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return bson.ObjectID{}, false
	}
	userID, err := bson.ObjectIDFromHex(userIDHex)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return bson.ObjectID{}, false
	}
	return userID, true
}
