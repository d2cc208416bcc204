package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"benefitmetrics-backend/internal/middleware"
	"benefitmetrics-backend/internal/models"
	"benefitmetrics-backend/internal/onboarding"
	"benefitmetrics-backend/internal/slack"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProgressStore is the part of the progress repository the HTTP layer needs.
type ProgressStore interface {
	FindByUser(ctx context.Context, userID string) ([]models.OnboardingProgress, error)
	Find(ctx context.Context, userID string, role onboarding.Role) (*models.OnboardingProgress, error)
	Upsert(ctx context.Context, p *models.OnboardingProgress) error
	MarkCompleted(ctx context.Context, userID string, role onboarding.Role, at time.Time) (bool, error)
	Delete(ctx context.Context, userID string, role onboarding.Role) (int64, error)
}

type OnboardingHandler struct {
	progress ProgressStore
	notifier slack.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewOnboardingHandler(progress ProgressStore, notifier slack.Notifier, logger *zap.Logger) *OnboardingHandler {
	return &OnboardingHandler{
		progress: progress,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// --- GET /onboarding/steps/{role} ---

func (h *OnboardingHandler) GetSteps(w http.ResponseWriter, r *http.Request) {
	role, err := onboarding.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"role":    role,
		"steps":   onboarding.StepsForRole(role),
	})
}

// --- GET /onboarding/progress/{userId} ---

func (h *OnboardingHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	docs, err := h.progress.FindByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error loading onboarding progress", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	env := onboarding.ProgressEnvelope{Success: true}
	for i := range docs {
		role, err := onboarding.ParseRole(string(docs[i].Role))
		if err != nil {
			continue
		}
		env.Put(onboarding.Normalize(docs[i].State(), role))
	}
	if env.EmployeeSteps == nil && env.EmployerSteps == nil {
		writeJSON(w, http.StatusNotFound, onboarding.ProgressEnvelope{Error: "no onboarding progress"})
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// --- PUT /onboarding/progress/{userId} ---
// The client's derived fields are not trusted; they are recomputed from the
// step statuses.

func (h *OnboardingHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req onboarding.SaveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := onboarding.ParseRole(string(req.Role))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := onboarding.Normalize(&onboarding.ProgressState{
		Role:          role,
		Steps:         req.Steps,
		CurrentStepID: req.CurrentStepID,
		Progress:      req.Progress,
		IsComplete:    req.IsComplete,
	}, role)

	doc := &models.OnboardingProgress{UserID: userID}
	doc.SetState(st)
	if err := h.progress.Upsert(r.Context(), doc); err != nil {
		h.logger.Error("Error saving onboarding progress", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save onboarding progress")
		return
	}

	env := onboarding.ProgressEnvelope{Success: true}
	env.Put(st)
	writeJSON(w, http.StatusOK, env)
}

// --- POST /onboarding/progress/{userId}/step ---

func (h *OnboardingHandler) RecordStep(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req onboarding.StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StepID == "" {
		writeError(w, http.StatusBadRequest, "stepId is required")
		return
	}
	role, err := roleOrDefault(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.progress.Find(r.Context(), userID, role)
	if err != nil {
		h.logger.Error("Error loading onboarding progress", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if doc == nil {
		doc = &models.OnboardingProgress{UserID: userID, Role: role}
	}

	st := onboarding.Normalize(doc.State(), role)
	i := onboarding.FindStep(st.Steps, req.StepID)
	if i < 0 {
		writeError(w, http.StatusBadRequest, onboarding.ErrUnknownStep.Error())
		return
	}

	wasComplete := st.IsComplete
	if req.Skipped {
		if err := st.Steps[i].Skip(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	} else {
		st.Steps[i].Complete()
	}
	onboarding.Recompute(st, wasComplete)

	doc.SetState(st)
	if req.StepData != nil {
		if doc.StepData == nil {
			doc.StepData = make(map[string]map[string]any)
		}
		doc.StepData[req.StepID] = req.StepData
	}
	if err := h.progress.Upsert(r.Context(), doc); err != nil {
		h.logger.Error("Error recording onboarding step", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to record onboarding step")
		return
	}

	h.logger.Debug("Onboarding step recorded",
		zap.String("user_id", userID),
		zap.String("role", string(role)),
		zap.String("step", req.StepID),
		zap.Bool("skipped", req.Skipped))

	env := onboarding.ProgressEnvelope{Success: true}
	env.Put(st)
	writeJSON(w, http.StatusOK, env)
}

// --- POST /onboarding/progress/{userId}/complete ---

func (h *OnboardingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req onboarding.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := roleOrDefault(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	at := req.CompletedAt
	if at.IsZero() {
		at = h.now()
	}

	found, err := h.progress.MarkCompleted(r.Context(), userID, role, at)
	if err != nil {
		h.logger.Error("Error marking onboarding complete", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no onboarding progress")
		return
	}

	// Notify in the background so the app is not held up by the channel.
	go func() {
		message := slack.FormatCompletion(userID, string(role), at)
		if err := h.notifier.Publish(context.Background(), message); err != nil {
			h.logger.Warn("Error publishing to Slack", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// --- DELETE /onboarding/progress/{userId}?role= ---

func (h *OnboardingHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var role onboarding.Role
	if q := r.URL.Query().Get("role"); q != "" {
		parsed, err := onboarding.ParseRole(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		role = parsed
	}

	deleted, err := h.progress.Delete(r.Context(), userID, role)
	if err != nil {
		h.logger.Error("Error resetting onboarding progress", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to reset onboarding progress")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"deleted": deleted,
	})
}

// authorize checks that the path user is the authenticated user.
func (h *OnboardingHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	authUser := middleware.GetUserID(r.Context())
	if authUser == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	if chi.URLParam(r, "userId") != authUser {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return authUser, true
}

func roleOrDefault(role onboarding.Role) (onboarding.Role, error) {
	if role == "" {
		return onboarding.RoleEmployee, nil
	}
	return onboarding.ParseRole(string(role))
}
