package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"benefitmetrics-backend/internal/mailer"
	"benefitmetrics-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	loginTokenTTL    = 15 * time.Minute
	sessionTTL       = 30 * 24 * time.Hour
	loginRateWindow  = 10 * time.Minute
	loginRateLimit   = 5
	appDeepLinkLogin = "benefitmetrics://login"
)

// TokenStore is the part of the auth token repository the HTTP layer needs.
type TokenStore interface {
	Create(ctx context.Context, token *models.AuthToken) error
	FindByToken(ctx context.Context, token string) (*models.AuthToken, error)
	MarkUsed(ctx context.Context, token string) (bool, error)
	CountRecentByEmail(ctx context.Context, email string, duration time.Duration) (int64, error)
}

type AuthHandler struct {
	tokens    TokenStore
	users     UserStore
	mailer    mailer.Mailer
	jwtSecret string
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
}

func NewAuthHandler(tokens TokenStore, users UserStore, m mailer.Mailer, jwtSecret, baseURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		tokens:    tokens,
		users:     users,
		mailer:    m,
		jwtSecret: jwtSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
		now:       time.Now,
	}
}

// --- Request / Response types ---

type RequestLoginRequest struct {
	Email string `json:"email"`
}

type VerifyResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// --- POST /auth/request ---

func (h *AuthHandler) RequestLogin(w http.ResponseWriter, r *http.Request) {
	var req RequestLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	count, err := h.tokens.CountRecentByEmail(r.Context(), email, loginRateWindow)
	if err != nil {
		h.logger.Error("Error checking rate limit", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if count >= loginRateLimit {
		writeError(w, http.StatusTooManyRequests, "too many login requests, please try again later")
		return
	}

	tokenValue := uuid.New().String()
	authToken := &models.AuthToken{
		Email:     email,
		Token:     tokenValue,
		ExpiresAt: h.now().Add(loginTokenTTL),
	}
	if err := h.tokens.Create(r.Context(), authToken); err != nil {
		h.logger.Error("Error creating auth token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create login token")
		return
	}

	// Mail clients strip custom URL schemes, so the email links to our
	// redirect page instead of the deep link.
	link := fmt.Sprintf("%s/auth/redirect?token=%s", h.requestBaseURL(r), url.QueryEscape(tokenValue))

	if err := h.mailer.SendLoginLink(r.Context(), email, link); err != nil {
		h.logger.Warn("Error sending login email", zap.Error(err))
		// the token exists; delivery is best-effort
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "login link generated (email delivery may be delayed)",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "login link sent to your email",
	})
}

func (h *AuthHandler) requestBaseURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// --- GET /auth/verify ---

func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	tokenValue := r.URL.Query().Get("token")
	if tokenValue == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	authToken, err := h.tokens.FindByToken(r.Context(), tokenValue)
	if err != nil {
		h.logger.Error("Error finding token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if authToken == nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if authToken.IsExpiredAt(h.now()) {
		writeError(w, http.StatusUnauthorized, "token has expired")
		return
	}
	if authToken.IsUsed {
		writeError(w, http.StatusUnauthorized, "token has already been used")
		return
	}

	marked, err := h.tokens.MarkUsed(r.Context(), tokenValue)
	if err != nil {
		h.logger.Error("Error marking token as used", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !marked {
		writeError(w, http.StatusUnauthorized, "token has already been used")
		return
	}

	user, err := h.users.FindOrCreate(r.Context(), authToken.Email)
	if err != nil {
		h.logger.Error("Error finding/creating user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	tokenString, err := h.issueSession(user)
	if err != nil {
		h.logger.Error("Error signing JWT", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{
		Token: tokenString,
		User:  user,
	})
}

func (h *AuthHandler) issueSession(user *models.User) (string, error) {
	now := h.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID.Hex(),
		"email":   user.Email,
		"exp":     now.Add(sessionTTL).Unix(),
		"iat":     now.Unix(),
	})
	return token.SignedString([]byte(h.jwtSecret))
}

// --- GET /auth/redirect ---
// Opened from the email: a small page that bounces the phone to the app's
// deep link, with a button as fallback.

func (h *AuthHandler) RedirectToApp(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	deepLink := appDeepLinkLogin + "?token=" + url.QueryEscape(token)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := redirectPage.Execute(w, template.URL(deepLink)); err != nil {
		h.logger.Warn("Error rendering redirect page", zap.Error(err))
	}
}

var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>Opening BenefitMetrics...</title>
	<style>
		body { font-family: -apple-system, sans-serif; display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0; background: #f0fdfa; }
		.card { text-align: center; padding: 40px; background: white; border-radius: 16px; box-shadow: 0 4px 24px rgba(0,0,0,0.1); max-width: 400px; }
		h1 { color: #1f2937; font-size: 24px; }
		p { color: #4b5563; font-size: 16px; line-height: 1.5; }
		.btn { display: inline-block; background: #0f766e; color: white; padding: 14px 32px; border-radius: 10px; text-decoration: none; font-weight: 600; font-size: 16px; margin-top: 16px; }
	</style>
</head>
<body>
	<div class="card">
		<h1>Opening BenefitMetrics...</h1>
		<p>You should be redirected to the app automatically.</p>
		<p>If nothing happens, tap the button below:</p>
		<a href="{{.}}" class="btn">Open BenefitMetrics</a>
	</div>
	<script>
		window.location.href = "{{.}}";
	</script>
</body>
</html>`))
