package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"benefitmetrics-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]*models.AuthToken
	recent int64
}

func (m *memTokens) Create(ctx context.Context, token *models.AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = make(map[string]*models.AuthToken)
	}
	cp := *token
	m.tokens[token.Token] = &cp
	return nil
}

func (m *memTokens) FindByToken(ctx context.Context, token string) (*models.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) MarkUsed(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || t.IsUsed {
		return false, nil
	}
	t.IsUsed = true
	return true, nil
}

func (m *memTokens) CountRecentByEmail(ctx context.Context, email string, d time.Duration) (int64, error) {
	return m.recent, nil
}

type captureMailer struct {
	to, link string
}

func (c *captureMailer) SendLoginLink(ctx context.Context, to, link string) error {
	c.to, c.link = to, link
	return nil
}

func newTestAuthHandler(t *testing.T, tokens *memTokens, users UserStore) (*AuthHandler, *captureMailer) {
	m := &captureMailer{}
	return NewAuthHandler(tokens, users, m, testSecret, "https://api.benefitmetrics.test/", zaptest.NewLogger(t)), m
}

func TestMagicLinkLogin(t *testing.T) {
	id, _ := bson.ObjectIDFromHex(aliceID)
	users := new(mockUsers)
	users.On("FindOrCreate", mock.Anything, "ada@example.com").Return(&models.User{ID: id, Email: "ada@example.com"}, nil)

	tokens := &memTokens{}
	h, mail := newTestAuthHandler(t, tokens, users)

	rec := httptest.NewRecorder()
	h.RequestLogin(rec, httptest.NewRequest(http.MethodPost, "/auth/request", strings.NewReader(`{"email":"  Ada@Example.com "}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", mail.to)

	link, err := url.Parse(mail.link)
	require.NoError(t, err)
	assert.Equal(t, "api.benefitmetrics.test", link.Host)
	assert.Equal(t, "/auth/redirect", link.Path)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	rec = httptest.NewRecorder()
	h.VerifyToken(rec, httptest.NewRequest(http.MethodGet, "/auth/verify?token="+token, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	parsed, err := jwt.Parse(resp.Token, func(*jwt.Token) (interface{}, error) { return []byte(testSecret), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, aliceID, claims["user_id"])

	// single use
	rec = httptest.NewRecorder()
	h.VerifyToken(rec, httptest.NewRequest(http.MethodGet, "/auth/verify?token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyExpiredToken(t *testing.T) {
	tokens := &memTokens{}
	require.NoError(t, tokens.Create(context.Background(), &models.AuthToken{
		Email:     "ada@example.com",
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))
	h, _ := newTestAuthHandler(t, tokens, new(mockUsers))

	rec := httptest.NewRecorder()
	h.VerifyToken(rec, httptest.NewRequest(http.MethodGet, "/auth/verify?token=stale", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")

	rec = httptest.NewRecorder()
	h.VerifyToken(rec, httptest.NewRequest(http.MethodGet, "/auth/verify?token=unknown", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestLoginValidation(t *testing.T) {
	h, _ := newTestAuthHandler(t, &memTokens{}, new(mockUsers))

	rec := httptest.NewRecorder()
	h.RequestLogin(rec, httptest.NewRequest(http.MethodPost, "/auth/request", strings.NewReader(`{"email":" "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	limited, _ := newTestAuthHandler(t, &memTokens{recent: loginRateLimit}, new(mockUsers))
	rec = httptest.NewRecorder()
	limited.RequestLogin(rec, httptest.NewRequest(http.MethodPost, "/auth/request", strings.NewReader(`{"email":"ada@example.com"}`)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRedirectToApp(t *testing.T) {
	h, _ := newTestAuthHandler(t, &memTokens{}, new(mockUsers))

	rec := httptest.NewRecorder()
	h.RedirectToApp(rec, httptest.NewRequest(http.MethodGet, "/auth/redirect?token=abc-123", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "benefitmetrics://login?token=abc-123")

	rec = httptest.NewRecorder()
	h.RedirectToApp(rec, httptest.NewRequest(http.MethodGet, "/auth/redirect", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
