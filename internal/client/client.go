// Package client talks to the BenefitMetrics onboarding service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"benefitmetrics-backend/internal/onboarding"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("onboarding service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("onboarding service returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserIDFromToken reads the user_id claim without verifying the signature;
// the service verifies it on every request.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", errors.New("token has no user_id claim")
	}
	return userID, nil
}

func (c *Client) FetchSteps(ctx context.Context, role onboarding.Role) ([]onboarding.StepDescriptor, error) {
	var out struct {
		Steps []onboarding.StepDescriptor `json:"steps"`
	}
	if err := c.do(ctx, http.MethodGet, "/onboarding/steps/"+url.PathEscape(string(role)), nil, &out); err != nil {
		return nil, err
	}
	return out.Steps, nil
}

func (c *Client) FetchProgress(ctx context.Context, userID string) (*onboarding.ProgressEnvelope, error) {
	var env onboarding.ProgressEnvelope
	if err := c.do(ctx, http.MethodGet, progressPath(userID), nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) SaveProgress(ctx context.Context, userID string, st *onboarding.ProgressState) error {
	body := onboarding.SaveProgressRequest{
		Role:          st.Role,
		Steps:         st.Steps,
		CurrentStepID: st.CurrentStepID,
		Progress:      st.Progress,
		IsComplete:    st.IsComplete,
	}
	return c.do(ctx, http.MethodPut, progressPath(userID), body, nil)
}

func (c *Client) RecordStep(ctx context.Context, userID string, req onboarding.StepRequest) (*onboarding.ProgressEnvelope, error) {
	var env onboarding.ProgressEnvelope
	if err := c.do(ctx, http.MethodPost, progressPath(userID)+"/step", req, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) MarkComplete(ctx context.Context, userID string, req onboarding.CompleteRequest) error {
	return c.do(ctx, http.MethodPost, progressPath(userID)+"/complete", req, nil)
}

func (c *Client) ResetProgress(ctx context.Context, userID string, role onboarding.Role) error {
	path := progressPath(userID)
	if role != "" {
		path += "?role=" + url.QueryEscape(string(role))
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// UpdateOnboardingStatus sets the user-level onboarding flag.
func (c *Client) UpdateOnboardingStatus(ctx context.Context, completed bool) error {
	body := map[string]bool{"completed": completed}
	return c.do(ctx, http.MethodPatch, "/user/onboarding", body, nil)
}

func progressPath(userID string) string {
	return "/onboarding/progress/" + url.PathEscape(userID)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
