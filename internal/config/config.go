// Package config reads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Server configures cmd/server.
type Server struct {
	MongoURI     string
	DBName       string
	JWTSecret    string
	Port         string
	BaseURL      string
	ResendAPIKey string
	FromEmail    string
	LogLevel     string
}

// Client configures the onboard CLI.
type Client struct {
	APIURL    string
	Token     string
	CachePath string
	Role      string
	LogLevel  string
}

// LoadServer reads server settings. MONGODB_URI and JWT_SECRET are required.
func LoadServer() (*Server, error) {
	// .env is optional; in production env vars are set directly
	_ = godotenv.Load()

	cfg := &Server{
		MongoURI:     getEnv("MONGODB_URI", ""),
		DBName:       getEnv("DB_NAME", "benefitmetrics"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		Port:         getEnv("PORT", "8080"),
		BaseURL:      getEnv("BASE_URL", ""),
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromEmail:    getEnv("FROM_EMAIL", "BenefitMetrics <onboarding@benefitmetrics.app>"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

func LoadClient() *Client {
	_ = godotenv.Load()

	return &Client{
		APIURL:    getEnv("BENEFITMETRICS_API_URL", "http://localhost:8080"),
		Token:     getEnv("BENEFITMETRICS_TOKEN", ""),
		CachePath: getEnv("BENEFITMETRICS_CACHE", defaultCachePath()),
		Role:      getEnv("BENEFITMETRICS_ROLE", "employee"),
		LogLevel:  getEnv("LOG_LEVEL", "warn"),
	}
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "benefitmetrics.db"
	}
	return filepath.Join(dir, "benefitmetrics.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
