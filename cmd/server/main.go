package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"benefitmetrics-backend/internal/config"
	"benefitmetrics-backend/internal/database"
	"benefitmetrics-backend/internal/handlers"
	"benefitmetrics-backend/internal/logging"
	"benefitmetrics-backend/internal/mailer"
	customMiddleware "benefitmetrics-backend/internal/middleware"
	"benefitmetrics-backend/internal/repository"
	"benefitmetrics-backend/internal/slack"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := database.Connect(ctx, cfg.MongoURI, cfg.DBName, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewAuthTokenRepo(db)
	progressRepo := repository.NewProgressRepo(db)

	indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := userRepo.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("Failed to create user indexes", zap.Error(err))
	}
	if err := tokenRepo.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("Failed to create token indexes", zap.Error(err))
	}
	if err := progressRepo.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("Failed to create onboarding progress indexes", zap.Error(err))
	}

	notifier := slack.NewLogNotifier(logger)
	m := mailer.NewResendMailer(cfg.ResendAPIKey, cfg.FromEmail, logger)

	h := &serverHandlers{
		auth:       handlers.NewAuthHandler(tokenRepo, userRepo, m, cfg.JWTSecret, cfg.BaseURL, logger),
		user:       handlers.NewUserHandler(userRepo, logger),
		onboarding: handlers.NewOnboardingHandler(progressRepo, notifier, logger),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(h, cfg.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("BenefitMetrics backend starting", zap.String("port", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

type serverHandlers struct {
	auth       *handlers.AuthHandler
	user       *handlers.UserHandler
	onboarding *handlers.OnboardingHandler
}

func newRouter(h *serverHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"benefitmetrics-backend"}`))
	})

	// Public routes (no auth required)
	r.Post("/auth/request", h.auth.RequestLogin)
	r.Get("/auth/verify", h.auth.VerifyToken)
	r.Get("/auth/redirect", h.auth.RedirectToApp)
	r.Get("/onboarding/steps/{role}", h.onboarding.GetSteps)

	// Protected routes (JWT required)
	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.JWTAuth(jwtSecret))

		r.Get("/user/status", h.user.GetStatus)
		r.Patch("/user/onboarding", h.user.UpdateOnboarding)

		r.Route("/onboarding/progress/{userId}", func(r chi.Router) {
			r.Get("/", h.onboarding.GetProgress)
			r.Put("/", h.onboarding.SaveProgress)
			r.Delete("/", h.onboarding.Reset)
			r.Post("/step", h.onboarding.RecordStep)
			r.Post("/complete", h.onboarding.Complete)
		})
	})

	return r
}
