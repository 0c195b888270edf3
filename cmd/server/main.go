package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/instaverse/backend/internal/auth"
	"github.com/anonto42/instaverse/backend/internal/handlers"
	"github.com/anonto42/instaverse/backend/internal/media"
	"github.com/anonto42/instaverse/backend/internal/router"
	"github.com/anonto42/instaverse/backend/internal/session"
	"github.com/anonto42/instaverse/backend/pkg/config"
	"github.com/anonto42/instaverse/backend/pkg/firebase"
	"github.com/anonto42/instaverse/backend/pkg/logger"
	"github.com/anonto42/instaverse/backend/validators"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to initialize databases", zap.Error(err))
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	repos, err := router.NewRepositories(ctx, db.Docs, db.Ledger, zl)
	if err != nil {
		zl.Fatal("Failed to prepare repositories", zap.Error(err))
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, cfg, zl)

	// Firebase is optional: it backs media storage and firebase login
	var store media.Store
	var verifier handlers.IDTokenVerifier
	if cfg.FirebaseCredentialsPath != "" {
		firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseBucket)
		if err != nil {
			zl.Fatal("Failed to initialize Firebase", zap.Error(err))
		}
		store = media.NewFirebaseStore(firebaseApp.Bucket)
		verifier = firebaseApp.AuthClient
		zl.Info("Firebase storage and login enabled.", zap.String("bucket", cfg.FirebaseBucket))
	} else {
		store = media.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL)
		e.Static("/uploads", cfg.MediaDir)
		zl.Info("Serving media from local directory.", zap.String("dir", cfg.MediaDir))
	}

	reconciler := router.SetupRoutes(e, router.Deps{
		Repos:        repos,
		Media:        store,
		Tokens:       auth.NewTokenIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Sessions:     session.NewRedisStore(db.Redis),
		FirebaseAuth: verifier,
		SecureCookie: cfg.IsProduction(),
		PageSize:     cfg.FeedPageSize,
		Log:          zl,
	})
	go reconciler.Start(ctx, cfg.ReconcileInterval)

	// Start server
	go func() {
		zl.Info("Starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("Graceful shutdown failed", zap.Error(err))
	}
}
