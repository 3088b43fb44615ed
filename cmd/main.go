package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jurypanel/jurypanel/config"
	"github.com/jurypanel/jurypanel/db"
	"github.com/jurypanel/jurypanel/docstore"
	"github.com/jurypanel/jurypanel/handlers"
	"github.com/jurypanel/jurypanel/live"
	"github.com/jurypanel/jurypanel/localstore"
	"github.com/jurypanel/jurypanel/models"
	"github.com/jurypanel/jurypanel/repositories"
	api "github.com/jurypanel/jurypanel/routes"
	"github.com/jurypanel/jurypanel/services"
	"github.com/jurypanel/jurypanel/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	criteria, err := loadCriteria(cfg.CriteriaJSON)
	if err != nil {
		logger.Error("invalid criteria configuration", slog.Any("error", err))
		os.Exit(1)
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	store := docstore.NewPostgresStore(dbConn, cfg.DatabaseURL, logger)
	if err := store.CreateSchema(context.Background()); err != nil {
		logger.Error("failed to create document schema", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close document store", slog.Any("error", err))
		}
	}()

	local, err := localstore.OpenSQLite(cfg.SessionDBPath)
	if err != nil {
		logger.Error("failed to open session store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := local.Close(); err != nil {
			logger.Error("failed to close session store", slog.Any("error", err))
		}
	}()
	logger.Info("session store opened", slog.String("path", cfg.SessionDBPath))

	var objects storage.ObjectStorage
	if cfg.Backup != nil {
		objects, err = storage.NewS3Storage(*cfg.Backup)
		if err != nil {
			logger.Error("failed to initialize backup storage", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("backup storage initialized", slog.String("bucket", cfg.Backup.BucketName))
	}

	wsHub := live.NewHub(logger)
	go wsHub.Run()

	userRepo := repositories.NewUserRepository(store)
	contestRepo := repositories.NewContestRepository(store)
	scoreRepo := repositories.NewScoreRepository(store)

	authService, err := services.NewAuthService(userRepo, local, cfg.AdminPassphrase, logger)
	if err != nil {
		logger.Error("failed to initialize auth service", slog.Any("error", err))
		os.Exit(1)
	}
	sessionService := services.NewSessionService(local, contestRepo, userRepo, authService, logger)
	contestService := services.NewContestService(contestRepo, authService, wsHub, logger)
	scoreService := services.NewScoreService(scoreRepo, contestRepo, criteria, authService, wsHub, local, logger)
	aggregationService := services.NewAggregationService(criteria)
	adminService := services.NewAdminService(userRepo, contestRepo, scoreRepo, sessionService, authService, local, objects, logger)
	logger.Info("services initialized")

	if cfg.SeedFile != "" {
		if err := contestService.SeedFromFile(context.Background(), cfg.SeedFile); err != nil {
			logger.Error("failed to seed contests", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Voting without contests makes no sense; refuse to start.
	contests, err := contestRepo.List(context.Background())
	if err != nil {
		logger.Error("failed to list contests", slog.Any("error", err))
		os.Exit(1)
	}
	if len(contests) == 0 {
		logger.Error("no contests configured; set SEED_FILE or seed the store first")
		os.Exit(1)
	}
	logger.Info("contests loaded", slog.Int("count", len(contests)))

	jwtSecret := []byte(cfg.JWTSecretKey)
	nowUnix := func() int64 { return time.Now().Unix() }

	authHandler := handlers.NewAuthHandler(authService, sessionService, jwtSecret, nowUnix)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	contestHandler := handlers.NewContestHandler(contestService)
	scoreHandler := handlers.NewScoreHandler(scoreService)
	resultsHandler := handlers.NewResultsHandler(scoreService, aggregationService, criteria)
	adminHandler := handlers.NewAdminHandler(adminService, scoreService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, contestService, logger)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		jwtSecret,
		authHandler,
		sessionHandler,
		contestHandler,
		scoreHandler,
		resultsHandler,
		adminHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

// loadCriteria returns the built-in criteria set or the JSON override.
// An invalid set is a startup failure: weights must sum to one.
func loadCriteria(criteriaJSON string) (models.CriteriaSet, error) {
	criteria := models.DefaultCriteria
	if criteriaJSON != "" {
		var override models.CriteriaSet
		if err := json.Unmarshal([]byte(criteriaJSON), &override); err != nil {
			return nil, fmt.Errorf("failed to decode CRITERIA_JSON: %w", err)
		}
		criteria = override
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	return criteria, nil
}
