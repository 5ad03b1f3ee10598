package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/tilinna/clock"
	"gorm.io/gorm"

	"bioboost/internal/attempt"
	"bioboost/internal/auth"
	"bioboost/internal/config"
	"bioboost/internal/logging"
	"bioboost/internal/models"
	"bioboost/internal/progress"
	"bioboost/internal/quiz"
	"bioboost/pkg/cache"
	"bioboost/pkg/database"
	"bioboost/pkg/websocket"
)

func main() {
	logger := logging.Setup("bioboost")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := openDB(cfg.DB)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.Migrate(db, models.AllModels()...); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := cache.NewRedisClient(cfg.RedisAddr)
	defer redisClient.Close()
	quizCache := cache.NewRedisCache(redisClient, cfg.QuizCacheTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	clk := clock.Realtime()

	// Initialize services
	authService := auth.NewService(auth.NewRepository(db), cfg.JWTSecret, cfg.SessionTTL, clk, hub, logger)
	hub.SetAuthorizer(auth.NewFeedAuthorizer(authService))
	quizService := quiz.NewService(quiz.NewRepository(db), quizCache, hub, logger)
	progressService := progress.NewService(progress.NewRedisStore(redisClient), logger)

	policy := attempt.DefaultPolicy()
	policy.FailClosed = cfg.EligibilityFailClosed
	engine := attempt.NewEngine(attempt.NewRepository(db), quizService, progressService, hub, clk, logger,
		attempt.WithPolicy(policy))

	// Initialize handlers
	authHandler := auth.NewHandler(authService, hub, logger)
	quizHandler := quiz.NewHandler(quizService, logger)
	attemptHandler := attempt.NewHandler(engine, logger)
	progressHandler := progress.NewHandler(progressService)

	router := mux.NewRouter()

	// WebSocket endpoints authenticate through the token query parameter
	router.HandleFunc("/ws/session", authHandler.SessionFeed)
	router.HandleFunc("/ws/{table}/{id}", hub.HandleWebSocket)

	public := router.PathPrefix("/api").Subrouter()
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(auth.JWTMiddleware(authService))
	teacher := router.PathPrefix("/api").Subrouter()
	teacher.Use(auth.JWTMiddleware(authService), auth.RequireRole(models.RoleTeacher))

	authHandler.RegisterRoutes(public, protected)
	quizHandler.RegisterRoutes(protected, teacher)
	attemptHandler.RegisterRoutes(protected)
	progressHandler.Register(protected)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := corsMiddleware.Handler(logging.Recovery(logger)(logging.RequestLogger(logger)(router)))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("server shutdown gracefully")
}

func openDB(cfg config.DBConfig) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		return database.NewSQLiteDB(cfg.SQLitePath)
	}
	return database.NewPostgresDB(&database.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		DBName:   cfg.Name,
	})
}
