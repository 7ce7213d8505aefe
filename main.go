package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/internal/audit"
	"github.com/healthpal/backend/internal/config"
	"github.com/healthpal/backend/internal/handler"
	"github.com/healthpal/backend/internal/middleware"
	"github.com/healthpal/backend/internal/repository"
	"github.com/healthpal/backend/internal/security"
	"github.com/healthpal/backend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize Zap logger
	var logger *zap.Logger
	if cfg.Server.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
	)

	// Initialize database connection pool with pgx
	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Test database connection
	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Successfully connected to database")

	// Initialize encryption for notes at rest
	encryptionKey, err := cfg.DecodeEncryptionKey()
	if err != nil {
		logger.Fatal("Failed to decode encryption key", zap.Error(err))
	}
	encryptor, err := security.NewEncryptor(encryptionKey)
	if err != nil {
		logger.Fatal("Failed to initialize encryptor", zap.Error(err))
	}

	// Initialize repositories
	medicationRepo := repository.NewMedicationRepository(pool, logger)
	adherenceRepo := repository.NewAdherenceRepository(pool, encryptor, logger)
	symptomRepo := repository.NewSymptomRepository(pool, encryptor, logger)
	preferencesRepo := repository.NewPreferencesRepository(pool, logger)

	// Initialize services
	clock := adherence.SystemClock{}
	medicationService := service.NewMedicationService(medicationRepo, logger)
	adherenceService := service.NewAdherenceService(medicationRepo, adherenceRepo, clock, logger)
	symptomService := service.NewSymptomService(symptomRepo, clock, logger)
	progressService := service.NewProgressService(adherenceRepo, symptomRepo, clock, logger)
	preferencesService := service.NewPreferencesService(preferencesRepo, logger)

	// Initialize audit logging
	auditLogger := audit.NewLogger(pool, logger)

	// Initialize handlers
	medicationHandler := handler.NewMedicationHandler(medicationService, auditLogger, logger)
	adherenceHandler := handler.NewAdherenceHandler(adherenceService, auditLogger, logger)
	symptomHandler := handler.NewSymptomHandler(symptomService, auditLogger, logger)
	progressHandler := handler.NewProgressHandler(progressService, logger)
	preferencesHandler := handler.NewPreferencesHandler(preferencesService, auditLogger, logger)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Configure appropriately for production
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add request ID middleware
	r.Use(middleware.RequestIDMiddleware())

	// Add request logging middleware
	r.Use(middleware.RequestLoggingMiddleware(logger))

	// Add error logging middleware
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			logger.Error("health check failed: database unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "connected",
			"service":  "healthpal-backend",
			"version":  "1.0.0",
		})
	})

	// API routes
	v1 := r.Group("/api/v1")
	{
		v1.POST("/medications", medicationHandler.CreateMedication)
		v1.GET("/medications", medicationHandler.ListMedications)
		v1.PUT("/medications/:id", medicationHandler.UpdateMedication)
		v1.POST("/medications/:id/deactivate", medicationHandler.DeactivateMedication)
		v1.DELETE("/medications/:id", medicationHandler.DeleteMedication)

		v1.GET("/adherence/due", adherenceHandler.GetDueDoses)
		v1.POST("/adherence/:id/take", adherenceHandler.TakeDose)
		v1.POST("/adherence/:id/miss", adherenceHandler.MissDose)
		v1.POST("/adherence/:id/snooze", adherenceHandler.SnoozeDose)
		v1.POST("/adherence/:id/skip", adherenceHandler.SkipDose)
		v1.GET("/adherence/streak", adherenceHandler.GetStreak)

		v1.POST("/symptoms", symptomHandler.LogSymptoms)
		v1.GET("/symptoms", symptomHandler.GetSymptoms)

		v1.GET("/progress/summary", progressHandler.GetSummary)

		v1.GET("/preferences/:user_id", preferencesHandler.GetPreferences)
		v1.PUT("/preferences/:user_id", preferencesHandler.UpdatePreferences)
	}

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
