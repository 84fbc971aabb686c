package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hrops/be-hr-attendance/internal/client"
	"github.com/hrops/be-hr-attendance/internal/config"
	"github.com/hrops/be-hr-attendance/internal/database"
	"github.com/hrops/be-hr-attendance/internal/handler"
	"github.com/hrops/be-hr-attendance/internal/logger"
	"github.com/hrops/be-hr-attendance/internal/middleware"
	"github.com/hrops/be-hr-attendance/internal/repository"
	"github.com/hrops/be-hr-attendance/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting HR Attendance Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize repositories
	attendanceRepo := repository.NewAttendanceRepository(db)
	anomalyRepo := repository.NewAnomalyRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	store := repository.NewStore(db)
	uow := repository.NewUnitOfWork(db)

	// Initialize mail client
	mailer := client.NewSMTPMailer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.From,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)
	log.Info().
		Str("smtp_host", cfg.SMTP.Host).
		Int("smtp_port", cfg.SMTP.Port).
		Msg("Mail client initialized")

	// Initialize services
	notificationService := service.NewNotificationService(store, mailer, log)
	importService := service.NewImportService(uow, notificationService, cfg.Import.PlaceholderEmailDomain, log)
	attendanceService := service.NewAttendanceService(attendanceRepo, anomalyRepo, holidayRepo, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(importService, notificationService, attendanceService, cfg.Import.AutoSendDefault, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Attendance routes
	mux.HandleFunc("/api/v1/imports", httpHandler.ImportReport)
	mux.HandleFunc("/api/v1/managers/import", httpHandler.ImportManagers)
	mux.HandleFunc("/api/v1/attendance", httpHandler.ListAttendance)
	mux.HandleFunc("/api/v1/attendance/get", httpHandler.GetAttendance)
	mux.HandleFunc("/api/v1/anomalies/summary", httpHandler.AnomalySummary)
	mux.HandleFunc("/api/v1/notifications", httpHandler.ListNotifications)
	mux.HandleFunc("/api/v1/notifications/send", httpHandler.SendNotification)
	mux.HandleFunc("/api/v1/holidays", httpHandler.Holidays)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(60 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
