package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"dlas/internal/application"
	"dlas/internal/fees"
	"dlas/internal/handler"
	"dlas/internal/middleware"
	"dlas/internal/repository/postgres"
	"dlas/internal/repository/redisstore"
	"dlas/internal/validation"
	"dlas/pkg/config"
	"dlas/pkg/logger"
	"dlas/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("licensing-service")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting Licensing Service", map[string]interface{}{
		"port":    cfg.Server.Port,
		"country": cfg.Licensing.CountryCode,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	// Redis connection
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Redis connected", nil)

	// Repositories
	appRepo := postgres.NewApplicationRepository(db)
	personRepo := postgres.NewPersonRepository(db)
	suspensionRepo := postgres.NewSuspensionRepository(db)
	feeLedgerRepo := postgres.NewFeeLedgerRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Application number sequence: postgres keeps everything in one store,
	// redis takes the hot path off the primary.
	var allocator application.SequenceAllocator
	switch cfg.Licensing.SequenceBackend {
	case "redis":
		allocator = redisstore.NewSequenceAllocator(redisClient)
	default:
		allocator = postgres.NewSequenceRepository(db)
	}

	// Eligibility rules
	rules := validation.DefaultRules()
	rules.MedicalAgeThreshold = cfg.Licensing.MedicalAgeThreshold
	rules.MedicalValidityDays = cfg.Licensing.MedicalValidityDays

	orchestrator := validation.NewOrchestrator(rules, personRepo, appRepo, feeLedgerRepo, suspensionRepo)

	feeCalculator := fees.NewCalculator(fees.DefaultSchedule())
	numbers := application.NewNumberGenerator(allocator, cfg.Licensing.CountryCode)

	appService := application.NewService(
		appRepo,
		feeLedgerRepo,
		orchestrator,
		feeCalculator,
		numbers,
		log,
		application.DefaultConfig(cfg.Licensing.CountryCode),
	)

	// Handlers
	val := validator.New()
	appHandler := handler.NewApplicationsHandler(appService, val, log)
	feesHandler := handler.NewFeesHandler(feeCalculator)
	suspensionsHandler := handler.NewSuspensionsHandler(suspensionRepo, val, log)
	auditHandler := handler.NewAuditHandler(auditRepo, log)
	systemHandler := handler.NewSystemHandler(db, redisClient, log)

	// Router
	r := mux.NewRouter()

	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.NewRecovery(log).Handle)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.NewRateLimiter(redisClient, 150, time.Minute).Limit)

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	idemMW := middleware.NewIdempotencyMiddleware(redisClient, 24*time.Hour)
	auditMW := middleware.NewAuditMiddleware(auditRepo, log)

	// Health routes (no auth)
	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.HandleFunc("/ready", systemHandler.Readiness).Methods("GET")

	// Protected routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Authenticate)
	api.Use(auditMW.Audit)
	api.Use(middleware.NewRateLimiter(redisClient, 60, time.Minute).Limit)

	api.HandleFunc("/fees/quote", feesHandler.Quote).Methods("GET")

	apps := api.PathPrefix("/applications").Subrouter()
	apps.HandleFunc("", appHandler.Create).Methods("POST")
	apps.HandleFunc("", appHandler.ListByStatus).Methods("GET")
	apps.HandleFunc("/validate", appHandler.Validate).Methods("POST")
	apps.HandleFunc("/number/{number}", appHandler.GetByNumber).Methods("GET")
	apps.HandleFunc("/{id}", appHandler.Get).Methods("GET")
	apps.HandleFunc("/{id}/submit", appHandler.Submit).Methods("POST")
	apps.HandleFunc("/{id}/test-result", appHandler.RecordTestResult).Methods("POST")
	apps.HandleFunc("/{id}/medical-certificate", appHandler.RecordMedicalCertificate).Methods("POST")

	// The payment collector retries on timeout; transitions must land once.
	transitions := api.PathPrefix("/applications/{id}/transition").Subrouter()
	transitions.Use(idemMW.Require)
	transitions.Handle("", http.HandlerFunc(appHandler.Transition)).Methods("POST")

	api.HandleFunc("/persons/{person_id}/applications", appHandler.ListByPerson).Methods("GET")
	api.HandleFunc("/persons/{person_id}/suspensions", suspensionsHandler.Create).Methods("POST")
	api.HandleFunc("/persons/{person_id}/suspensions", suspensionsHandler.ListByPerson).Methods("GET")

	api.HandleFunc("/audit-logs", auditHandler.List).Methods("GET")

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Licensing service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down licensing service...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Licensing service forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Licensing service stopped gracefully", nil)
}
