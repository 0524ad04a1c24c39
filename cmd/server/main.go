package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carsharing/backend/internal/clock"
	"github.com/carsharing/backend/internal/config"
	"github.com/carsharing/backend/internal/handler"
	appMiddleware "github.com/carsharing/backend/internal/middleware"
	"github.com/carsharing/backend/internal/notification"
	"github.com/carsharing/backend/internal/repository"
	"github.com/carsharing/backend/internal/scheduler"
	"github.com/carsharing/backend/internal/service"
	"github.com/carsharing/backend/internal/ws"
	"github.com/carsharing/backend/pkg/crypto"
	"github.com/carsharing/backend/pkg/payment"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env file if present (for local development)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(logger, "config error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "database error", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db); err != nil {
		fatal(logger, "migration error", err)
	}
	logger.Info("database connected and migrated")

	enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		fatal(logger, "encryption error", err)
	}

	clk := clock.Real{}
	txm := repository.NewTxManager(db)
	userRepo := repository.NewUserRepository(db, enc)
	vehicleRepo := repository.NewVehicleRepository(db)
	rentalRepo := repository.NewRentalRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, userRepo, clk, logger)
	if err := authSvc.SeedAdmin(ctx); err != nil {
		fatal(logger, "admin seed error", err)
	}

	// Notification channels. The log channel always succeeds so a user
	// without any linked channel still gets a record of the message.
	hub := ws.NewHub(authSvc, logger)
	channels := notification.Multi{notification.LogNotifier{Logger: logger}, hub}

	if cfg.TelegramBotToken != "" {
		bot, err := notification.NewBot(cfg.TelegramBotToken, cfg.GatewayTimeout)
		if err != nil {
			logger.Warn("telegram not available, notifications will skip it", "error", err)
		} else {
			channels = append(channels, notification.NewTelegramNotifier(bot, userRepo))
			notification.NewGreetingPoller(bot, cfg.TelegramPollInterval, logger).Start(ctx)
			logger.Info("telegram bot connected", "username", bot.Self.UserName)
		}
	}

	if cfg.AMQPURL != "" {
		publisher, err := notification.NewAMQPNotifier(cfg.AMQPURL, cfg.NotificationExchange)
		if err != nil {
			logger.Warn("amqp not available, notifications will skip it", "error", err)
		} else {
			defer publisher.Close()
			channels = append(channels, publisher)
			logger.Info("amqp publisher connected", "exchange", cfg.NotificationExchange)
		}
	}
	dispatcher := notification.NewDispatcher(channels)

	var limiter service.SessionLimiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fatal(logger, "redis url error", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable, payment limiter fails open until it is", "error", err)
		}
		limiter = repository.NewRedisRateLimiter(rdb, "carsharing:payments", cfg.PaymentRateLimit, cfg.PaymentRateWindow)
	}

	var (
		gateway   payment.Gateway
		simulator handler.SettlementSimulator
	)
	if cfg.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(payment.StripeConfig{
			SecretKey: cfg.StripeSecretKey,
			Timeout:   cfg.GatewayTimeout,
		})
		logger.Info("payment gateway: stripe")
	} else {
		mock := payment.NewMockGateway("")
		gateway, simulator = mock, mock
		logger.Warn("STRIPE_SECRET_KEY not set, using mock payment gateway")
	}

	vehicleSvc := service.NewVehicleService(txm, vehicleRepo, clk)
	rentalSvc := service.NewRentalService(txm, rentalRepo, vehicleRepo, userRepo, dispatcher, clk, logger)
	paymentSvc := service.NewPaymentService(rentalRepo, vehicleRepo, paymentRepo, gateway, dispatcher, limiter,
		service.PaymentOptions{
			Currency:   cfg.PaymentCurrency,
			SuccessURL: cfg.PaymentSuccessURL,
			CancelURL:  cfg.PaymentCancelURL,
			Timeout:    cfg.GatewayTimeout,
		}, clk, logger)
	sweepSvc := service.NewSweepService(rentalSvc, userRepo, vehicleRepo, dispatcher, logger)

	sched := scheduler.New(sweepSvc, scheduler.Schedules{
		NonOverdue: cfg.NonOverdueSweepSchedule,
		Overdue:    cfg.OverdueSweepSchedule,
	}, logger)
	if err := sched.Start(); err != nil {
		fatal(logger, "scheduler error", err)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	healthHandler := handler.NewHealthHandler(db)
	vehicleHandler := handler.NewVehicleHandler(vehicleSvc)
	rentalHandler := handler.NewRentalHandler(rentalSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	adminHandler := handler.NewAdminHandler(repository.NewStatsRepository(db), sweepSvc, simulator, clk)

	r := chi.NewRouter()

	r.Use(appMiddleware.Recovery(logger))
	r.Use(appMiddleware.Logger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(ctx, 20, 40)
	r.Use(globalRL.Middleware())

	r.Get("/health", healthHandler.Check)

	// Gateway redirects carry no token
	r.Get("/api/payments/success/{sessionId}", paymentHandler.Success)
	r.Get("/api/payments/cancel/{sessionId}", paymentHandler.Cancel)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter(ctx))
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))

		r.Get("/api/auth/me", authHandler.Me)
		r.Put("/api/auth/me/telegram", authHandler.LinkTelegram)

		r.Get("/api/vehicles", vehicleHandler.List)
		r.Get("/api/vehicles/{id}", vehicleHandler.Get)

		r.Post("/api/rentals", rentalHandler.Create)
		r.Get("/api/rentals", rentalHandler.List)
		r.Post("/api/rentals/{id}/return", rentalHandler.Return)
		r.Get("/api/users/{userId}/rentals/{rentalId}", rentalHandler.Get)

		r.Get("/api/payments", paymentHandler.List)
		r.Post("/api/payments", paymentHandler.Create)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.ManagerOnly)
			r.Post("/api/vehicles", vehicleHandler.Create)
			r.Put("/api/vehicles/{id}", vehicleHandler.Update)
			r.Delete("/api/vehicles/{id}", vehicleHandler.Delete)
			r.Post("/api/vehicles/{id}/inventory", vehicleHandler.AdjustStock)

			r.Get("/api/admin/stats", adminHandler.GetStats)
			r.Post("/api/admin/sweeps/overdue", adminHandler.SweepOverdue)
			r.Post("/api/admin/sweeps/non-overdue", adminHandler.SweepNonOverdue)
			r.Post("/api/admin/payments/{sessionId}/simulate", adminHandler.SimulatePayment)
		})
	})

	// WebSocket notifications (auth via query param)
	r.HandleFunc("/ws/notifications", hub.Handle)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("sweep still running at shutdown")
		}
	}()

	logger.Info("car sharing backend listening", "addr", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		fatal(logger, "server error", err)
	}
	<-done
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
