package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/event-registration/internal/config"
	"github.com/iliyamo/event-registration/internal/database"
	"github.com/iliyamo/event-registration/internal/gateway"
	"github.com/iliyamo/event-registration/internal/handler"
	"github.com/iliyamo/event-registration/internal/idempotency"
	"github.com/iliyamo/event-registration/internal/logging"
	"github.com/iliyamo/event-registration/internal/metrics"
	"github.com/iliyamo/event-registration/internal/middleware"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/queue"
	"github.com/iliyamo/event-registration/internal/ratelimit"
	"github.com/iliyamo/event-registration/internal/repository"
	"github.com/iliyamo/event-registration/internal/router"
	"github.com/iliyamo/event-registration/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := logging.GetLogger(cfg.LokiURL)
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := config.ConnectRedis(ctx, config.LoadRedisOptions())
	if rdb == nil {
		logger.Warn("redis unavailable: rate limiting, order locks and caching are disabled")
	} else {
		defer rdb.Close()
	}

	metrics.Setup(cfg.MetricsPushURL, cfg.MetricsPushInterval, logger)

	// Notifications are optional; without a broker the flows skip them.
	var notifier service.Notifier
	if cfg.RabbitURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitURL)
		if err != nil {
			logger.Warn("rabbitmq unavailable, notifications disabled", "error", err)
		} else {
			defer pub.Close()
			notifier = pub
			go queue.NewConsumer(cfg.RabbitURL, cfg.NotificationDir, logger).Run(ctx)
		}
	}

	users := repository.NewUserRepo(db)
	events := repository.NewEventRepo(db)
	regs := repository.NewRegistrationRepo(db)
	pays := repository.NewPaymentRepo(db)
	idem := repository.NewIdempotencyRepo(db)
	msgs := repository.NewContactRepo(db)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		bootstrapAdmin(ctx, logger, users, cfg)
	}

	tasks := service.NewPostCommit(logger, 10*time.Second)
	pricing := service.NewPricing(events)
	registrations := service.NewRegistrationService(pricing, regs, idem, notifier, tasks, logger)
	payments := service.NewPaymentService(pricing, regs, pays, idem, idempotency.NewRedisLocker(rdb),
		gateway.NewClient(cfg.Payment, logger), cfg.Payment.Currency, logger)
	webhooks := service.NewWebhookService(pays, regs, notifier, tasks, cfg.Payment.WebhookSecret, logger)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(logger))

	limiter := ratelimit.New(rdb, config.LoadRateLimitConfig(), logger)
	router.RegisterRoutes(e, db) // Register application routes
	router.RegisterPublic(e, router.PublicHandlers{
		Events:        handler.NewEventsHandler(pricing),
		Registrations: handler.NewRegistrationHandler(registrations),
		Payments:      handler.NewPaymentHandler(payments, webhooks),
		Contact:       handler.NewContactHandler(service.NewContactService(msgs, logger)),
	}, limiter, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterAdmin(e,
		handler.NewAuthHandler(cfg, users),
		handler.NewAdminHandler(service.NewAdminService(regs, pays, msgs)),
		limiter, cfg.JWTSecret)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	// let in-flight notifications finish before the publisher closes
	tasks.Wait()
	logger.Info("shutdown complete")
}

// requestLogger logs one line per request and tags the request context with
// a request id so that downstream log lines carry it.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	tag := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			ctx := logging.AppendCtx(c.Request().Context(), slog.String("request_id", id))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
	log := echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ctx := c.Request().Context()
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency_ms", v.Latency.Milliseconds(), "remote_ip", v.RemoteIP}
			if v.Error != nil {
				logger.ErrorContext(ctx, "request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.InfoContext(ctx, "request", attrs...)
			return nil
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc { return tag(log(next)) }
}

func bootstrapAdmin(ctx context.Context, logger *slog.Logger, users *repository.UserRepo, cfg config.Config) {
	id, err := users.Create(ctx, cfg.AdminEmail, cfg.AdminPassword, model.RoleAdmin, cfg.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		if err := users.SetActive(ctx, cfg.AdminEmail, true); err != nil {
			logger.Error("admin bootstrap failed", "error", err)
			return
		}
		logger.Info("admin account already present", "email", cfg.AdminEmail)
	case err != nil:
		logger.Error("admin bootstrap failed", "error", err)
	default:
		logger.Info("admin account created", "user_id", id)
	}
}
