package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/config"
	"github.com/clinic/booking/internal/domain/booking"
	"github.com/clinic/booking/internal/domain/identity"
	"github.com/clinic/booking/internal/domain/scheduling"
	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/internal/platform/db"
	"github.com/clinic/booking/internal/platform/middleware"
	"github.com/clinic/booking/internal/platform/notification"
	"github.com/clinic/booking/internal/platform/telemetry"
	"github.com/clinic/booking/internal/platform/validator"
	"github.com/clinic/booking/migrations"
	"github.com/clinic/booking/pkg/clock"
)

const shutdownTimeout = 15 * time.Second

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Optional:   true,
		Skipper:    auth.AuthSkipper,
	}
}

// newEmailSender uses SMTP when a relay is configured and the log
// otherwise.
func newEmailSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if !cfg.SMTPEnabled() {
		return notification.LogSender{Logger: logger}
	}
	return notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

// bookingLimiter shares the per-minute booking budget through redis when
// available.
func bookingLimiter(cfg *config.Config, rdb redis.Cmdable) middleware.Limiter {
	perMinute := cfg.BookingRatePerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	if rdb != nil {
		return middleware.NewRedisLimiter(rdb, "booking:rl", perMinute, time.Minute)
	}
	return middleware.NewMemoryLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: float64(perMinute) / 60,
		BurstSize:         perMinute,
	})
}

// server holds the wired router and the resources it owns.
type server struct {
	echo       *echo.Echo
	dispatcher *notification.Dispatcher
}

// newServer wires repositories, services and handlers onto a router. rdb
// may be nil.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client) *server {
	calendar := clock.NewCalendar(cfg.ClinicTimezone)
	txRunner := db.NewTxRunner(pool)
	dispatcher := notification.NewDispatcher(
		newEmailSender(cfg, logger),
		notification.NewTemplateEngine(),
		cfg.NotifyTimeout,
		logger,
	)

	metrics := telemetry.New("booking-server")
	metrics.Describe(booking.MetricBookingAttempts, "Booking attempts by outcome.")
	metrics.Describe(booking.MetricCancellations, "Cancellations by outcome.")
	metrics.Gauge("db_pool_acquired_connections", "Connections currently in use.", func() int64 {
		return int64(pool.Stat().AcquiredConns())
	})
	metrics.Gauge("db_pool_idle_connections", "Idle connections in the pool.", func() int64 {
		return int64(pool.Stat().IdleConns())
	})
	metrics.Gauge("notification_pending", "Emails queued but not yet delivered.", func() int64 {
		return int64(dispatcher.Pending())
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	// Auth middleware. Tokens are optional so guests can book; private
	// routes are guarded by RequireRole.
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtConfig(cfg)))
	} else {
		e.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	checks := []db.Check{
		db.PoolCheck(pool),
		db.MigrationCheck(db.NewMigratorFS(pool, migrations.FS), cfg.DBSchema),
	}
	if rdb != nil {
		checks = append(checks, db.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	e.GET("/health/db", db.HealthHandler(pool, checks...))
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	// Scheduling domain
	schedSvc := scheduling.NewService(scheduling.NewDoctorRepoPG(pool), scheduling.NewScheduleRepoPG(pool))
	scheduling.NewHandler(schedSvc, calendar).RegisterRoutes(api)

	// Identity domain
	resolver := identity.NewResolver(identity.NewPatientRepoPG(pool), identity.NewUserRepoPG(pool), txRunner, calendar)
	identity.NewHandler(resolver).RegisterRoutes(api)

	// Booking domain
	bookingSvc := booking.NewService(booking.Deps{
		Schedules:    schedSvc,
		Patients:     resolver,
		Appointments: booking.NewAppointmentRepoPG(pool),
		Tx:           txRunner,
		Calendar:     calendar,
		Validator:    validator.New(),
		Notifier:     dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	var limiterBackend redis.Cmdable
	if rdb != nil {
		limiterBackend = rdb
	}
	booking.NewHandler(bookingSvc).RegisterRoutes(api,
		middleware.RateLimitWith(bookingLimiter(cfg, limiterBackend), middleware.ClientIP, logger))

	return &server{echo: e, dispatcher: dispatcher}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:   cfg.DBMaxConns,
		MinConns:   cfg.DBMinConns,
		SearchPath: cfg.DBSchema,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis is optional; without it rate limits are per replica.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, booking limiter will fail open")
		}
	}

	srv := newServer(cfg, logger, pool, rdb)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting booking server")
		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := srv.dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending notifications abandoned")
	}
	return nil
}
