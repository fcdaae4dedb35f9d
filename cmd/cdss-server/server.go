package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/healthmetrica/cdss/internal/config"
	"github.com/healthmetrica/cdss/internal/domain/consultation"
	"github.com/healthmetrica/cdss/internal/domain/inference"
	"github.com/healthmetrica/cdss/internal/platform/auth"
	"github.com/healthmetrica/cdss/internal/platform/db"
	"github.com/healthmetrica/cdss/internal/platform/events"
	"github.com/healthmetrica/cdss/internal/platform/health"
	"github.com/healthmetrica/cdss/internal/platform/kvstore"
	"github.com/healthmetrica/cdss/internal/platform/metrics"
	"github.com/healthmetrica/cdss/internal/platform/middleware"
	"github.com/healthmetrica/cdss/internal/platform/validation"
)

// app is a fully wired server plus the resources that must be released on
// shutdown, in reverse order of acquisition.
type app struct {
	echo    *echo.Echo
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(stdout).With().Timestamp().Logger()
}

// buildApp connects the configured backends and registers every route.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}
	checks := health.NewRegistry(healthTimeout)
	m := metrics.New()

	var store kvstore.Store
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rs, client, err := kvstore.NewRedis(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { client.Close() })
		checks.Add("redis", rs.Ping)
		store = rs
		logger.Info().Dur("ttl", cfg.SessionTTL).Msg("session store: redis")
	default:
		store = kvstore.NewMemory()
		logger.Info().Msg("session store: memory")
	}

	var archive consultation.Archive
	switch cfg.ArchiveBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		checks.Add("postgres", pool.Ping)
		archive = consultation.NewPGArchive(pool)
		logger.Info().Msg("archive: postgres")
	default:
		archive = consultation.NewMemoryArchive()
		logger.Info().Msg("archive: memory")
	}

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, func() {
			if err := kp.Close(); err != nil {
				logger.Warn().Err(err).Msg("close kafka writer")
			}
		})
		publisher = kp
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("events: kafka")
	} else {
		publisher = events.NewLogPublisher(logger)
	}

	svc := consultation.NewService(consultation.NewKVRepository(store, logger), archive, publisher, logger)
	svc.SetRecorder(m)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(m.Middleware())

	switch cfg.ResolvedAuthMode() {
	case config.AuthModeDevelopment:
		e.Use(auth.DevAuthMiddleware())
	default:
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.AuthSigningKey),
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			Skipper:    auth.Skipper,
		}))
	}

	e.GET("/health", checks.Handler())
	e.GET("/metrics", m.Handler())

	limit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})

	api := e.Group("/api", limit)
	inference.NewHandler(cfg.SimulatedLatency(), m).RegisterRoutes(api)

	apiV1 := e.Group("/api/v1", limit, middleware.RequestTimeout(cfg.RequestTimeout))
	consultation.NewHandler(svc).RegisterRoutes(apiV1)

	a.echo = e
	return a, nil
}
