package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"notes-serverless/internal/auth"
	"notes-serverless/internal/db"
	"notes-serverless/internal/maintenance"
	"notes-serverless/internal/notes"
	"notes-serverless/internal/observability"
	"notes-serverless/internal/respond"
	"notes-serverless/internal/users"
)

const apiPrefix = "/api/v1"

type Options struct {
	LoadDotEnv     bool
	RunMigrations  bool
	StartScheduler bool
}

type Runtime struct {
	Config    Config
	Handler   http.Handler
	Logger    *observability.Logger
	scheduler *maintenance.Scheduler
	database  *sql.DB
}

// Build wires every component from the environment. The caller must have
// registered the pgx database/sql driver.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancelMigrate()
		if err := db.RunMigrations(migrateCtx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	tokens, err := auth.NewTokenService(cfg.AccessToken, cfg.RefreshToken)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init token service: %w", err)
	}

	metrics := observability.NewMetrics()
	accountRepo := auth.NewRepository(database)
	noteRepo := notes.NewRepository(database)

	activity := auth.ActivityPolicy{ThresholdDays: cfg.InactivityThresholdDays}
	authService := auth.NewService(accountRepo, auth.NewPasswordHasher(cfg.BcryptCost), tokens)
	authService.WithActivityPolicy(activity)

	sweeper := maintenance.NewSweeper(accountRepo, noteRepo, activity, logger, metrics)

	var scheduler *maintenance.Scheduler
	if options.StartScheduler && cfg.SweepSchedule != "" {
		scheduler, err = maintenance.NewScheduler(cfg.SweepSchedule, sweeper, logger)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	handler := NewHandler(Components{
		Auth:       auth.NewHandler(authService, logger, metrics),
		Users:      users.NewHandler(accountRepo, authService, logger),
		Guard:      auth.NewGuard(authService, logger),
		Limiter:    auth.NewLoginRateLimiter(cfg.SigninRatePerMinute, cfg.SigninRateBurst, logger),
		Sweep:      maintenance.NewSweepHandler(sweeper, logger, cfg.CronSecret),
		Database:   database,
		Metrics:    metrics,
		Logger:     logger,
		TrustProxy: cfg.TrustProxyHeaders,
	})

	if scheduler != nil {
		scheduler.Start()
		logger.Info("sweep_scheduler_started", map[string]any{"schedule": cfg.SweepSchedule})
	}

	return &Runtime{
		Config:    cfg,
		Handler:   handler,
		Logger:    logger,
		scheduler: scheduler,
		database:  database,
	}, nil
}

// Close stops the scheduler, flushes Sentry and closes the database pool.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.scheduler != nil {
		if err := rt.scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	observability.FlushSentry()
	if err := rt.database.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Components struct {
	Auth       *auth.Handler
	Users      *users.Handler
	Guard      *auth.Guard
	Limiter    *auth.LoginRateLimiter
	Sweep      *maintenance.SweepHandler
	Database   Pinger
	Metrics    *observability.Metrics
	Logger     *observability.Logger
	TrustProxy bool
}

// NewHandler mounts every route on one ServeMux and wraps it with client IP
// resolution, recovery and request logging.
func NewHandler(c Components) http.Handler {
	mux := http.NewServeMux()

	authenticated := func(h http.HandlerFunc) http.Handler {
		return c.Guard.Authenticate(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return c.Guard.Protect(auth.RoleAdmin, h)
	}

	mux.HandleFunc("POST "+apiPrefix+"/auth/signup", c.Auth.Signup)
	mux.Handle("POST "+apiPrefix+"/auth/signin", c.Limiter.Middleware(http.HandlerFunc(c.Auth.Signin)))
	mux.HandleFunc("POST "+apiPrefix+"/auth/refresh-token", c.Auth.RefreshToken)
	mux.HandleFunc("GET "+apiPrefix+"/auth/verify-user", c.Auth.VerifyUser)

	mux.Handle("GET "+apiPrefix+"/users/me", authenticated(c.Users.Me))
	mux.Handle("PATCH "+apiPrefix+"/users/change-password", authenticated(c.Users.ChangePassword))
	mux.Handle("PUT "+apiPrefix+"/users/edit/profile", authenticated(c.Users.EditProfile))
	mux.Handle("DELETE "+apiPrefix+"/users/me", authenticated(c.Users.DeleteMe))

	mux.Handle("GET "+apiPrefix+"/users", admin(c.Users.List))
	mux.Handle("GET "+apiPrefix+"/users/active", admin(c.Users.ListActive))
	mux.Handle("GET "+apiPrefix+"/users/inactive", admin(c.Users.ListInactive))
	mux.Handle("GET "+apiPrefix+"/users/find", admin(c.Users.Find))
	mux.Handle("DELETE "+apiPrefix+"/users/{id}", admin(c.Users.DeleteByID))

	mux.HandleFunc("GET /internal/maintenance/sweep", c.Sweep.Handle)
	mux.HandleFunc("POST /internal/maintenance/sweep", c.Sweep.Handle)
	mux.HandleFunc("GET /health", healthHandler(c.Database))
	mux.Handle("GET /metrics", c.Metrics.Handler())

	handler := observability.RequestLoggingMiddleware(c.Logger, c.Metrics, mux)
	handler = observability.RecoverMiddleware(c.Logger, handler)
	return observability.ClientIPMiddleware(c.TrustProxy, handler)
}

func healthHandler(database Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checkedAt := time.Now().UTC().Format(time.RFC3339)
		if err := database.PingContext(ctx); err != nil {
			respond.Failure(w, http.StatusServiceUnavailable, "database unavailable", respond.Payload{
				"status":   "degraded",
				"database": "down",
				"time":     checkedAt,
			})
			return
		}

		respond.Success(w, http.StatusOK, "service healthy", respond.Payload{
			"status":   "ok",
			"database": "up",
			"time":     checkedAt,
		})
	}
}
