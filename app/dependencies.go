package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/fetchguard/auth"
	"github.com/upb/fetchguard/config"
	"github.com/upb/fetchguard/handlers"
	"github.com/upb/fetchguard/internal/hotreload"
	"github.com/upb/fetchguard/internal/observability"
	"github.com/upb/fetchguard/internal/policy"
	"github.com/upb/fetchguard/middleware"
	"github.com/upb/fetchguard/repositories"
	"github.com/upb/fetchguard/repositories/postgres"
	"github.com/upb/fetchguard/services/audit"
	policysvc "github.com/upb/fetchguard/services/policy"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config      *config.Config
	DB          *postgres.DB // nil when no database is configured
	Logger      *zap.Logger
	RepoFactory *postgres.RepositoryFactory

	// Block audit
	BlockEvents repositories.BlockEventRepository
	Audit       *audit.Service

	// Isolation policy
	Policies  *policysvc.Service
	Counters  *observability.DecisionCounters
	Isolation *middleware.IsolationMiddleware

	// Admin API, nil when ADMIN_JWT_SECRET is unset
	Tokens         *auth.HMACValidator
	AuthMiddleware *middleware.AuthMiddleware

	health   repositories.HealthChecker
	reloader *hotreload.Reloader
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Counters: observability.NewDecisionCounters(),
	}

	policies, err := policysvc.NewService(cfg.Policy, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load isolation policy: %w", err)
	}
	deps.Policies = policies

	if cfg.Database != nil {
		if err := deps.initAudit(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to initialize block audit: %w", err)
		}
	} else {
		logger.Info("no database configured, blocked requests are only logged")
	}

	opts := []middleware.IsolationOption{middleware.WithMetrics(deps.Counters)}
	if deps.Audit != nil {
		opts = append(opts, middleware.WithBlockRecorder(deps.Audit))
	}
	deps.Isolation = middleware.NewIsolationMiddleware(policy.NewResponder(nil), logger, opts...)

	if err := deps.initAdminAuth(cfg); err != nil {
		deps.closeAudit()
		return nil, fmt.Errorf("failed to initialize admin auth: %w", err)
	}

	if path := policies.WatchedFile(); path != "" {
		reloader, err := hotreload.New(path, func() error {
			_, err := policies.Reload()
			return err
		}, hotreload.DefaultDebounce, logger)
		if err != nil {
			deps.closeAudit()
			return nil, fmt.Errorf("failed to watch policy file: %w", err)
		}
		deps.reloader = reloader
	}

	snap := policies.Current()
	logger.Info("all dependencies initialized successfully",
		zap.Bool("policy_enabled", snap.Enabled),
		zap.String("policy_source", snap.Source),
		zap.Int("policy_routes", len(snap.Routes)),
		zap.Bool("audit", deps.Audit != nil),
		zap.Bool("admin", deps.AuthMiddleware != nil))

	return deps, nil
}

// initAudit opens the database and starts the audit workers
func (d *Dependencies) initAudit(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(ctx, *cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.RepoFactory = factory
	d.DB = factory.GetDB()

	repos := factory.NewRepositories()
	d.BlockEvents = repos.BlockEvents
	d.health = repos.Health
	d.Audit = audit.NewService(d.BlockEvents, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if err := d.Audit.Start(); err != nil {
		_ = factory.Close()
		return err
	}
	return nil
}

func (d *Dependencies) initAdminAuth(cfg *config.Config) error {
	if !cfg.AdminEnabled() {
		d.Logger.Info("admin API disabled, ADMIN_JWT_SECRET not set")
		return nil
	}
	validator, err := auth.NewHMACValidator(auth.Config{
		Secret: cfg.Admin.JWTSecret,
		Issuer: cfg.Admin.Issuer,
	})
	if err != nil {
		return err
	}
	d.Tokens = validator
	d.AuthMiddleware = middleware.NewAuthMiddleware(&tokenValidatorAdapter{validator: validator}, d.Logger)
	return nil
}

// Start runs background work (policy file watching) until ctx is done or
// Close is called.
func (d *Dependencies) Start(ctx context.Context) {
	if d.reloader == nil || d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		if err := d.reloader.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.Logger.Error("policy file watcher stopped", zap.Error(err))
		}
	}()
}

// HealthHandler builds the health handler over the configured dependencies
func (d *Dependencies) HealthHandler() *handlers.HealthHandler {
	return handlers.NewHealthHandler(d.health, d.Policies, d.Logger)
}

// PolicyHandler builds the admin policy handler
func (d *Dependencies) PolicyHandler() *handlers.PolicyHandler {
	var stats handlers.AuditStatsSource
	if d.Audit != nil {
		stats = d.Audit
	}
	return handlers.NewPolicyHandler(d.Policies, d.BlockEvents, d.Counters, stats, d.Logger)
}

// tokenValidatorAdapter adapts auth.HMACValidator to middleware.TokenValidator
type tokenValidatorAdapter struct {
	validator *auth.HMACValidator
}

func (a *tokenValidatorAdapter) ValidateToken(ctx context.Context, token string) (*middleware.Claims, error) {
	parsed, err := a.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{
		Subject: parsed.Subject,
		Role:    parsed.Role,
		Issuer:  parsed.Issuer,
		Exp:     parsed.ExpiresAt.Unix(),
	}, nil
}

func (d *Dependencies) closeAudit() {
	if d.Audit != nil {
		if err := d.Audit.Stop(d.Config.Audit.StopTimeout); err != nil {
			d.Logger.Warn("audit service did not drain", zap.Error(err))
		}
	}
	if d.RepoFactory != nil {
		_ = d.RepoFactory.Close()
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.cancel != nil {
		d.cancel()
		select {
		case <-d.done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("policy watcher: %w", ctx.Err()))
		}
	}
	if d.cancel == nil && d.reloader != nil {
		if err := d.reloader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close policy watcher: %w", err))
		}
	}

	// Drain the audit buffer before closing the database underneath it
	if d.Audit != nil {
		if err := d.Audit.Stop(d.Config.Audit.StopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
