package policy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/fetchguard/config"
	"github.com/upb/fetchguard/internal/policy"
	"github.com/upb/fetchguard/services"
	"go.uber.org/zap"
)

// ErrNoPolicyFile is returned by Reload when the policy comes from the
// environment only
var ErrNoPolicyFile = services.ErrNoPolicyFile

// SnapshotLoader builds a fresh policy snapshot from configuration
type SnapshotLoader func(config.PolicyConfig) (*policy.Snapshot, error)

// ReloadStatus describes the outcome of the most recent reload attempt
type ReloadStatus struct {
	At      time.Time `json:"at"`
	Source  string    `json:"source"`
	Hash    string    `json:"hash,omitempty"`
	Changed bool      `json:"changed"`
	Error   string    `json:"error,omitempty"`
}

// Service owns the live policy store and every way of replacing it.
// Failed reloads leave the active snapshot in place.
type Service struct {
	store  *policy.Store
	cfg    config.PolicyConfig
	load   SnapshotLoader
	logger *zap.Logger

	mu   sync.Mutex
	last ReloadStatus
}

// NewService loads the initial snapshot described by cfg
func NewService(cfg config.PolicyConfig, logger *zap.Logger) (*Service, error) {
	return NewServiceWithLoader(cfg, config.LoadPolicySnapshot, logger)
}

// NewServiceWithLoader is NewService with a custom snapshot loader
func NewServiceWithLoader(cfg config.PolicyConfig, load SnapshotLoader, logger *zap.Logger) (*Service, error) {
	snap, err := load(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	snap.LoadedAt = time.Now().UTC()

	s := &Service{
		store:  policy.NewStore(snap),
		cfg:    cfg,
		load:   load,
		logger: logger,
		last: ReloadStatus{
			At:      snap.LoadedAt,
			Source:  snap.Source,
			Hash:    snap.Hash,
			Changed: true,
		},
	}

	logger.Info("policy loaded",
		zap.String("source", snap.Source),
		zap.Bool("enabled", snap.Enabled),
		zap.Int("routes", len(snap.Routes)))

	return s, nil
}

// Store returns the live store read by the request path
func (s *Service) Store() *policy.Store {
	return s.store
}

// Current returns the active snapshot
func (s *Service) Current() *policy.Snapshot {
	return s.store.Load()
}

// WatchedFile returns the policy file to watch, or "" when none
func (s *Service) WatchedFile() string {
	if !s.cfg.WatchFile {
		return ""
	}
	return s.cfg.File
}

// Reload rebuilds the snapshot from configuration and swaps it in.
// Reloading an unchanged file is a no-op.
func (s *Service) Reload() (*policy.Snapshot, error) {
	if s.cfg.File == "" {
		return nil, ErrNoPolicyFile
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	next, err := s.load(s.cfg)
	if err != nil {
		s.last = ReloadStatus{At: now, Source: s.cfg.File, Error: err.Error()}
		s.logger.Error("policy reload failed, keeping active policy", zap.Error(err))
		if errors.Is(err, policy.ErrInvalidOptions) {
			return nil, services.WrapValidation("policy_file", "invalid policy file", err)
		}
		return nil, services.WrapInternal("failed to reload policy", err)
	}

	cur := s.store.Load()
	if next.Hash != "" && next.Hash == cur.Hash {
		s.last = ReloadStatus{At: now, Source: next.Source, Hash: next.Hash}
		return cur, nil
	}

	next.LoadedAt = now
	s.store.Swap(next)
	s.last = ReloadStatus{At: now, Source: next.Source, Hash: next.Hash, Changed: true}

	s.logger.Info("policy reloaded",
		zap.String("source", next.Source),
		zap.String("hash", next.Hash),
		zap.Bool("enabled", next.Enabled),
		zap.Int("routes", len(next.Routes)))

	return next, nil
}

// ReplaceDefault validates opts and installs them as the default policy,
// keeping route overrides. enabled, when non-nil, also toggles the global
// policy.
func (s *Service) ReplaceDefault(opts policy.Options, enabled *bool) (*policy.Snapshot, error) {
	def, err := policy.FromOptions(opts)
	if err != nil {
		return nil, services.WrapValidation("default", "invalid policy options", err)
	}

	snap, err := s.store.Update(func(cur *policy.Snapshot) (*policy.Snapshot, error) {
		next := cur.WithDefault(def)
		if enabled != nil {
			next.Enabled = *enabled
		}
		next.Source = "admin"
		next.Hash = ""
		next.LoadedAt = time.Now().UTC()
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = ReloadStatus{At: snap.LoadedAt, Source: snap.Source, Changed: true}
	s.mu.Unlock()

	s.logger.Info("default policy replaced",
		zap.Bool("enabled", snap.Enabled),
		zap.Bool("enforce_same_site", def.EnforceSameSite()),
		zap.Bool("report_only", def.ReportOnly()))

	return snap, nil
}

// LastReload returns the outcome of the most recent reload or replace
func (s *Service) LastReload() ReloadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
