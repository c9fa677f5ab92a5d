package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/fetchguard/models"
	"github.com/upb/fetchguard/repositories"
	"go.uber.org/zap"
)

var (
	// ErrNotRunning is returned by Record before Start and after Stop
	ErrNotRunning = errors.New("audit service not running")
	// ErrBufferFull is returned by Record when the event was dropped
	ErrBufferFull = errors.New("audit event buffer full")
)

// Service persists block events asynchronously. Record never blocks the
// request path; events that do not fit in the buffer are dropped.
type Service struct {
	repo        repositories.BlockEventRepository
	logger      *zap.Logger
	events      chan *models.BlockEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup

	mu      sync.RWMutex
	running bool
	stopped bool

	recorded atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
}

// Config holds configuration for the Service
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewService creates a new audit Service
func NewService(repo repositories.BlockEventRepository, logger *zap.Logger, cfg Config) *Service {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultConfig().WorkerCount
	}

	return &Service{
		repo:        repo,
		logger:      logger,
		events:      make(chan *models.BlockEvent, cfg.BufferSize),
		workerCount: cfg.WorkerCount,
		bufferSize:  cfg.BufferSize,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("audit service already started")
	}
	if s.stopped {
		return fmt.Errorf("audit service cannot be restarted")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.running = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting events and waits for queued ones to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	s.stopped = true
	close(s.events)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.events)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues a block event without blocking
func (s *Service) Record(event *models.BlockEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return ErrNotRunning
	}

	select {
	case s.events <- event:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("request_id", event.RequestID),
			zap.String("path", event.Path))
		return ErrBufferFull
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.events {
		if err := s.persist(event); err != nil {
			s.failed.Add(1)
			s.logger.Error("failed to persist block event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("request_id", event.RequestID))
			continue
		}
		s.recorded.Add(1)
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *Service) persist(event *models.BlockEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.repo.Insert(ctx, event)
}

// Stats returns statistics about the audit service
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.events),
		WorkerCount:   s.workerCount,
		Running:       s.running,
		Recorded:      s.recorded.Load(),
		Dropped:       s.dropped.Load(),
		Failed:        s.failed.Load(),
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int    `json:"buffer_size"`
	PendingEvents int    `json:"pending_events"`
	WorkerCount   int    `json:"worker_count"`
	Running       bool   `json:"running"`
	Recorded      uint64 `json:"recorded"`
	Dropped       uint64 `json:"dropped"`
	Failed        uint64 `json:"failed"`
}
