package repositories

import (
	"context"
	"time"

	"github.com/upb/fetchguard/models"
)

// BlockEventRepository handles block event data operations
type BlockEventRepository interface {
	// Insert inserts a new block event
	Insert(ctx context.Context, event *models.BlockEvent) error

	// ListRecent retrieves the most recent block events, newest first
	ListRecent(ctx context.Context, limit int) ([]*models.BlockEvent, error)

	// CountByPath aggregates block events since the given time
	CountByPath(ctx context.Context, since time.Time, limit int) ([]*models.BlockStat, error)
}

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Repositories holds all repository instances
type Repositories struct {
	BlockEvents BlockEventRepository
	Health      HealthChecker
}
