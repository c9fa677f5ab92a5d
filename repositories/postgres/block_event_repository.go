package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/fetchguard/models"
	"github.com/upb/fetchguard/repositories"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// BlockEventRepository implements repositories.BlockEventRepository
type BlockEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewBlockEventRepository creates a new block event repository
func NewBlockEventRepository(db *DB, logger *zap.Logger) repositories.BlockEventRepository {
	return &BlockEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new block event
func (r *BlockEventRepository) Insert(ctx context.Context, event *models.BlockEvent) error {
	query := `
		INSERT INTO block_events (
			id, request_id, method, path, site, mode, dest, remote_addr, report_only, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.RequestID,
		event.Method,
		event.Path,
		event.Site,
		event.Mode,
		event.Dest,
		event.RemoteAddr,
		event.ReportOnly,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert block event: %w", err)
	}

	r.logger.Debug("block event inserted", zap.String("id", event.ID.String()))
	return nil
}

// ListRecent retrieves the most recent block events, newest first
func (r *BlockEventRepository) ListRecent(ctx context.Context, limit int) ([]*models.BlockEvent, error) {
	query := `
		SELECT id, request_id, method, path, site, mode, dest, remote_addr, report_only, occurred_at
		FROM block_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query block events: %w", err)
	}
	defer rows.Close()

	var events []*models.BlockEvent
	for rows.Next() {
		event := &models.BlockEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.RequestID,
			&event.Method,
			&event.Path,
			&event.Site,
			&event.Mode,
			&event.Dest,
			&event.RemoteAddr,
			&event.ReportOnly,
			&event.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan block event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating block event rows: %w", err)
	}

	return events, nil
}

// CountByPath aggregates block events since the given time, busiest first
func (r *BlockEventRepository) CountByPath(ctx context.Context, since time.Time, limit int) ([]*models.BlockStat, error) {
	query := `
		SELECT path, site, COUNT(*) AS count
		FROM block_events
		WHERE occurred_at >= $1
		GROUP BY path, site
		ORDER BY count DESC, path ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, since, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query block stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.BlockStat
	for rows.Next() {
		stat := &models.BlockStat{}
		if err := rows.Scan(&stat.Path, &stat.Site, &stat.Count); err != nil {
			return nil, fmt.Errorf("failed to scan block stat: %w", err)
		}
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating block stat rows: %w", err)
	}

	return stats, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
