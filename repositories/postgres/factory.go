package postgres

import (
	"context"

	"github.com/upb/fetchguard/config"
	"github.com/upb/fetchguard/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory connects to the database and makes sure the schema exists
func NewRepositoryFactory(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &RepositoryFactory{db: db, logger: logger}, nil
}

// NewRepositoryFactoryFromDB creates a factory over an already initialized pool
func NewRepositoryFactoryFromDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		BlockEvents: NewBlockEventRepository(f.db, f.logger),
		Health:      f.db,
	}
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
