package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/windingtree/simard/internal/database/migrations"
	"github.com/windingtree/simard/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate schemas
	err = db.AutoMigrate(
		&types.Settlement{},
		&types.Guarantee{},
		&types.Quote{},
	)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddTransferReferenceIndex(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// NewTestDatabase opens an in-memory database for tests. Each call gets
// its own named database; cache=shared keeps the connection pool on the
// same one.
func NewTestDatabase() (*gorm.DB, error) {
	name := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	return NewDatabase(name)
}
