package database

import (
	sqlite "github.com/glebarez/sqlite"
	"github.com/plumbus-games/portal-hearts/backend/internal/characters"
	"github.com/plumbus-games/portal-hearts/backend/internal/game"
	"github.com/plumbus-games/portal-hearts/backend/internal/saves"
	"github.com/plumbus-games/portal-hearts/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// memoryDSN backs deployments without a configured database path. State is
// lost on restart, which beats refusing to start on platforms that provide
// no disk.
const memoryDSN = "file:portal_hearts?mode=memory&cache=shared"

// Open establishes the SQLite connection and performs schema migrations. An
// empty path degrades to a non-persistent in-memory database.
func Open(path string, logger *zap.Logger) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = memoryDSN
		if logger != nil {
			logger.Warn("no database path configured, using in-memory store; state will not survive restarts")
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&users.User{},
		&characters.Character{},
		&game.State{},
		&game.Dialogue{},
		&saves.Slot{},
	); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("dsn", dsn))
	}

	return db, nil
}
