// Package journal records enforcement transitions in a SQLite database.
package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
)

// DefaultRecentLimit caps Recent when no limit is given.
const DefaultRecentLimit = 50

// Journal is a gorm-backed event log.
type Journal struct {
	db *gorm.DB
}

// Open opens (creating if needed) the journal database at path and migrates
// the schema.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	logger.WithComponent("journal").Info().Str("path", path).Msg("Journal opened")
	return &Journal{db: db}, nil
}

// Record inserts events in order.
func (j *Journal) Record(events ...Event) error {
	for i := range events {
		if result := j.db.Create(&events[i]); result.Error != nil {
			return errors.Wrapf(result.Error, "failed to insert %s event", events[i].Kind)
		}
	}
	return nil
}

// Recent returns up to limit events, newest first. limit <= 0 uses
// DefaultRecentLimit.
func (j *Journal) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	events := []Event{}
	result := j.db.Order("at DESC").Order("id DESC").Limit(limit).Find(&events)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query enforcement events")
	}
	return events, nil
}

// Close closes the underlying database
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}
