// Package database persists events, media items and guestbook entries in
// SQLite through gorm.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"snapify/pkg/logger"
)

// Store is the metadata store. It is safe for concurrent use.
type Store struct {
	db   *gorm.DB
	path string
}

// Open connects to the SQLite database at path with WAL mode and foreign keys
// enabled, then migrates the schema. path may be a file path, ":memory:" or a
// "file:" URI.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}

	db, err := gorm.Open(sqlite.Open(buildDSN(path)), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := configurePool(db); err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	logger.LogInfo("Database initialized successfully")
	return &Store{db: db, path: path}, nil
}

// WAL lets readers proceed while the single writer holds the lock; busy_timeout
// makes the driver wait for that lock instead of failing immediately.
func buildDSN(path string) string {
	params := "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1&_synchronous=NORMAL"
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params
}

func ensureDir(path string) error {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0750)
	}
	return nil
}

func configurePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("retrieve database handle: %w", err)
	}

	// One connection serializes writers on the single SQLite file and keeps
	// in-memory databases alive for the life of the store.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	return nil
}

func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&Event{}, &MediaItem{}, &GuestbookEntry{}); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_media_items_event_uploaded ON media_items(event_id, uploaded_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_guestbook_entries_event_created ON guestbook_entries(event_id, created_at DESC);",
	}
	for _, idx := range indices {
		if err := db.Exec(idx).Error; err != nil {
			logger.LogWarn("Failed to create index: %v", err)
		}
	}
	return nil
}

// Ping verifies the connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
