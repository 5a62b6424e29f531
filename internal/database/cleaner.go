package database

import (
	"context"
	"time"

	"snapify/pkg/logger"
	"snapify/pkg/utils"
)

/*
Maintenance worker
==================

Media rows are small, but cascaded event deletes free many pages at once.
The file is not shrunk after every delete: SQLite reuses freed pages, which
avoids OS-level reallocation. Only when more than half of the file is free
pages do we checkpoint the WAL and VACUUM.

The WAL is checkpointed (PASSIVE) on every tick so it does not grow without
bound under a steady upload load.
*/

// MaintenanceReport describes the database file at the time of a check.
type MaintenanceReport struct {
	PageSize  int64
	Pages     int64
	FreePages int64
	Vacuumed  bool
}

func (r MaintenanceReport) Bloated() bool {
	return r.Pages > 0 && float64(r.FreePages) > float64(r.Pages)*0.50
}

// StartMaintenance runs Maintain every interval in the background until ctx is done.
func (s *Store) StartMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	logger.LogInfo("Database maintenance started. Interval: %s", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Maintain(ctx); err != nil {
					logger.LogError("Database maintenance failed: %v", err)
				}
			}
		}
	}()
}

// Maintain checkpoints the WAL and vacuums the file when it is mostly free pages.
func (s *Store) Maintain(ctx context.Context) (MaintenanceReport, error) {
	var report MaintenanceReport
	db := s.db.WithContext(ctx)

	if err := db.Raw("PRAGMA page_size;").Scan(&report.PageSize).Error; err != nil {
		return report, err
	}
	if err := db.Raw("PRAGMA page_count;").Scan(&report.Pages).Error; err != nil {
		return report, err
	}
	if err := db.Raw("PRAGMA freelist_count;").Scan(&report.FreePages).Error; err != nil {
		return report, err
	}

	if !report.Bloated() {
		db.Exec("PRAGMA wal_checkpoint(PASSIVE);")
		return report, nil
	}

	logger.LogWarn("DB is bloated (%s of %s free). Starting VACUUM to reclaim space...",
		utils.FormatBytes(report.FreePages*report.PageSize),
		utils.FormatBytes(report.Pages*report.PageSize))

	// Commit the WAL into the main file before rebuilding it.
	db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")

	startTime := time.Now()
	if err := db.Exec("VACUUM;").Error; err != nil {
		return report, err
	}
	report.Vacuumed = true
	logger.LogInfo("VACUUM completed in %v. Disk space reclaimed.", time.Since(startTime))
	return report, nil
}
