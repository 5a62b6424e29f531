package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var backupMu sync.Mutex

// ErrBackupBusy is returned when another snapshot is still being written.
var ErrBackupBusy = errors.New("another backup is in progress")

// Backup writes a consistent point-in-time copy of the database to dest and
// returns its size. VACUUM INTO does not block concurrent readers.
func (s *Store) Backup(ctx context.Context, dest string) (int64, error) {
	if !backupMu.TryLock() {
		return 0, ErrBackupBusy
	}
	defer backupMu.Unlock()

	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return 0, fmt.Errorf("backup directory: %w", err)
		}
	}
	if _, err := os.Stat(dest); err == nil {
		return 0, fmt.Errorf("backup target %s already exists", dest)
	}

	quoted := strings.ReplaceAll(dest, "'", "''")
	if err := s.db.WithContext(ctx).Exec(fmt.Sprintf("VACUUM INTO '%s'", quoted)).Error; err != nil {
		return 0, fmt.Errorf("snapshot failed: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("verify snapshot: %w", err)
	}
	return info.Size(), nil
}
