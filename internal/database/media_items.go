package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"snapify/internal/media"
)

// CreateMedia inserts a new item. The owning event must exist.
func (s *Store) CreateMedia(ctx context.Context, item *MediaItem) error {
	if item.UploadedAt.IsZero() {
		item.UploadedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.eventExists(tx, item.EventID)
		if err != nil {
			return fmt.Errorf("create media: %w", err)
		}
		if !ok {
			return fmt.Errorf("event %s: %w", item.EventID, media.ErrNotFound)
		}
		if err := tx.Create(item).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("media %s already exists: %w", item.ID, media.ErrConflict)
			}
			return fmt.Errorf("create media: %w", err)
		}
		return nil
	})
}

func (s *Store) GetMedia(ctx context.Context, id string) (*MediaItem, error) {
	var item MediaItem
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("media %s: %w", id, media.ErrNotFound)
		}
		return nil, fmt.Errorf("get media: %w", err)
	}
	return &item, nil
}

// ListMediaByEvent returns the event's items, most recently uploaded first.
func (s *Store) ListMediaByEvent(ctx context.Context, eventID string) ([]MediaItem, error) {
	var items []MediaItem
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("uploaded_at DESC").
		Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return items, nil
}

// MarkReady settles a processing item with its final keys. Items that are not
// processing are left untouched and reported as a conflict.
func (s *Store) MarkReady(ctx context.Context, id, storageKey, previewKey string) error {
	if storageKey == "" {
		return media.Validationf("ready media %s needs a storage key", id)
	}
	return s.settle(ctx, id, media.StateReady, map[string]any{
		"processing_state":    media.StateReady,
		"storage_key":         storageKey,
		"preview_storage_key": previewKey,
	})
}

func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.settle(ctx, id, media.StateFailed, map[string]any{
		"processing_state": media.StateFailed,
	})
}

// settle moves a row to a final state. The UPDATE is conditional on the state
// just read, so a concurrent settle turns into a conflict rather than a double write.
func (s *Store) settle(ctx context.Context, id string, to media.State, updates map[string]any) error {
	current, err := s.GetMedia(ctx, id)
	if err != nil {
		return err
	}
	if !media.CanTransition(current.ProcessingState, to) {
		return fmt.Errorf("media %s is %s, cannot become %s: %w", id, current.ProcessingState, to, media.ErrConflict)
	}

	res := s.db.WithContext(ctx).Model(&MediaItem{}).
		Where("id = ? AND processing_state = ?", id, current.ProcessingState).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark %s: %w", to, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("media %s changed while becoming %s: %w", id, to, media.ErrConflict)
	}
	return nil
}

// IncrementLikes adds one like and returns the new total. The increment is a
// single UPDATE so concurrent likes are never lost.
func (s *Store) IncrementLikes(ctx context.Context, id string) (int, error) {
	var likes int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&MediaItem{}).Where("id = ?", id).
			UpdateColumn("likes", gorm.Expr("likes + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("media %s: %w", id, media.ErrNotFound)
		}
		return tx.Model(&MediaItem{}).Where("id = ?", id).Select("likes").Scan(&likes).Error
	})
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("increment likes: %w", err)
	}
	return likes, nil
}

// DeleteMedia removes the row and reports whether it existed.
func (s *Store) DeleteMedia(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&MediaItem{})
	if res.Error != nil {
		return false, fmt.Errorf("delete media: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CountByState reports how many items sit in each processing state.
func (s *Store) CountByState(ctx context.Context) (map[media.State]int64, error) {
	var rows []struct {
		ProcessingState media.State
		N               int64
	}
	err := s.db.WithContext(ctx).Model(&MediaItem{}).
		Select("processing_state, count(*) AS n").
		Group("processing_state").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count media: %w", err)
	}

	counts := make(map[media.State]int64, len(rows))
	for _, r := range rows {
		counts[r.ProcessingState] = r.N
	}
	return counts, nil
}
