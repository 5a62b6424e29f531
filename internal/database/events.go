package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"snapify/internal/media"
)

func (s *Store) CreateEvent(ctx context.Context, ev *Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("event %s: %w", ev.ID, media.ErrConflict)
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*Event, error) {
	var ev Event
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("event %s: %w", id, media.ErrNotFound)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &ev, nil
}

// ListEventsByHost returns the host's events, newest first.
func (s *Store) ListEventsByHost(ctx context.Context, hostID string) ([]Event, error) {
	var events []Event
	err := s.db.WithContext(ctx).
		Where("host_id = ?", hostID).
		Order("created_at DESC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// DeleteEvent removes the event together with its media and guestbook rows
// and returns the object keys the removed media referenced. The caller owns
// removing those objects.
func (s *Store) DeleteEvent(ctx context.Context, id string) ([]string, error) {
	var keys []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ev Event
		if err := tx.Where("id = ?", id).First(&ev).Error; err != nil {
			if isNotFound(err) {
				return fmt.Errorf("event %s: %w", id, media.ErrNotFound)
			}
			return err
		}

		var items []MediaItem
		if err := tx.Select("id, storage_key, preview_storage_key").
			Where("event_id = ?", id).Find(&items).Error; err != nil {
			return err
		}
		for i := range items {
			keys = append(keys, items[i].Keys()...)
		}
		if ev.CoverImage != "" && !isAbsoluteURL(ev.CoverImage) {
			keys = append(keys, ev.CoverImage)
		}

		// Children first, so the result does not depend on the FK pragma.
		if err := tx.Where("event_id = ?", id).Delete(&MediaItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", id).Delete(&GuestbookEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&ev).Error
	})
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("delete event: %w", err)
	}
	return keys, nil
}

func (s *Store) eventExists(tx *gorm.DB, id string) (bool, error) {
	var n int64
	if err := tx.Model(&Event{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) AddGuestbookEntry(ctx context.Context, entry *GuestbookEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.eventExists(tx, entry.EventID)
		if err != nil {
			return fmt.Errorf("add guestbook entry: %w", err)
		}
		if !ok {
			return fmt.Errorf("event %s: %w", entry.EventID, media.ErrNotFound)
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("add guestbook entry: %w", err)
		}
		return nil
	})
}

// ListGuestbook returns the event's entries, newest first.
func (s *Store) ListGuestbook(ctx context.Context, eventID string) ([]GuestbookEntry, error) {
	var entries []GuestbookEntry
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list guestbook: %w", err)
	}
	return entries, nil
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "data:")
}
