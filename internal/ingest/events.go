package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"snapify/internal/appinfo"
	"snapify/internal/database"
	"snapify/internal/media"
	"snapify/internal/realtime"
	"snapify/pkg/utils"
)

// EventView is an event with freshly signed media URLs.
type EventView struct {
	database.Event
	Media     []media.View              `json:"media"`
	Guestbook []database.GuestbookEntry `json:"guestbook"`
}

// Like adds one like and notifies the event room.
func (s *Service) Like(ctx context.Context, mediaID string) (int, error) {
	item, err := s.store.GetMedia(ctx, mediaID)
	if err != nil {
		return 0, err
	}
	likes, err := s.store.IncrementLikes(ctx, mediaID)
	if err != nil {
		return 0, err
	}
	appinfo.Likes.Add(1)
	s.notifier.Publish(ctx, item.EventID, realtime.NewLike{ID: mediaID, Likes: likes})
	return likes, nil
}

// Delete removes an item's objects (best effort) and then its row. Unknown ids are not an error.
func (s *Service) Delete(ctx context.Context, mediaID string) error {
	item, err := s.store.GetMedia(ctx, mediaID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	for _, key := range item.Keys() {
		s.objects.Delete(ctx, key)
	}
	_, err = s.store.DeleteMedia(ctx, mediaID)
	return err
}

// FetchEvent returns the event, its media (newest first) and its guestbook.
func (s *Service) FetchEvent(ctx context.Context, eventID string) (*EventView, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, ev)
}

// ListEvents returns every event of a host, each resolved like FetchEvent.
func (s *Service) ListEvents(ctx context.Context, hostID string) ([]EventView, error) {
	if hostID == "" {
		return nil, media.Validationf("hostId is required")
	}
	events, err := s.store.ListEventsByHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	out := make([]EventView, 0, len(events))
	for i := range events {
		v, err := s.resolve(ctx, &events[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (s *Service) resolve(ctx context.Context, ev *database.Event) (*EventView, error) {
	items, err := s.store.ListMediaByEvent(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListGuestbook(ctx, ev.ID)
	if err != nil {
		return nil, err
	}

	view := &EventView{Event: *ev, Media: make([]media.View, 0, len(items)), Guestbook: entries}
	if view.Guestbook == nil {
		view.Guestbook = []database.GuestbookEntry{}
	}
	if isStorageKey(ev.CoverImage) {
		view.CoverImage, _ = s.objects.Presign(ctx, ev.CoverImage)
	}
	for i := range items {
		view.Media = append(view.Media, s.view(ctx, &items[i]))
	}
	return view, nil
}

// EventInput carries the fields the event management surface owns.
type EventInput struct {
	ID          string     `json:"id"`
	HostID      string     `json:"hostId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	Code        string     `json:"code"`
	CoverImage  string     `json:"coverImage"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	Pin         string     `json:"pin"`
}

func (s *Service) CreateEvent(ctx context.Context, in EventInput) (*EventView, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if !utils.IsValidKeyFormat(in.ID) {
		return nil, media.Validationf("invalid event id")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, media.Validationf("title is required")
	}

	ev := &database.Event{
		ID:          in.ID,
		HostID:      in.HostID,
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		Code:        in.Code,
		CoverImage:  in.CoverImage,
		ExpiresAt:   in.ExpiresAt,
		Pin:         in.Pin,
	}
	if err := s.store.CreateEvent(ctx, ev); err != nil {
		return nil, err
	}
	return s.resolve(ctx, ev)
}

// DeleteEvent removes the event with all its rows, then its objects best effort.
// Rows are removed even when the store cannot be reached.
func (s *Service) DeleteEvent(ctx context.Context, eventID string) error {
	keys, err := s.store.DeleteEvent(ctx, eventID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		s.objects.Delete(ctx, key)
	}
	s.log.Info("event %s deleted with %d object(s)", eventID, len(keys))
	return nil
}

type GuestbookInput struct {
	EventID    string `json:"eventId"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
}

func (s *Service) AddGuestbookEntry(ctx context.Context, in GuestbookInput) (*database.GuestbookEntry, error) {
	if in.EventID == "" || strings.TrimSpace(in.Message) == "" {
		return nil, media.Validationf("eventId and message are required")
	}
	if len(in.Message) > 2000 {
		return nil, media.Validationf("message is too long")
	}

	entry := &database.GuestbookEntry{
		ID:         uuid.NewString(),
		EventID:    in.EventID,
		SenderName: in.SenderName,
		Message:    in.Message,
	}
	if err := s.store.AddGuestbookEntry(ctx, entry); err != nil {
		return nil, err
	}
	s.notifier.Publish(ctx, in.EventID, realtime.GuestbookMessage{
		ID:         entry.ID,
		EventID:    entry.EventID,
		SenderName: entry.SenderName,
		Message:    entry.Message,
		CreatedAt:  entry.CreatedAt,
	})
	return entry, nil
}

func isStorageKey(s string) bool {
	return s != "" && !strings.Contains(s, "://") && !strings.HasPrefix(s, "data:")
}

func isNotFound(err error) bool {
	return errors.Is(err, media.ErrNotFound)
}
