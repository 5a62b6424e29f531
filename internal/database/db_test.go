package database

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapify/internal/media"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedEvent(t *testing.T, s *Store, id string) *Event {
	t.Helper()
	ev := &Event{ID: id, HostID: "host-1", Title: "Wedding", CoverImage: "events/" + id + "/cover.jpg"}
	require.NoError(t, s.CreateEvent(context.Background(), ev))
	return ev
}

func TestCreateMediaRequiresEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateMedia(ctx, &MediaItem{ID: "m1", EventID: "missing", Kind: media.KindImage, ProcessingState: media.StateReady, StorageKey: "k"})
	assert.ErrorIs(t, err, media.ErrNotFound)

	seedEvent(t, s, "ev1")
	item := &MediaItem{ID: "m1", EventID: "ev1", Kind: media.KindImage, ProcessingState: media.StateReady, StorageKey: "k"}
	require.NoError(t, s.CreateMedia(ctx, item))
	assert.False(t, item.UploadedAt.IsZero())

	err = s.CreateMedia(ctx, &MediaItem{ID: "m1", EventID: "ev1", Kind: media.KindImage, ProcessingState: media.StateReady, StorageKey: "k"})
	assert.ErrorIs(t, err, media.ErrConflict)
}

func TestListMediaByEventNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, "ev1")
	seedEvent(t, s, "ev2")

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateMedia(ctx, &MediaItem{
			ID: id, EventID: "ev1", Kind: media.KindImage, ProcessingState: media.StateReady,
			StorageKey: "events/ev1/" + id, UploadedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "other", EventID: "ev2", Kind: media.KindImage, ProcessingState: media.StateReady, StorageKey: "x"}))

	items, err := s.ListMediaByEvent(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestMarkReadyOnlyFromProcessing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, "ev1")

	require.NoError(t, s.CreateMedia(ctx, &MediaItem{
		ID: "v1", EventID: "ev1", Kind: media.KindVideo, ProcessingState: media.StateProcessing,
		StorageKey: "events/ev1/v1.mov",
	}))

	require.NoError(t, s.MarkReady(ctx, "v1", "events/ev1/v1.mov", "events/ev1/preview_v1.mp4"))
	got, err := s.GetMedia(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, media.StateReady, got.ProcessingState)
	assert.Equal(t, "events/ev1/preview_v1.mp4", got.PreviewStorageKey)

	assert.ErrorIs(t, s.MarkFailed(ctx, "v1"), media.ErrConflict)
	assert.ErrorIs(t, s.MarkReady(ctx, "nope", "k", ""), media.ErrNotFound)
	assert.ErrorIs(t, s.MarkReady(ctx, "v1", "", ""), media.ErrValidation)

	got, err = s.GetMedia(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, media.StateReady, got.ProcessingState)
}

func TestMarkFailedKeepsPreviewEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, "ev1")
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "v1", EventID: "ev1", Kind: media.KindVideo, ProcessingState: media.StateProcessing, StorageKey: "events/ev1/v1.mp4"}))

	require.NoError(t, s.MarkFailed(ctx, "v1"))
	got, err := s.GetMedia(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, media.StateFailed, got.ProcessingState)
	assert.Empty(t, got.PreviewStorageKey)
}

func TestConcurrentLikesAreNotLost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, "ev1")
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "m1", EventID: "ev1", Kind: media.KindImage, ProcessingState: media.StateReady, StorageKey: "k"}))

	const n = 40
	var wg sync.WaitGroup
	seen := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			likes, err := s.IncrementLikes(ctx, "m1")
			assert.NoError(t, err)
			seen <- likes
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int]bool{}
	for v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, n)

	got, err := s.GetMedia(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, n, got.Likes)

	_, err = s.IncrementLikes(ctx, "ghost")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestDeleteEventCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, "ev1")
	seedEvent(t, s, "ev2")

	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "i1", EventID: "ev1", Kind: media.KindImage, ProcessingState: media.StateReady, StorageKey: "events/ev1/i1.jpg"}))
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "v1", EventID: "ev1", Kind: media.KindVideo, ProcessingState: media.StateProcessing, StorageKey: "events/ev1/v1.mp4"}))
	require.NoError(t, s.MarkReady(ctx, "v1", "events/ev1/v1.mp4", "events/ev1/preview_v1.mp4"))
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "keep", EventID: "ev2", Kind: media.KindImage, ProcessingState: media.StateReady, StorageKey: "events/ev2/keep.jpg"}))
	require.NoError(t, s.AddGuestbookEntry(ctx, &GuestbookEntry{ID: "g1", EventID: "ev1", SenderName: "Ana", Message: "Congrats"}))

	keys, err := s.DeleteEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"events/ev1/i1.jpg", "events/ev1/v1.mp4", "events/ev1/preview_v1.mp4", "events/ev1/cover.jpg",
	}, keys)

	_, err = s.GetEvent(ctx, "ev1")
	assert.ErrorIs(t, err, media.ErrNotFound)
	_, err = s.GetMedia(ctx, "i1")
	assert.ErrorIs(t, err, media.ErrNotFound)

	entries, err := s.ListGuestbook(ctx, "ev1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.GetMedia(ctx, "keep")
	assert.NoError(t, err)

	_, err = s.DeleteEvent(ctx, "ev1")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestDeleteMediaReportsExistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, "ev1")
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "m1", EventID: "ev1", Kind: media.KindImage, ProcessingState: media.StateReady, StorageKey: "k"}))

	existed, err := s.DeleteMedia(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.DeleteMedia(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestGuestbookAndHostListing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, "ev1")
	require.NoError(t, s.CreateEvent(ctx, &Event{ID: "ev-other", HostID: "host-2"}))

	base := time.Now().UTC()
	require.NoError(t, s.AddGuestbookEntry(ctx, &GuestbookEntry{ID: "g1", EventID: "ev1", Message: "first", CreatedAt: base}))
	require.NoError(t, s.AddGuestbookEntry(ctx, &GuestbookEntry{ID: "g2", EventID: "ev1", Message: "second", CreatedAt: base.Add(time.Second)}))
	assert.ErrorIs(t, s.AddGuestbookEntry(ctx, &GuestbookEntry{ID: "g3", EventID: "none"}), media.ErrNotFound)

	entries, err := s.ListGuestbook(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)

	events, err := s.ListEventsByHost(ctx, "host-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev1", events[0].ID)
}

func TestCountByStateAndMaintain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, "ev1")
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "a", EventID: "ev1", Kind: media.KindImage, ProcessingState: media.StateReady, StorageKey: "k"}))
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "b", EventID: "ev1", Kind: media.KindVideo, ProcessingState: media.StateProcessing, StorageKey: "k2"}))
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "c", EventID: "ev1", Kind: media.KindVideo, ProcessingState: media.StateProcessing, StorageKey: "k3"}))

	counts, err := s.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[media.StateReady])
	assert.Equal(t, int64(2), counts[media.StateProcessing])

	report, err := s.Maintain(ctx)
	require.NoError(t, err)
	assert.Positive(t, report.Pages)
	assert.False(t, report.Vacuumed)
	assert.NoError(t, s.Ping(ctx))
}

func TestBackupProducesReadableCopy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, "ev1")

	dest := filepath.Join(t.TempDir(), "snap", "backup.db")
	size, err := s.Backup(ctx, dest)
	require.NoError(t, err)
	assert.Positive(t, size)

	_, err = s.Backup(ctx, dest)
	assert.Error(t, err, "existing targets are never overwritten")

	copied, err := Open(dest)
	require.NoError(t, err)
	defer copied.Close()
	ev, err := copied.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, "Wedding", ev.Title)
}

func TestStartMaintenanceDoesNotBlock(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	s.StartMaintenance(ctx, time.Hour)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSettleFollowsStateMachine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, "ev1")
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "up", EventID: "ev1", Kind: media.KindImage, ProcessingState: media.StateUploading, StorageKey: "events/ev1/up.jpg"}))
	require.NoError(t, s.CreateMedia(ctx, &MediaItem{ID: "bad", EventID: "ev1", Kind: media.KindVideo, ProcessingState: media.StateProcessing, StorageKey: "events/ev1/bad.mov"}))

	require.NoError(t, s.MarkReady(ctx, "up", "events/ev1/up.jpg", ""))

	require.NoError(t, s.MarkFailed(ctx, "bad"))
	assert.ErrorIs(t, s.MarkFailed(ctx, "bad"), media.ErrConflict)
	assert.ErrorIs(t, s.MarkReady(ctx, "bad", "events/ev1/bad.mov", "events/ev1/preview_bad.mp4"), media.ErrConflict)

	got, err := s.GetMedia(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, media.StateFailed, got.ProcessingState)
	assert.Empty(t, got.PreviewStorageKey)
}
