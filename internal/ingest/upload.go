package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"snapify/internal/appinfo"
	"snapify/internal/database"
	"snapify/internal/media"
	"snapify/internal/objectstore"
	"snapify/internal/realtime"
	"snapify/internal/transcode"
	"snapify/pkg/utils"
)

// Upload is one file plus the metadata the client sent with it.
type Upload struct {
	File        io.Reader
	Filename    string
	ContentType string

	ID            string
	EventID       string
	Kind          string
	Caption       string
	UploadedAt    time.Time
	UploaderName  string
	IsWatermarked bool
	WatermarkText string
}

func (u *Upload) validate() (media.Kind, error) {
	if u.File == nil {
		return "", media.Validationf("no file uploaded")
	}
	if u.ID == "" || u.EventID == "" {
		return "", media.Validationf("id and eventId are required")
	}
	if !utils.IsValidKeyFormat(u.ID) || !utils.IsValidKeyFormat(u.EventID) {
		return "", media.Validationf("id and eventId may only contain letters, digits, '-' and '_'")
	}
	return media.ParseKind(u.Kind)
}

// Ingest stores an image synchronously, or records a video as processing and
// queues its transcode. The staged copy never outlives the call unless a job owns it.
func (s *Service) Ingest(ctx context.Context, u Upload) (*media.View, error) {
	kind, err := u.validate()
	if err != nil {
		appinfo.UploadsRejected.Add(1)
		return nil, err
	}
	if _, err := s.store.GetEvent(ctx, u.EventID); err != nil {
		return nil, err
	}
	// A retried id must be refused before its key is written over.
	if err := s.ensureNewMedia(ctx, u.ID); err != nil {
		return nil, err
	}

	ext := utils.SafeExt(u.Filename)
	staged, err := s.staging.Stage(u.File, ext)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if staged.Size == 0 {
		s.staging.Remove(staged.Path)
		appinfo.UploadsRejected.Add(1)
		return nil, media.Validationf("uploaded file is empty")
	}

	contentType := utils.SniffContentType(staged.Head, u.ContentType)
	if !acceptable(kind, contentType) {
		s.staging.Remove(staged.Path)
		appinfo.UploadsRejected.Add(1)
		return nil, media.Validationf("content type %s does not match type %s", contentType, kind)
	}

	item := &database.MediaItem{
		ID:            u.ID,
		EventID:       u.EventID,
		Kind:          kind,
		StorageKey:    media.OriginalKey(u.EventID, u.ID, ext),
		Caption:       u.Caption,
		UploaderName:  u.UploaderName,
		UploadedAt:    u.UploadedAt,
		IsWatermarked: u.IsWatermarked,
		WatermarkText: u.WatermarkText,
		ContentType:   contentType,
		SizeBytes:     staged.Size,
	}

	if kind == media.KindImage {
		return s.ingestImage(ctx, item, staged.Path)
	}
	return s.ingestVideo(ctx, item, staged.Path)
}

func (s *Service) ingestImage(ctx context.Context, item *database.MediaItem, stagedPath string) (*media.View, error) {
	// Upload removes the staged file whatever happens.
	if _, err := s.objects.Upload(ctx, stagedPath, item.StorageKey, item.ContentType); err != nil {
		appinfo.StorageFailures.Add(1)
		return nil, err
	}

	item.ProcessingState = media.StateReady
	if err := s.store.CreateMedia(ctx, item); err != nil {
		// On a conflict the key belongs to the existing row.
		if !errors.Is(err, media.ErrConflict) {
			s.objects.Delete(ctx, item.StorageKey)
		}
		return nil, err
	}
	appinfo.AddImage(item.SizeBytes)

	v := s.view(ctx, item)
	s.notifier.Publish(ctx, item.EventID, realtime.MediaUploaded{Media: v})
	s.log.Info("image %s stored for event %s", item.ID, item.EventID)
	return &v, nil
}

func (s *Service) ingestVideo(ctx context.Context, item *database.MediaItem, stagedPath string) (*media.View, error) {
	if s.queue == nil {
		s.staging.Remove(stagedPath)
		return nil, transcode.ErrQueueClosed
	}

	// The original key is known up front; it only resolves once the job uploads it.
	item.ProcessingState = media.StateProcessing
	if err := s.store.CreateMedia(ctx, item); err != nil {
		s.staging.Remove(stagedPath)
		return nil, err
	}

	v := s.view(ctx, item)
	s.notifier.Publish(ctx, item.EventID, realtime.MediaUploaded{Media: v})

	job := transcode.VideoJob{
		EventID:     item.EventID,
		MediaID:     item.ID,
		StagedPath:  stagedPath,
		ContentType: item.ContentType,
		OriginalKey: item.StorageKey,
		PreviewKey:  media.PreviewKey(item.EventID, item.ID),
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.staging.Remove(stagedPath)
		if markErr := s.store.MarkFailed(context.WithoutCancel(ctx), item.ID); markErr != nil {
			s.log.Error("could not mark %s failed: %v", item.ID, markErr)
		}
		appinfo.VideosFailed.Add(1)
		return nil, fmt.Errorf("queue video %s: %w", item.ID, err)
	}
	appinfo.AddVideo(item.SizeBytes)

	s.log.Info("video %s queued for event %s", item.ID, item.EventID)
	return &v, nil
}

func (s *Service) ensureNewMedia(ctx context.Context, id string) error {
	_, err := s.store.GetMedia(ctx, id)
	switch {
	case err == nil:
		return fmt.Errorf("media %s already exists: %w", id, media.ErrConflict)
	case errors.Is(err, media.ErrNotFound):
		return nil
	default:
		return err
	}
}

// acceptable rejects uploads whose bytes clearly contradict the declared kind.
// Containers the sniffer cannot identify are let through.
func acceptable(kind media.Kind, contentType string) bool {
	if contentType == "" || contentType == "application/octet-stream" {
		return true
	}
	return strings.HasPrefix(contentType, string(kind)+"/")
}

// IsRetryable reports whether the caller may retry the same upload later.
func IsRetryable(err error) bool {
	return errors.Is(err, objectstore.ErrUnavailable) || errors.Is(err, transcode.ErrQueueClosed)
}
