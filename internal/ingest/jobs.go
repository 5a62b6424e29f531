package ingest

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"snapify/internal/appinfo"
	"snapify/internal/media"
	"snapify/internal/realtime"
	"snapify/internal/transcode"
)

// ProcessJob is the transcode queue's handler.
func (s *Service) ProcessJob(ctx context.Context, job transcode.Job) error {
	switch j := job.(type) {
	case transcode.VideoJob:
		return s.processVideo(ctx, j)
	default:
		return fmt.Errorf("%w: %T", transcode.ErrUnknownJob, job)
	}
}

// processVideo transcodes, uploads original and preview, then settles the row.
// Failures mark the item failed; there is no retry.
func (s *Service) processVideo(ctx context.Context, j transcode.VideoJob) error {
	defer s.staging.Remove(j.StagedPath)

	preview, err := s.transcoder.Transcode(ctx, j.StagedPath, s.opts)
	if err != nil {
		return s.fail(ctx, j, err)
	}
	defer s.staging.Remove(preview)

	// Plain group: a slow or failed upload must not cancel the other one.
	var g errgroup.Group
	g.Go(func() error {
		_, err := s.objects.Upload(ctx, j.StagedPath, j.OriginalKey, j.ContentType)
		return err
	})
	g.Go(func() error {
		_, err := s.objects.Upload(ctx, preview, j.PreviewKey, "video/mp4")
		return err
	})
	if err := g.Wait(); err != nil {
		appinfo.StorageFailures.Add(1)
		return s.fail(ctx, j, err)
	}

	if err := s.store.MarkReady(ctx, j.MediaID, j.OriginalKey, j.PreviewKey); err != nil {
		s.objects.Delete(ctx, j.OriginalKey)
		s.objects.Delete(ctx, j.PreviewKey)
		// A deleted item has nothing left to mark.
		if errors.Is(err, media.ErrNotFound) {
			return fmt.Errorf("settle %s: %w", j.MediaID, err)
		}
		return s.fail(ctx, j, fmt.Errorf("settle: %w", err))
	}
	appinfo.VideosReady.Add(1)

	item, err := s.store.GetMedia(ctx, j.MediaID)
	if err != nil {
		return fmt.Errorf("reload %s: %w", j.MediaID, err)
	}
	s.notifier.Publish(ctx, j.EventID, realtime.MediaProcessed{Media: s.view(ctx, item)})
	return nil
}

func (s *Service) fail(ctx context.Context, j transcode.VideoJob, cause error) error {
	appinfo.VideosFailed.Add(1)
	if err := s.store.MarkFailed(ctx, j.MediaID); err != nil {
		s.log.Error("could not mark %s failed: %v", j.MediaID, err)
	}
	return fmt.Errorf("video %s: %w", j.MediaID, cause)
}
