// Package ingest drives media items through their lifecycle: staging,
// storage, transcoding, notification and removal.
package ingest

import (
	"context"

	"snapify/internal/database"
	"snapify/internal/media"
	"snapify/internal/objectstore"
	"snapify/internal/realtime"
	"snapify/internal/staging"
	"snapify/internal/transcode"
	"snapify/pkg/logger"
)

// Enqueuer accepts transcode jobs without blocking.
type Enqueuer interface {
	Enqueue(job transcode.Job) error
}

type Deps struct {
	Store      *database.Store
	Objects    *objectstore.Gateway
	Staging    *staging.Area
	Notifier   realtime.Publisher
	Transcoder transcode.Transcoder
	Options    transcode.Options
}

type Service struct {
	store      *database.Store
	objects    *objectstore.Gateway
	staging    *staging.Area
	notifier   realtime.Publisher
	transcoder transcode.Transcoder
	opts       transcode.Options
	queue      Enqueuer
	log        *logger.Logger
}

// NewService wires the pipeline. The queue is attached afterwards with
// AttachQueue because it needs ProcessJob as its handler.
func NewService(d Deps) *Service {
	return &Service{
		store:      d.Store,
		objects:    d.Objects,
		staging:    d.Staging,
		notifier:   d.Notifier,
		transcoder: d.Transcoder,
		opts:       d.Options,
		log:        logger.Named("ingest"),
	}
}

func (s *Service) AttachQueue(q Enqueuer) { s.queue = q }

// view signs the item's keys. Processing and failed items carry no URLs.
func (s *Service) view(ctx context.Context, item *database.MediaItem) media.View {
	v := media.View{
		ID:              item.ID,
		EventID:         item.EventID,
		Type:            item.Kind,
		Caption:         item.Caption,
		UploadedAt:      item.UploadedAt,
		UploaderName:    item.UploaderName,
		IsWatermarked:   item.IsWatermarked,
		WatermarkText:   item.WatermarkText,
		Likes:           item.Likes,
		ProcessingState: item.ProcessingState,
	}
	if item.ProcessingState != media.StateReady {
		return v
	}
	v.URL, _ = s.objects.Presign(ctx, item.StorageKey)
	if item.PreviewStorageKey != "" {
		v.PreviewURL, _ = s.objects.Presign(ctx, item.PreviewStorageKey)
	}
	return v
}
