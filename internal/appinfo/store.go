// Package appinfo keeps process-wide pipeline counters for the health endpoint.
package appinfo

import (
	"sync/atomic"
	"time"
)

var (
	StartedAt = time.Now()

	ImagesStored    atomic.Int64
	VideosQueued    atomic.Int64
	VideosReady     atomic.Int64
	VideosFailed    atomic.Int64
	UploadsRejected atomic.Int64
	StorageFailures atomic.Int64
	BytesIngested   atomic.Int64
	Likes           atomic.Int64
)

// AddImage: Called when an image is stored and its row written
func AddImage(size int64) {
	ImagesStored.Add(1)
	BytesIngested.Add(size)
}

// AddVideo: Called when a video row is written and its job queued
func AddVideo(size int64) {
	VideosQueued.Add(1)
	BytesIngested.Add(size)
}

type Snapshot struct {
	Uptime          string `json:"uptime"`
	ImagesStored    int64  `json:"imagesStored"`
	VideosQueued    int64  `json:"videosQueued"`
	VideosReady     int64  `json:"videosReady"`
	VideosFailed    int64  `json:"videosFailed"`
	UploadsRejected int64  `json:"uploadsRejected"`
	StorageFailures int64  `json:"storageFailures"`
	BytesIngested   int64  `json:"bytesIngested"`
	Likes           int64  `json:"likes"`
}

func Read() Snapshot {
	return Snapshot{
		Uptime:          time.Since(StartedAt).Round(time.Second).String(),
		ImagesStored:    ImagesStored.Load(),
		VideosQueued:    VideosQueued.Load(),
		VideosReady:     VideosReady.Load(),
		VideosFailed:    VideosFailed.Load(),
		UploadsRejected: UploadsRejected.Load(),
		StorageFailures: StorageFailures.Load(),
		BytesIngested:   BytesIngested.Load(),
		Likes:           Likes.Load(),
	}
}
