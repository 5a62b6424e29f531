package database

import (
	"time"

	"snapify/internal/media"
)

// Event is owned by the event management surface; the pipeline only reads it
// and relies on the cascade when it is removed.
type Event struct {
	ID          string     `gorm:"primaryKey;type:text" json:"id"`
	HostID      string     `gorm:"index;type:text" json:"hostId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	Code        string     `gorm:"index" json:"code"`
	CoverImage  string     `json:"coverImage"` // storage key or absolute URL
	ExpiresAt   *time.Time `json:"expiresAt"`
	Pin         string     `json:"-"` // checked via validate-pin, never returned
	Views       int        `gorm:"not null;default:0" json:"views"`
	Downloads   int        `gorm:"not null;default:0" json:"downloads"`
	CreatedAt   time.Time  `json:"createdAt"`

	Media     []MediaItem      `gorm:"foreignKey:EventID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Guestbook []GuestbookEntry `gorm:"foreignKey:EventID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// MediaItem is one uploaded photo or video. Signed URLs are never stored here.
type MediaItem struct {
	ID                string      `gorm:"primaryKey;type:text" json:"id"`
	EventID           string      `gorm:"not null;index;type:text" json:"eventId"`
	Kind              media.Kind  `gorm:"not null;type:text" json:"type"`
	ProcessingState   media.State `gorm:"not null;type:text;index" json:"processingState"`
	StorageKey        string      `json:"storageKey"`
	PreviewStorageKey string      `json:"previewStorageKey,omitempty"`
	Caption           string      `json:"caption"`
	UploaderName      string      `json:"uploaderName"`
	UploadedAt        time.Time   `gorm:"index" json:"uploadedAt"`
	IsWatermarked     bool        `json:"isWatermarked"`
	WatermarkText     string      `json:"watermarkText,omitempty"`
	Likes             int         `gorm:"not null;default:0" json:"likes"`
	ContentType       string      `json:"contentType"`
	SizeBytes         int64       `json:"sizeBytes"`
}

type GuestbookEntry struct {
	ID         string    `gorm:"primaryKey;type:text" json:"id"`
	EventID    string    `gorm:"not null;index;type:text" json:"eventId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Keys returns the object keys referenced by the item.
func (m *MediaItem) Keys() []string {
	keys := make([]string, 0, 2)
	if m.StorageKey != "" {
		keys = append(keys, m.StorageKey)
	}
	if m.PreviewStorageKey != "" {
		keys = append(keys, m.PreviewStorageKey)
	}
	return keys
}
