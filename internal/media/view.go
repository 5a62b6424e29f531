package media

import "time"

// View is a media item as clients see it. URLs are signed per response and
// are empty when signing failed or the item is not ready yet.
type View struct {
	ID              string    `json:"id"`
	EventID         string    `json:"eventId"`
	Type            Kind      `json:"type"`
	URL             string    `json:"url"`
	PreviewURL      string    `json:"previewUrl,omitempty"`
	Caption         string    `json:"caption"`
	UploadedAt      time.Time `json:"uploadedAt"`
	UploaderName    string    `json:"uploaderName"`
	IsWatermarked   bool      `json:"isWatermarked"`
	WatermarkText   string    `json:"watermarkText,omitempty"`
	Likes           int       `json:"likes"`
	ProcessingState State     `json:"processingState"`
}
