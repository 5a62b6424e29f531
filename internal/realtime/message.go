// Package realtime fans pipeline notifications out to everyone viewing an event.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"snapify/internal/media"
)

const (
	TypeMediaUploaded  = "media_uploaded"
	TypeMediaProcessed = "media_processed"
	TypeNewLike        = "new_like"
	TypeNewMessage     = "new_message"
)

// Message is a notification for one event room.
type Message interface {
	Type() string
	payload() any
}

// MediaUploaded announces a new item. Videos arrive here without a URL.
type MediaUploaded struct{ Media media.View }

// MediaProcessed announces that a video finished transcoding.
type MediaProcessed struct{ Media media.View }

type NewLike struct {
	ID    string `json:"id"`
	Likes int    `json:"likes"`
}

type GuestbookMessage struct {
	ID         string    `json:"id"`
	EventID    string    `json:"eventId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (MediaUploaded) Type() string    { return TypeMediaUploaded }
func (MediaProcessed) Type() string   { return TypeMediaProcessed }
func (NewLike) Type() string          { return TypeNewLike }
func (GuestbookMessage) Type() string { return TypeNewMessage }

func (m MediaUploaded) payload() any    { return m.Media }
func (m MediaProcessed) payload() any   { return m.Media }
func (m NewLike) payload() any          { return m }
func (m GuestbookMessage) payload() any { return m }

// Envelope is the JSON frame sent to websocket clients and across the relay.
type Envelope struct {
	Type    string          `json:"type"`
	EventID string          `json:"eventId"`
	Data    json.RawMessage `json:"data"`
	Origin  string          `json:"origin,omitempty"`
	Ts      int64           `json:"ts"`
}

// NewEnvelope encodes msg for eventID.
func NewEnvelope(eventID, origin string, msg Message) (Envelope, error) {
	data, err := json.Marshal(msg.payload())
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return Envelope{
		Type:    msg.Type(),
		EventID: eventID,
		Data:    data,
		Origin:  origin,
		Ts:      time.Now().UnixMilli(),
	}, nil
}

// Decode returns the typed message carried by env.
func (env Envelope) Decode() (Message, error) {
	switch env.Type {
	case TypeMediaUploaded:
		var v media.View
		err := json.Unmarshal(env.Data, &v)
		return MediaUploaded{Media: v}, err
	case TypeMediaProcessed:
		var v media.View
		err := json.Unmarshal(env.Data, &v)
		return MediaProcessed{Media: v}, err
	case TypeNewLike:
		var v NewLike
		err := json.Unmarshal(env.Data, &v)
		return v, err
	case TypeNewMessage:
		var v GuestbookMessage
		err := json.Unmarshal(env.Data, &v)
		return v, err
	}
	return nil, fmt.Errorf("unknown message type %q", env.Type)
}
