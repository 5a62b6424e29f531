package handlers

import (
	"context"
	"net/http"

	"snapify/internal/caption"
	"snapify/internal/database"
	"snapify/internal/ingest"
	"snapify/internal/objectstore"
	"snapify/internal/realtime"
	"snapify/internal/transcode"
	"snapify/pkg/logger"
)

const (
	DefaultMaxUploadSize = 500 << 20

	// Parts beyond this are spooled to temp files by mime/multipart.
	multipartMemory = 32 << 20

	// Images sent to the caption model are small; anything larger is refused.
	maxCaptionImage = 20 << 20
)

// QueueStats is the part of the transcode queue the health endpoint reads.
type QueueStats interface {
	Stats() transcode.Stats
}

// Pinger is any dependency with a cheap liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Service   *ingest.Service
	Store     *database.Store
	Objects   *objectstore.Gateway
	Queue     QueueStats
	Hub       *realtime.Hub
	WS        *realtime.WSServer
	Relay     Pinger
	Captioner caption.Captioner

	MaxUploadSize int64
	Version       string
}

// Handler serves the gallery API.
type Handler struct {
	svc       *ingest.Service
	store     *database.Store
	objects   *objectstore.Gateway
	queue     QueueStats
	hub       *realtime.Hub
	ws        *realtime.WSServer
	relay     Pinger
	captioner caption.Captioner

	maxUpload int64
	version   string
	log       *logger.Logger
}

func New(d Deps) *Handler {
	if d.MaxUploadSize <= 0 {
		d.MaxUploadSize = DefaultMaxUploadSize
	}
	if d.Captioner == nil {
		d.Captioner = caption.Static{}
	}
	return &Handler{
		svc:       d.Service,
		store:     d.Store,
		objects:   d.Objects,
		queue:     d.Queue,
		hub:       d.Hub,
		ws:        d.WS,
		relay:     d.Relay,
		captioner: d.Captioner,
		maxUpload: d.MaxUploadSize,
		version:   d.Version,
		log:       logger.Named("http"),
	}
}

// Routes registers every endpoint on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Media
	mux.HandleFunc("POST /api/media", h.UploadMedia)
	mux.HandleFunc("PUT /api/media/{id}/like", h.LikeMedia)
	mux.HandleFunc("DELETE /api/media/{id}", h.DeleteMedia)

	// Events
	mux.HandleFunc("GET /api/events", h.ListEvents)
	mux.HandleFunc("POST /api/events", h.CreateEvent)
	mux.HandleFunc("POST /api/events/describe", h.DescribeEvent)
	mux.HandleFunc("GET /api/events/{id}", h.GetEvent)
	mux.HandleFunc("DELETE /api/events/{id}", h.DeleteEvent)
	mux.HandleFunc("POST /api/events/{id}/validate-pin", h.ValidatePin)
	mux.HandleFunc("POST /api/guestbook", h.AddGuestbookEntry)

	mux.HandleFunc("POST /api/captions", h.Caption)
	mux.HandleFunc("GET /api/health", h.Health)

	if h.ws != nil {
		mux.Handle("GET /ws", h.ws)
	}
	return mux
}
