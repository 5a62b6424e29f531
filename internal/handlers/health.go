package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"snapify/internal/appinfo"
	"snapify/internal/media"
	"snapify/internal/realtime"
	"snapify/internal/transcode"
	"snapify/pkg/utils"
)

const healthTimeout = 3 * time.Second

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type HealthDTO struct {
	Status        string                `json:"status"`
	Version       string                `json:"version,omitempty"`
	Database      componentStatus       `json:"db"`
	Storage       componentStatus       `json:"storage"`
	Relay         *componentStatus      `json:"relay,omitempty"`
	Queue         *transcode.Stats      `json:"queue,omitempty"`
	Realtime      *realtime.HubStats    `json:"realtime,omitempty"`
	Clients       int64                 `json:"wsClients"`
	Media         map[media.State]int64 `json:"media,omitempty"`
	Pipeline      appinfo.Snapshot      `json:"pipeline"`
	UptimeSeconds int64                 `json:"uptimeSeconds"`
	RamUsage      uint64                `json:"ramUsage"`
	NumGoroutines int                   `json:"numGoroutines"`
}

// Health reports dependency reachability and pipeline counters. It answers 503
// when the database or the object store cannot be reached.
//
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	dto := HealthDTO{
		Status:        "ok",
		Version:       h.version,
		Database:      componentStatus{Status: "unconfigured"},
		Pipeline:      appinfo.Read(),
		UptimeSeconds: int64(time.Since(appinfo.StartedAt).Seconds()),
		RamUsage:      m.Alloc,
		NumGoroutines: runtime.NumGoroutine(),
	}

	if h.store != nil {
		dto.Database = check(ctx, h.store)
	}
	if h.objects != nil {
		dto.Storage = status(h.objects.Health(ctx))
	} else {
		dto.Storage = componentStatus{Status: "unconfigured"}
	}
	if h.relay != nil {
		rs := check(ctx, h.relay)
		dto.Relay = &rs
	}
	if h.queue != nil {
		qs := h.queue.Stats()
		dto.Queue = &qs
	}
	if h.hub != nil {
		hs := h.hub.Stats()
		dto.Realtime = &hs
	}
	if h.ws != nil {
		dto.Clients = h.ws.Clients()
	}
	if h.store != nil && dto.Database.Status == "connected" {
		if counts, err := h.store.CountByState(ctx); err == nil {
			dto.Media = counts
		}
	}

	code := http.StatusOK
	if dto.Database.Status != "connected" || dto.Storage.Status != "connected" {
		dto.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	utils.WriteJSON(w, code, dto)
}

func check(ctx context.Context, p Pinger) componentStatus {
	if p == nil {
		return componentStatus{Status: "unconfigured"}
	}
	return status(p.Ping(ctx))
}

func status(err error) componentStatus {
	if err != nil {
		return componentStatus{Status: "error", Error: err.Error()}
	}
	return componentStatus{Status: "connected"}
}
