package handlers

import (
	"crypto/subtle"
	"net/http"

	"snapify/internal/ingest"
	"snapify/pkg/utils"
)

// GET /api/events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.FetchEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

// GET /api/events?hostId=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context(), r.URL.Query().Get("hostId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, events)
}

// POST /api/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in ingest.EventInput
	if !decodeJSON(w, r, &in) {
		return
	}
	view, err := h.svc.CreateEvent(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, view)
}

// DeleteEvent removes the event, its media and guestbook, then the stored objects.
//
// DELETE /api/events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEvent(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ValidatePin reports whether pin unlocks the event. Events without a pin accept anything.
//
// POST /api/events/{id}/validate-pin
func (h *Handler) ValidatePin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pin string `json:"pin"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	ev, err := h.store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	ok := ev.Pin == "" || subtle.ConstantTimeCompare([]byte(ev.Pin), []byte(body.Pin)) == 1
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

// POST /api/guestbook
func (h *Handler) AddGuestbookEntry(w http.ResponseWriter, r *http.Request) {
	var in ingest.GuestbookInput
	if !decodeJSON(w, r, &in) {
		return
	}
	entry, err := h.svc.AddGuestbookEntry(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, entry)
}
