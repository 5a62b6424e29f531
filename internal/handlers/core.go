package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"snapify/internal/ingest"
	"snapify/internal/media"
	"snapify/internal/objectstore"
	"snapify/internal/transcode"
	"snapify/pkg/utils"
)

const (
	maxJSONBody = 1 << 20
	retryAfter  = "5"
)

// writeServiceError maps pipeline errors onto the API error envelope.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if ingest.IsRetryable(err) {
		w.Header().Set("Retry-After", retryAfter)
	}
	switch {
	case errors.Is(err, media.ErrValidation):
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, err.Error())
	case errors.Is(err, media.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, utils.ErrResourceNotFound, err.Error())
	case errors.Is(err, media.ErrConflict):
		utils.WriteError(w, http.StatusConflict, utils.ErrResourceConflict, err.Error())
	case errors.Is(err, objectstore.ErrUnavailable):
		h.log.Warn("storage unavailable: %v", err)
		utils.WriteError(w, http.StatusServiceUnavailable, utils.ErrStorageUnavailable, "Storage is temporarily unavailable. Please retry.")
	case errors.Is(err, transcode.ErrQueueClosed):
		utils.WriteError(w, http.StatusServiceUnavailable, utils.ErrServerUnavailable, "Server is shutting down. Please retry.")
	case errors.Is(err, objectstore.ErrStorage):
		h.log.Error("storage failure: %v", err)
		utils.WriteError(w, http.StatusBadGateway, utils.ErrStorageFailed, "Storage rejected the request.")
	default:
		h.log.Error("internal error: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrServerInternal, "Internal server error.")
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			utils.WriteError(w, http.StatusRequestEntityTooLarge, utils.ErrRequestBodyTooLarge, "Request body too large.")
		case errors.Is(err, io.EOF):
			utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "Request body is empty.")
		default:
			utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "Malformed JSON body.")
		}
		return false
	}
	return true
}
