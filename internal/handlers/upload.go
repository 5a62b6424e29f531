package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"snapify/internal/ingest"
	"snapify/pkg/utils"
)

// UploadMedia accepts one multipart file plus its metadata.
// Images answer once stored; videos answer as processing and finish in the background.
//
// POST /api/media
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, http.StatusRequestEntityTooLarge, utils.ErrRequestBodyTooLarge, "File exceeds size limit.")
			return
		}
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "Expected a multipart form.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "No file uploaded.")
		return
	}
	defer file.Close()

	uploadedAt, err := parseTimestamp(r.FormValue("uploadedAt"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "uploadedAt must be an RFC 3339 timestamp.")
		return
	}

	view, err := h.svc.Ingest(r.Context(), ingest.Upload{
		File:          file,
		Filename:      header.Filename,
		ContentType:   header.Header.Get("Content-Type"),
		ID:            r.FormValue("id"),
		EventID:       r.FormValue("eventId"),
		Kind:          r.FormValue("type"),
		Caption:       r.FormValue("caption"),
		UploadedAt:    uploadedAt,
		UploaderName:  r.FormValue("uploaderName"),
		IsWatermarked: utils.ParseBool(r.FormValue("isWatermarked")),
		WatermarkText: r.FormValue("watermarkText"),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, view)
}

// PUT /api/media/{id}/like
func (h *Handler) LikeMedia(w http.ResponseWriter, r *http.Request) {
	likes, err := h.svc.Like(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "likes": likes})
}

// DeleteMedia is idempotent: unknown ids succeed too.
//
// DELETE /api/media/{id}
func (h *Handler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
