package handlers

import (
	"io"
	"net/http"

	"snapify/internal/caption"
	"snapify/pkg/utils"
)

// Caption suggests a caption for an image. It always answers 200: any failure
// yields the default caption.
//
// POST /api/captions
func (h *Handler) Caption(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptionImage)

	text := caption.DefaultCaption
	if err := r.ParseMultipartForm(multipartMemory); err == nil {
		defer r.MultipartForm.RemoveAll()
		if file, _, err := r.FormFile("file"); err == nil {
			data, readErr := io.ReadAll(file)
			file.Close()
			if readErr == nil && len(data) > 0 {
				text = h.captioner.Caption(r.Context(), data)
			}
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"caption": text})
}

// DescribeEvent drafts an event description. Like Caption it never fails.
//
// POST /api/events/describe
func (h *Handler) DescribeEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
		Date  string `json:"date"`
		Type  string `json:"type"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Type == "" {
		body.Type = "party"
	}
	text := h.captioner.Describe(r.Context(), body.Title, body.Date, body.Type)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"description": text})
}
