package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docket/internal/docservice"
)

const maxUploadBytes = 50 << 20 // 50 MB

// AttachmentHandler serves and accepts sub-files bundled in a document's blob.
type AttachmentHandler struct {
	svc *docservice.Service
}

// NewAttachmentHandler creates an attachment handler.
func NewAttachmentHandler(svc *docservice.Service) *AttachmentHandler {
	return &AttachmentHandler{svc: svc}
}

// List handles GET /docs/{id}/attachments.
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, "list attachments", err)
		return
	}
	list, err := h.svc.Attachments(r.Context(), id)
	if err != nil {
		writeError(w, "list attachments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": list})
}

// ServeFile handles GET /docs/{id}/attachments/{name}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, "get attachment", err)
		return
	}
	name := chi.URLParam(r, "name")
	data, err := h.svc.Attachment(r.Context(), id, name)
	if err != nil {
		writeError(w, "get attachment", err)
		return
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// Upload handles POST /docs/{id}/attachments (multipart/form-data, field "file").
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	id, err := idParam(r)
	if err != nil {
		writeError(w, "upload attachment", err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to read file"))
		return
	}
	if _, err := h.svc.AddAttachment(r.Context(), id, header.Filename, data); err != nil {
		writeError(w, "upload attachment", err)
		return
	}
	writeJSON(w, http.StatusCreated, AttachmentUploadResponse{
		Filename: header.Filename,
		Size:     int64(len(data)),
		URL:      "/docs/" + chi.URLParam(r, "id") + "/attachments/" + header.Filename,
	})
}
