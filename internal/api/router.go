package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docket/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	ah := NewAttachmentHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents.
	r.Get("/docs", h.ListDocs)
	r.Post("/docs", h.CreateDoc)
	r.Get("/docs/{id}", h.GetDoc)
	r.Put("/docs/{id}", h.UpdateDoc)
	r.Delete("/docs/{id}", h.DeleteDoc)
	r.Get("/docs/{id}/preview", h.PreviewDoc)

	// Bundled attachments.
	r.Get("/docs/{id}/attachments", ah.List)
	r.Post("/docs/{id}/attachments", ah.Upload)
	r.Get("/docs/{id}/attachments/{name}", ah.ServeFile)

	// Tags.
	r.Get("/tags", h.ListTags)
	r.Post("/tags", h.CreateTag)
	r.Patch("/tags/{id}", h.UpdateTag)
	r.Delete("/tags/{id}", h.DeleteTag)
	r.Get("/tags/{id}/usage", h.TagUsage)

	// Copy into another store file.
	r.Post("/copy", h.Copy)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
