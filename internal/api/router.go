package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jsonvault/internal/bridge"
	"github.com/starford/jsonvault/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, d *bridge.Dispatcher, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/documents/{tier}", h.ListDocuments)
	r.Delete("/documents/{tier}", h.WipeTier)
	r.Get("/documents/{tier}/{name}", h.GetDocument)
	r.Put("/documents/{tier}/{name}", h.PutDocument)
	r.Delete("/documents/{tier}/{name}", h.DeleteDocument)

	r.Get("/catalog/{tier}", h.Catalog)
	r.Get("/search", h.Search)

	r.Post("/bridge/{command}", h.Bridge)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
