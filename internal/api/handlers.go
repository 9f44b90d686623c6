package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jsonvault/internal/apperr"
	"github.com/starford/jsonvault/internal/bridge"
	"github.com/starford/jsonvault/internal/checksum"
	"github.com/starford/jsonvault/internal/docservice"
	"github.com/starford/jsonvault/internal/models"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc    *docservice.Service
	bridge *bridge.Dispatcher
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service, d *bridge.Dispatcher) *Handler {
	return &Handler{svc: svc, bridge: d}
}

func tierParam(r *http.Request) (models.Tier, error) {
	t, err := models.ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperr.ErrInvalidArgument, err)
	}
	return t, nil
}

// nameParam returns the document name. chi matches against the raw path
// only when the request carries one, so the segment is decoded exactly once.
func nameParam(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return raw
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDocuments handles GET /api/documents/{tier}.
//
//	@Summary		List document names of a tier
//	@Tags			documents
//	@Produce		json
//	@Param			tier	path		string	true	"Tier"	Enums(synced, private)
//	@Param			ext		query		string	false	"Only names ending in ext"
//	@Success		200		{object}	DocumentListResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{tier} [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	tier, err := tierParam(r)
	if err != nil {
		writeError(w, "list documents failed", err)
		return
	}
	names, err := h.svc.List(r.Context(), tier, r.URL.Query().Get("ext"))
	if err != nil {
		writeError(w, "list documents failed", err, slog.String("tier", tier.String()))
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Tier: tier, Documents: names})
}

// GetDocument handles GET /api/documents/{tier}/{name}. The body is returned
// exactly as stored.
//
//	@Summary		Get a document
//	@Tags			documents
//	@Produce		json
//	@Param			tier	path	string	true	"Tier"	Enums(synced, private)
//	@Param			name	path	string	true	"Document name"
//	@Success		200		"Raw document bytes"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{tier}/{name} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	tier, err := tierParam(r)
	if err != nil {
		writeError(w, "get document failed", err)
		return
	}
	name := nameParam(r)
	data, err := h.svc.Get(r.Context(), tier, name)
	if err != nil {
		writeError(w, "get document failed", err, slog.String("tier", tier.String()), slog.String("name", name))
		return
	}

	etag := checksum.ETag(data)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// PutDocument handles PUT /api/documents/{tier}/{name}. The request body is
// stored verbatim.
//
//	@Summary		Create or replace a document
//	@Tags			documents
//	@Accept			json
//	@Param			tier	path	string	true	"Tier"	Enums(synced, private)
//	@Param			name	path	string	true	"Document name"
//	@Success		204		"Stored"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{tier}/{name} [put]
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	tier, err := tierParam(r)
	if err != nil {
		writeError(w, "put document failed", err)
		return
	}
	name := nameParam(r)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if err := h.svc.Set(r.Context(), tier, name, body); err != nil {
		writeError(w, "put document failed", err, slog.String("tier", tier.String()), slog.String("name", name))
		return
	}
	w.Header().Set("ETag", checksum.ETag(body))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocument handles DELETE /api/documents/{tier}/{name}.
//
//	@Summary		Delete a document
//	@Tags			documents
//	@Param			tier	path	string	true	"Tier"	Enums(synced, private)
//	@Param			name	path	string	true	"Document name"
//	@Success		204		"Document deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{tier}/{name} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	tier, err := tierParam(r)
	if err != nil {
		writeError(w, "delete document failed", err)
		return
	}
	name := nameParam(r)
	if err := h.svc.Remove(r.Context(), tier, name); err != nil {
		writeError(w, "delete document failed", err, slog.String("tier", tier.String()), slog.String("name", name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WipeTier handles DELETE /api/documents/{tier}.
//
//	@Summary		Delete every document of a tier
//	@Tags			documents
//	@Param			tier	path	string	true	"Tier"	Enums(synced, private)
//	@Success		204		"Tier emptied"
//	@Security		BearerAuth
//	@Router			/documents/{tier} [delete]
func (h *Handler) WipeTier(w http.ResponseWriter, r *http.Request) {
	tier, err := tierParam(r)
	if err != nil {
		writeError(w, "wipe failed", err)
		return
	}
	if err := h.svc.Wipe(r.Context(), tier); err != nil {
		writeError(w, "wipe failed", err, slog.String("tier", tier.String()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Catalog handles GET /api/catalog/{tier}.
//
//	@Summary		Page through catalog entries of a tier
//	@Tags			catalog
//	@Produce		json
//	@Param			tier	path		string	true	"Tier"	Enums(synced, private)
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(name, updated_at, size)
//	@Success		200		{object}	CatalogResponse
//	@Security		BearerAuth
//	@Router			/catalog/{tier} [get]
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	tier, err := tierParam(r)
	if err != nil {
		writeError(w, "catalog failed", err)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.Catalog(r.Context(), tier, limit, offset, q.Get("sort"))
	if err != nil {
		writeError(w, "catalog failed", err, slog.String("tier", tier.String()))
		return
	}
	writeJSON(w, http.StatusOK, CatalogResponse{Documents: rows, Total: total})
}

// Search handles GET /api/search.
//
//	@Summary		Substring search across cataloged documents
//	@Tags			catalog
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			tier	query		string	false	"Restrict to one tier"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	var tiers []models.Tier
	if raw := r.URL.Query().Get("tier"); raw != "" {
		t, err := models.ParseTier(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		tiers = append(tiers, t)
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.svc.Search(r.Context(), q, limit, tiers...)
	if err != nil {
		writeError(w, "search failed", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Bridge handles POST /api/bridge/{command}. The body is a JSON array of
// positional arguments and may be empty.
//
//	@Summary		Run a bridge command
//	@Tags			bridge
//	@Accept			json
//	@Produce		json
//	@Param			command	path		string	true	"Command name"
//	@Success		200		{object}	BridgeResponse
//	@Failure		400		{object}	BridgeResponse
//	@Failure		404		{object}	BridgeResponse
//	@Security		BearerAuth
//	@Router			/bridge/{command} [post]
func (h *Handler) Bridge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	var args []json.RawMessage
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("body must be a JSON array"))
			return
		}
	}

	res := h.bridge.Execute(r.Context(), chi.URLParam(r, "command"), args)
	writeJSON(w, statusFor(res.Err()), res)
}
