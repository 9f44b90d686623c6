package api

import (
	"github.com/starford/jsonvault/internal/bridge"
	"github.com/starford/jsonvault/internal/index"
	"github.com/starford/jsonvault/internal/models"
)

// DocumentListResponse lists the document names of one tier.
type DocumentListResponse struct {
	Tier      models.Tier `json:"tier" example:"private" validate:"required"`
	Documents []string    `json:"documents" validate:"required"`
}

// CatalogEntry is the catalog view of one document.
type CatalogEntry = index.DocumentRow

// CatalogResponse wraps a page of catalog entries.
type CatalogResponse struct {
	Documents []CatalogEntry `json:"documents" validate:"required"`
	Total     int            `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// BridgeResponse is the envelope returned by POST /bridge/{command}.
type BridgeResponse = bridge.Result
