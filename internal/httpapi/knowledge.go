package httpapi

import (
	"errors"
	"net/http"

	"github.com/storefront-labs/concierge/internal/knowledge"
)

type seedRequest struct {
	Entries []knowledge.SeedEntry `json:"entries"`
}

type seedResponse struct {
	Seeded int `json:"seeded"`
}

// handleKnowledgeSeed replaces the whole knowledge base with the posted
// entries. The swap is atomic: a failed seed leaves the previous set
// serving.
func (s *Server) handleKnowledgeSeed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Entries) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "entries must not be empty")
		return
	}

	count, err := s.seeder.Seed(r.Context(), req.Entries)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "seed_failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, seedResponse{Seeded: count})
}
