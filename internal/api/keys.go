package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type createKeyRequest struct {
	Name string `json:"name"`
}

type keyResponse struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// handleCreateKey issues a key for the caller's account. The response carries
// the raw token once; it cannot be retrieved again.
func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	caller := apiKeyFrom(r.Context())

	var req createKeyRequest
	// An empty or absent body means a default key name.
	_ = json.NewDecoder(r.Body).Decode(&req)

	key, token, err := s.keyIssuer.Issue(r.Context(), caller.UserID, req.Name)
	if err != nil {
		s.log.Error("issue api key", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.recordUsage(r, http.StatusOK, 0)
	writeJSON(w, http.StatusOK, map[string]any{
		"api_key":    token,
		"key_id":     key.ID,
		"name":       key.Name,
		"key_prefix": key.KeyPrefix,
	})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	caller := apiKeyFrom(r.Context())

	keys, err := s.keyIssuer.List(r.Context(), caller.UserID)
	if err != nil {
		s.log.Error("list api keys", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]keyResponse, 0, len(keys))
	for _, k := range keys {
		item := keyResponse{
			ID:         k.ID,
			Name:       k.Name,
			Prefix:     k.KeyPrefix,
			IsActive:   k.IsActive,
			LastUsedAt: k.LastUsedAt,
		}
		if !k.CreatedAt.IsZero() {
			created := k.CreatedAt
			item.CreatedAt = &created
		}
		resp = append(resp, item)
	}

	s.recordUsage(r, http.StatusOK, 0)
	writeJSON(w, http.StatusOK, map[string]any{"keys": resp})
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	caller := apiKeyFrom(r.Context())

	keyID, err := strconv.ParseInt(chi.URLParam(r, "keyID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	ok, err := s.keyIssuer.Revoke(r.Context(), keyID, caller.UserID)
	if err != nil {
		s.log.Error("revoke api key", "key_id", keyID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		s.recordUsage(r, http.StatusNotFound, 0)
		writeError(w, http.StatusNotFound, "API key not found")
		return
	}

	s.recordUsage(r, http.StatusOK, 0)
	writeJSON(w, http.StatusOK, map[string]any{"revoked": true, "key_id": keyID})
}
