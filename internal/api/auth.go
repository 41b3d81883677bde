package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/colorfulme/api/internal/models"
)

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// apiKeyAuth resolves the caller from an X-API-Key header (or bearer token)
// by SHA-256 hash lookup. The raw key is never stored or logged.
func (s *Server) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractAPIKey(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		sum := sha256.Sum256([]byte(raw))
		key, err := s.apiKeys.FindActiveByHash(r.Context(), hex.EncodeToString(sum[:]))
		if err != nil {
			s.log.Error("api key lookup", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if key == nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		limited, err := s.overRateLimit(r.Context(), key)
		if err != nil {
			s.log.Error("rate limit check", "key_id", key.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if limited {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if err := s.apiKeys.TouchLastUsed(r.Context(), key.ID); err != nil {
			s.log.Warn("touch api key", "err", err)
		}

		ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// overRateLimit enforces the active plan's requests-per-minute allowance by
// counting usage events recorded for the key in the trailing minute.
func (s *Server) overRateLimit(ctx context.Context, key *models.APIKey) (bool, error) {
	plan, err := s.plans.ActivePlan(ctx, key.UserID)
	if err != nil {
		return false, err
	}
	if plan.APIRPM <= 0 {
		return false, nil
	}
	count, err := s.apiKeys.CountUsageSince(ctx, key.ID, time.Now().Add(-time.Minute))
	if err != nil {
		return false, err
	}
	return count >= plan.APIRPM, nil
}

func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func apiKeyFrom(ctx context.Context) *models.APIKey {
	key, _ := ctx.Value(apiKeyContextKey).(*models.APIKey)
	return key
}
