package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/colorfulme/api/internal/models"
)

const (
	apiTokenPrefix    = "cmk"
	defaultAPIKeyName = "Default Key"
	apiKeyPrefixLen   = 12
	maxAPIKeyNameLen  = 80
)

// APIKeyStore is the persistence contract for key lifecycle operations.
type APIKeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	ListByUser(ctx context.Context, userID string) ([]models.APIKey, error)
	Revoke(ctx context.Context, keyID int64, userID string) (bool, error)
}

// APIKeyService issues and revokes API keys. The raw token is returned exactly
// once at issue time; only its SHA-256 digest is persisted.
type APIKeyService struct {
	log  *slog.Logger
	keys APIKeyStore
}

func NewAPIKeyService(log *slog.Logger, keys APIKeyStore) *APIKeyService {
	return &APIKeyService{log: log, keys: keys}
}

// Issue creates a key and returns it together with the raw token.
func (s *APIKeyService) Issue(ctx context.Context, userID, name string) (*models.APIKey, string, error) {
	name = truncate(strings.TrimSpace(name), maxAPIKeyNameLen)
	if name == "" {
		name = defaultAPIKeyName
	}

	token, err := generateToken(apiTokenPrefix)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256([]byte(token))

	key := &models.APIKey{
		UserID:    userID,
		Name:      name,
		KeyPrefix: token[:apiKeyPrefixLen],
		KeyHash:   hex.EncodeToString(sum[:]),
		IsActive:  true,
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, "", fmt.Errorf("create api key: %w", err)
	}

	s.log.Info("api key issued", "user_id", userID, "key_id", key.ID, "prefix", key.KeyPrefix)
	return key, token, nil
}

// IssueInitial issues a default key for a freshly provisioned account. It is a
// no-op when the user already holds any key, revoked ones included.
func (s *APIKeyService) IssueInitial(ctx context.Context, userID string) (*models.APIKey, string, error) {
	keys, err := s.keys.ListByUser(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("list api keys: %w", err)
	}
	if len(keys) > 0 {
		return nil, "", nil
	}
	return s.Issue(ctx, userID, defaultAPIKeyName)
}

func (s *APIKeyService) List(ctx context.Context, userID string) ([]models.APIKey, error) {
	return s.keys.ListByUser(ctx, userID)
}

// Revoke disables one of the user's keys. Reports false on a miss so callers
// can answer with not-found.
func (s *APIKeyService) Revoke(ctx context.Context, keyID int64, userID string) (bool, error) {
	ok, err := s.keys.Revoke(ctx, keyID, userID)
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Info("api key revoked", "user_id", userID, "key_id", keyID)
	}
	return ok, nil
}

func generateToken(prefix string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api token: %w", err)
	}
	return prefix + "_" + base64.RawURLEncoding.EncodeToString(buf), nil
}
