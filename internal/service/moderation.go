package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// blockedTerms is the authoritative local denylist. Matching is
// case-insensitive substring; a hit always blocks regardless of any external
// verdict.
var blockedTerms = []string{
	"nude",
	"nudity",
	"porn",
	"sexual",
	"gore",
	"blood",
	"dismemberment",
	"kill",
	"weapon",
	"hate",
	"racist",
	"self-harm",
	"suicide",
	"nsfw",
}

// ModerationService gates prompts before any paid work begins. The local
// denylist fails closed; the optional upstream check is advisory only and its
// failures never block a request.
type ModerationService struct {
	log        *slog.Logger
	strictMode bool
	apiKey     string
	baseURL    string
	client     *http.Client
}

func NewModerationService(log *slog.Logger, strictMode bool, apiKey, baseURL string, timeout time.Duration) *ModerationService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ModerationService{
		log:        log,
		strictMode: strictMode,
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
	}
}

// CheckPrompt returns whether the prompt is allowed and, when blocked, a
// human-readable reason.
func (s *ModerationService) CheckPrompt(ctx context.Context, prompt string) (bool, string) {
	text := strings.ToLower(strings.TrimSpace(prompt))
	if text == "" {
		return false, "Prompt is required."
	}

	if s.strictMode {
		for _, term := range blockedTerms {
			if strings.Contains(text, term) {
				return false, fmt.Sprintf("Prompt blocked by safety policy (%s).", term)
			}
		}
	}

	flagged, err := s.upstreamCheck(ctx, text)
	if err != nil {
		s.log.Warn("upstream moderation check skipped", "err", err)
		return true, ""
	}
	if flagged {
		return false, "Prompt blocked by upstream moderation."
	}

	return true, ""
}

func (s *ModerationService) upstreamCheck(ctx context.Context, text string) (bool, error) {
	if s.apiKey == "" {
		return false, nil
	}

	body, err := json.Marshal(map[string]any{
		"model": "omni-moderation-latest",
		"input": text,
	})
	if err != nil {
		return false, fmt.Errorf("marshal moderation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/moderations", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("post moderation: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read moderation response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("moderation error: status=%d", resp.StatusCode)
	}

	var parsed struct {
		Results []struct {
			Flagged bool `json:"flagged"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return false, fmt.Errorf("decode moderation response: %w", err)
	}

	return len(parsed.Results) > 0 && parsed.Results[0].Flagged, nil
}
