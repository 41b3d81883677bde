package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Adapter wraps the external image provider behind the generation pipeline's
// interface. It tries an ordered candidate list of models and, when every
// external candidate fails (or none is configured), falls back to the offline
// deterministic renderer if that is allowed.
type Adapter struct {
	log           *slog.Logger
	client        *Client
	fallbackModel string
	allowOffline  bool
}

func NewAdapter(log *slog.Logger, client *Client, fallbackModel string, allowOffline bool) *Adapter {
	return &Adapter{
		log:           log,
		client:        client,
		fallbackModel: strings.TrimSpace(fallbackModel),
		allowOffline:  allowOffline,
	}
}

// Generate renders one image according to the resolved plan. The returned
// result records which model actually produced the bytes and whether a
// fallback (secondary model or offline renderer) was used.
func (a *Adapter) Generate(ctx context.Context, req Request, plan Plan) (*Result, error) {
	size := SizeForAspectRatio(req.AspectRatio)

	var lastErr error
	if a.client.Configured() {
		for i, model := range a.candidateModels(plan.Model) {
			png, err := a.client.GenerateImage(ctx, req, model, plan.Quality, size)
			if err != nil {
				lastErr = err
				a.log.Warn("render candidate failed", "model", model, "err", err)
				continue
			}
			return &Result{
				PNG:              png,
				Model:            model,
				Quality:          plan.Quality,
				Size:             size,
				EstimatedCostUSD: EstimateCostUSD(model, plan.Quality, size),
				UsedFallback:     i > 0,
			}, nil
		}
	}

	if !a.allowOffline {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("no render provider configured and offline fallback is disabled")
	}

	png, err := RenderOffline(req)
	if err != nil {
		return nil, fmt.Errorf("offline render: %w", err)
	}
	return &Result{
		PNG:          png,
		Model:        OfflineModelName,
		Quality:      "n/a",
		Size:         size,
		UsedFallback: true,
	}, nil
}

// candidateModels is the primary model followed by the configured fallback,
// de-duplicated.
func (a *Adapter) candidateModels(primary string) []string {
	primary = strings.TrimSpace(primary)
	seen := map[string]bool{}
	var models []string
	for _, m := range []string{primary, a.fallbackModel} {
		if m != "" && !seen[m] {
			seen[m] = true
			models = append(models, m)
		}
	}
	return models
}
