package render

import "strings"

// imagePriceUSD is advisory telemetry only: credits, not dollars, are the
// billed unit. Keyed by model family, quality tier and canvas size.
var imagePriceUSD = map[string]map[string]map[string]float64{
	"gpt-image-1.5": {
		"low":    {"1024x1024": 0.009, "1024x1536": 0.013, "1536x1024": 0.013},
		"medium": {"1024x1024": 0.034, "1024x1536": 0.050, "1536x1024": 0.050},
		"high":   {"1024x1024": 0.133, "1024x1536": 0.200, "1536x1024": 0.200},
	},
	"gpt-image-1": {
		"low":    {"1024x1024": 0.011, "1024x1536": 0.016, "1536x1024": 0.016},
		"medium": {"1024x1024": 0.042, "1024x1536": 0.063, "1536x1024": 0.063},
		"high":   {"1024x1024": 0.167, "1024x1536": 0.250, "1536x1024": 0.250},
	},
	"gpt-image-1-mini": {
		"low":    {"1024x1024": 0.005, "1024x1536": 0.006, "1536x1024": 0.006},
		"medium": {"1024x1024": 0.011, "1024x1536": 0.015, "1536x1024": 0.015},
		"high":   {"1024x1024": 0.036, "1024x1536": 0.052, "1536x1024": 0.052},
	},
}

// EstimateCostUSD looks up the advisory price for a model/quality/size
// combination. Unknown combinations yield nil rather than an error.
func EstimateCostUSD(model, quality, size string) *float64 {
	family := pricingFamily(model)
	if family == "" {
		return nil
	}
	byQuality, ok := imagePriceUSD[family]
	if !ok {
		return nil
	}
	bySize, ok := byQuality[strings.ToLower(strings.TrimSpace(quality))]
	if !ok {
		return nil
	}
	price, ok := bySize[size]
	if !ok {
		return nil
	}
	return &price
}

func pricingFamily(model string) string {
	value := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(value, "gpt-image-1.5"):
		return "gpt-image-1.5"
	case strings.HasPrefix(value, "gpt-image-1-mini"):
		return "gpt-image-1-mini"
	case strings.HasPrefix(value, "gpt-image-1"):
		return "gpt-image-1"
	default:
		return ""
	}
}
