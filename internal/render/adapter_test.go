package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulme/api/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// imagesServer answers /v1/images/generations per model: entries map a model
// name to an HTTP status, non-200 entries answer with an error body.
func imagesServer(t *testing.T, statusByModel map[string]int, payload []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/images/generations", r.URL.Path)

		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, ok := statusByModel[req.Model]
		if !ok {
			status = http.StatusNotFound
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"error":{"message":"model %s unavailable"}}`, req.Model)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"b64_json": base64.StdEncoding.EncodeToString(payload)},
			},
		})
	}))
}

func TestAdapterPrimaryModelSucceeds(t *testing.T) {
	pngBytes := testPNG(t)
	srv := imagesServer(t, map[string]int{"gpt-image-1.5": http.StatusOK}, pngBytes)
	defer srv.Close()

	client := NewClient("test-key", srv.URL, time.Second, testLogger())
	adapter := NewAdapter(testLogger(), client, "gpt-image-1-mini", false)

	result, err := adapter.Generate(context.Background(), Request{
		Prompt:      "a whale",
		Mode:        models.ModeText,
		AspectRatio: "1:1",
	}, Plan{Profile: ProfilePremium, Model: "gpt-image-1.5", Quality: "high"})
	require.NoError(t, err)

	assert.Equal(t, pngBytes, result.PNG)
	assert.Equal(t, "gpt-image-1.5", result.Model)
	assert.Equal(t, "1024x1024", result.Size)
	assert.False(t, result.UsedFallback)
	require.NotNil(t, result.EstimatedCostUSD)
	assert.InDelta(t, 0.133, *result.EstimatedCostUSD, 1e-9)
}

func TestAdapterFallsBackToSecondaryModel(t *testing.T) {
	pngBytes := testPNG(t)
	srv := imagesServer(t, map[string]int{
		"gpt-image-1.5":    http.StatusInternalServerError,
		"gpt-image-1-mini": http.StatusOK,
	}, pngBytes)
	defer srv.Close()

	client := NewClient("test-key", srv.URL, time.Second, testLogger())
	adapter := NewAdapter(testLogger(), client, "gpt-image-1-mini", false)

	result, err := adapter.Generate(context.Background(), Request{
		Prompt: "a whale",
		Mode:   models.ModeText,
	}, Plan{Profile: ProfilePremium, Model: "gpt-image-1.5", Quality: "high"})
	require.NoError(t, err)

	assert.Equal(t, "gpt-image-1-mini", result.Model)
	assert.True(t, result.UsedFallback)
}

func TestAdapterAllCandidatesFailOfflineDisabled(t *testing.T) {
	srv := imagesServer(t, map[string]int{
		"gpt-image-1.5":    http.StatusInternalServerError,
		"gpt-image-1-mini": http.StatusInternalServerError,
	}, nil)
	defer srv.Close()

	client := NewClient("test-key", srv.URL, time.Second, testLogger())
	adapter := NewAdapter(testLogger(), client, "gpt-image-1-mini", false)

	_, err := adapter.Generate(context.Background(), Request{
		Prompt: "a whale",
		Mode:   models.ModeText,
	}, Plan{Profile: ProfilePremium, Model: "gpt-image-1.5", Quality: "high"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
}

func TestAdapterAllCandidatesFailOfflineEnabled(t *testing.T) {
	srv := imagesServer(t, map[string]int{
		"gpt-image-1.5": http.StatusInternalServerError,
	}, nil)
	defer srv.Close()

	client := NewClient("test-key", srv.URL, time.Second, testLogger())
	adapter := NewAdapter(testLogger(), client, "", true)

	result, err := adapter.Generate(context.Background(), Request{
		Prompt:      "a whale",
		Mode:        models.ModeText,
		AspectRatio: "16:9",
	}, Plan{Profile: ProfilePremium, Model: "gpt-image-1.5", Quality: "high"})
	require.NoError(t, err)

	assert.Equal(t, OfflineModelName, result.Model)
	assert.True(t, result.UsedFallback)
	assert.Nil(t, result.EstimatedCostUSD)
	assert.NotEmpty(t, result.PNG)
}

func TestAdapterUnconfiguredClient(t *testing.T) {
	client := NewClient("", "https://unused.example.com", time.Second, testLogger())

	t.Run("offline disabled", func(t *testing.T) {
		adapter := NewAdapter(testLogger(), client, "", false)
		_, err := adapter.Generate(context.Background(), Request{Mode: models.ModeText, Prompt: "x"},
			Plan{Model: "gpt-image-1.5", Quality: "high"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no render provider configured")
	})

	t.Run("offline enabled", func(t *testing.T) {
		adapter := NewAdapter(testLogger(), client, "", true)
		result, err := adapter.Generate(context.Background(), Request{Mode: models.ModeText, Prompt: "x"},
			Plan{Model: "gpt-image-1.5", Quality: "high"})
		require.NoError(t, err)
		assert.Equal(t, OfflineModelName, result.Model)
	})
}

func TestCandidateModelsDeduplicates(t *testing.T) {
	adapter := NewAdapter(testLogger(), NewClient("k", "", time.Second, testLogger()), "gpt-image-1-mini", false)

	assert.Equal(t, []string{"gpt-image-1.5", "gpt-image-1-mini"}, adapter.candidateModels("gpt-image-1.5"))
	assert.Equal(t, []string{"gpt-image-1-mini"}, adapter.candidateModels("gpt-image-1-mini"))
}
