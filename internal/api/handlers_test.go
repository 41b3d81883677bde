package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulme/api/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServer wires only what the unauthenticated routes touch.
func testServer() *Server {
	return NewServer(":0", testLogger(), nil, nil, nil, nil, nil, nil, nil, nil, "whsec_test")
}

func TestHealthz(t *testing.T) {
	s := testServer()
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestBillingEventRejectsBadSecret(t *testing.T) {
	s := testServer()

	for _, secret := range []string{"", "wrong", "whsec_tesT"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/events", strings.NewReader(`{}`))
		if secret != "" {
			req.Header.Set("X-Billing-Secret", secret)
		}
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestBillingEventValidation(t *testing.T) {
	s := testServer()

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "invalid json", body: `{`, want: http.StatusBadRequest},
		{name: "missing user", body: `{"type":"invoice_paid","plan_code":"pro"}`, want: http.StatusBadRequest},
		{name: "bad period end", body: `{"type":"subscription_activated","user_id":"u","plan_code":"pro","current_period_end":"tomorrow"}`, want: http.StatusBadRequest},
		{name: "unknown type", body: `{"type":"refund_issued","user_id":"u","plan_code":"pro"}`, want: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/events", strings.NewReader(tc.body))
			req.Header.Set("X-Billing-Secret", "whsec_test")
			s.router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestGenerationRequiresAPIKey(t *testing.T) {
	s := testServer()
	rec := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generations/text", strings.NewReader(`{"prompt":"a cat"}`))
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "API key required", body["error"])
}

func TestExtractAPIKey(t *testing.T) {
	newReq := func(header, value string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set(header, value)
		}
		return r
	}

	assert.Equal(t, "key-1", extractAPIKey(newReq("X-API-Key", "key-1")))
	assert.Equal(t, "key-2", extractAPIKey(newReq("Authorization", "Bearer key-2")))
	assert.Equal(t, "", extractAPIKey(newReq("Authorization", "Basic dXNlcg==")))
	assert.Equal(t, "", extractAPIKey(newReq("", "")))

	// X-API-Key wins when both are present.
	r := newReq("X-API-Key", "key-1")
	r.Header.Set("Authorization", "Bearer key-2")
	assert.Equal(t, "key-1", extractAPIKey(r))
}

func TestDecodeSourceImage(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	encoded := base64.StdEncoding.EncodeToString(payload)

	img, err := decodeSourceImage(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, img.Bytes())

	img, err = decodeSourceImage("data:image/png;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, img.Bytes())

	img, err = decodeSourceImage("   ")
	require.NoError(t, err)
	assert.False(t, img.Present())

	_, err = decodeSourceImage("!!! not base64 !!!")
	require.Error(t, err)
}

func TestSerializeJob(t *testing.T) {
	created := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	completed := created.Add(time.Minute)
	job := &models.GenerationJob{
		ID:          "job-1",
		Mode:        models.ModeText,
		Prompt:      "a cat",
		Status:      models.StatusCompleted,
		CreatedAt:   created,
		CompletedAt: &completed,
	}
	asset := &models.GeneratedAsset{
		ID:     "asset-1",
		JobID:  "job-1",
		PNGURL: "https://cdn.example.com/a.png",
		PDFURL: "https://cdn.example.com/a.pdf",
		Width:  1024,
		Height: 1024,
	}

	resp := serializeJob(job, asset)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.CreatedAt)
	assert.Equal(t, created, *resp.CreatedAt)
	require.NotNil(t, resp.Asset)
	assert.Equal(t, "asset-1", resp.Asset.AssetID)

	resp = serializeJob(job, nil)
	assert.Nil(t, resp.Asset)
}
