package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to the OpenAI Images API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(apiKey, baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Configured reports whether the client has credentials to call the provider.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

const systemPrompt = "Create a black-and-white printable coloring page. " +
	"No grayscale fills. Use clear, closed outlines and large colorable regions for kids. " +
	"Family-safe content only. White background."

// GenerateImage requests one image from a concrete model and returns the raw
// PNG bytes.
func (c *Client) GenerateImage(ctx context.Context, req Request, model, quality, size string) ([]byte, error) {
	style := strings.TrimSpace(req.Style)
	if style == "" {
		style = "clean line art"
	}
	userPrompt := fmt.Sprintf("Mode: %s. Style: %s. Request: %s", req.Mode, style, req.Prompt)

	body, err := json.Marshal(map[string]any{
		"model":           model,
		"prompt":          systemPrompt + "\n\n" + userPrompt,
		"size":            size,
		"quality":         quality,
		"response_format": "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := c.baseURL + "/v1/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post images: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("image generation failed", "status", resp.StatusCode, "model", model, "body", truncateBody(rawBody))
		}
		return nil, fmt.Errorf("images error: status=%d model=%s body=%s", resp.StatusCode, model, truncateBody(rawBody))
	}

	var parsed struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
			URL     string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode images response: %w (body=%s)", err, truncateBody(rawBody))
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("empty data in images response")
	}

	if parsed.Data[0].B64JSON != "" {
		decoded, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode b64 image: %w", err)
		}
		return decoded, nil
	}

	if parsed.Data[0].URL != "" {
		return c.fetchImage(ctx, parsed.Data[0].URL)
	}

	return nil, fmt.Errorf("images response did not contain image bytes")
}

func (c *Client) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch image url: status=%d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	return data, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
