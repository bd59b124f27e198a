// Package images provides the image-generation collaborator contract and an
// HTTP adapter for hosted generation services.
package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Image is one generated image reference: the hosted URL and, when the
// service stored a copy locally, its path.
type Image struct {
	Prompt    string `json:"prompt"`
	URL       string `json:"url"`
	LocalPath string `json:"local_path,omitempty"`
}

// Generator is the image-generation collaborator: prompt in, image out.
// A per-prompt failure is the caller's to handle; the image-generation step
// skips the failed prompt rather than failing the step.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Image, error)
}

// HTTPGenerator implements Generator against a JSON-over-HTTP generation
// endpoint: POST {"prompt": ...} -> {"url": ..., "local_path": ...}.
type HTTPGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPGenerator creates a generator for the given endpoint.
func NewHTTPGenerator(endpoint, apiKey string) *HTTPGenerator {
	return &HTTPGenerator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	URL       string `json:"url"`
	LocalPath string `json:"local_path"`
	Error     string `json:"error"`
}

// Generate submits one prompt and returns the generated image reference.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (*Image, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generation request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image generation returned HTTP %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("image generation failed: %s", out.Error)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("image generation returned no URL")
	}

	return &Image{Prompt: prompt, URL: out.URL, LocalPath: out.LocalPath}, nil
}
