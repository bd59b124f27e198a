// Package publish provides the publishing collaborator contract and a REST
// adapter for CMS endpoints.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Credentials are a tenant's publishing credentials. A zero value means the
// tenant has no publishing target configured.
type Credentials struct {
	Endpoint string `json:"endpoint"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Configured reports whether the credentials point at a publishing target.
func (c Credentials) Configured() bool {
	return c.Endpoint != ""
}

// Post is the deliverable handed to the publishing collaborator.
type Post struct {
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Images     []string          `json:"images,omitempty"`
	Categories []string          `json:"categories,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	SEOMeta    map[string]string `json:"seo_meta,omitempty"`
}

// Result is the publishing outcome.
type Result struct {
	Success           bool   `json:"success"`
	PublishedLocation string `json:"published_location,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Publisher is the publishing collaborator contract.
type Publisher interface {
	Publish(ctx context.Context, creds Credentials, post Post) (*Result, error)
}

// CredentialStore resolves a tenant's publishing credentials. The second
// return is false when the tenant has none configured.
type CredentialStore interface {
	Lookup(ctx context.Context, tenantID int64) (Credentials, bool, error)
}

// StaticCredentials is a CredentialStore backed by an in-config map.
type StaticCredentials map[int64]Credentials

// Lookup returns the tenant's credentials from the map.
func (s StaticCredentials) Lookup(_ context.Context, tenantID int64) (Credentials, bool, error) {
	creds, ok := s[tenantID]
	if !ok || !creds.Configured() {
		return Credentials{}, false, nil
	}
	return creds, true, nil
}

// RESTPublisher implements Publisher against a JSON-over-HTTP CMS endpoint.
type RESTPublisher struct {
	client *http.Client
}

// NewRESTPublisher creates a publisher with a bounded request timeout.
func NewRESTPublisher() *RESTPublisher {
	return &RESTPublisher{client: &http.Client{Timeout: 60 * time.Second}}
}

type publishResponse struct {
	Link  string `json:"link"`
	Error string `json:"error"`
}

// Publish submits the post to the tenant's endpoint and returns where it
// landed. Transport and endpoint errors come back inside Result with
// Success=false rather than as a Go error, so callers can distinguish
// "collaborator said no" from "could not even ask".
func (p *RESTPublisher) Publish(ctx context.Context, creds Credentials, post Post) (*Result, error) {
	if !creds.Configured() {
		return nil, fmt.Errorf("publishing credentials not configured")
	}

	body, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(creds.Username, creds.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("failed to read response: %v", err)}, nil
	}

	var out publishResponse
	_ = json.Unmarshal(respBody, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return &Result{Success: false, Error: msg}, nil
	}
	if out.Link == "" {
		return &Result{Success: false, Error: "publish response missing link"}, nil
	}

	return &Result{Success: true, PublishedLocation: out.Link}, nil
}
