// Package memorystore is the HTTP client for the memory backend: long-term
// memories, face and voice recognition profiles, and the user profile.
//
// The backend speaks snake_case JSON under /api/memory, /api/voice and
// /api/user. All methods return the backend's envelope rather than an error
// when the backend declines a request; errors are reserved for transport
// and decoding failures.
package memorystore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/chinkilabs/go-chinki/internal/httpc"
)

// DefaultBaseURL is where the memory backend listens in development.
const DefaultBaseURL = "http://localhost:5000"

// Client talks to the memory backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the backend at baseURL. An empty baseURL uses
// DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpc.Client,
	}
}

// SaveMemory persists a memory. Image and audio are base64 payloads the
// backend writes to disk alongside the record.
func (c *Client) SaveMemory(ctx context.Context, req SaveMemoryRequest) (SaveMemoryResponse, error) {
	if req.Name == "" {
		req.Name = "Unnamed Memory"
	}
	if req.Metadata == nil {
		req.Metadata = map[string]any{}
	}
	var resp SaveMemoryResponse
	err := c.post(ctx, "/api/memory/save", req, &resp)
	return resp, err
}

// ListMemories returns every stored memory, newest first.
func (c *Client) ListMemories(ctx context.Context) (ListMemoriesResponse, error) {
	var resp ListMemoriesResponse
	err := c.get(ctx, "/api/memory/list", &resp)
	return resp, err
}

// SearchMemories finds memories whose name or content matches query.
func (c *Client) SearchMemories(ctx context.Context, query string) (SearchMemoriesResponse, error) {
	var resp SearchMemoriesResponse
	path := "/api/memory/search?query=" + url.QueryEscape(query)
	err := c.get(ctx, path, &resp)
	return resp, err
}

// DeleteMemory removes a memory by ID.
func (c *Client) DeleteMemory(ctx context.Context, id int) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/memory/delete/%d", id), nil, &resp)
	return resp, err
}

// RecognizeFromDescription asks the backend who or what matches a visual
// description.
func (c *Client) RecognizeFromDescription(ctx context.Context, description string) (RecognizeResponse, error) {
	var resp RecognizeResponse
	err := c.post(ctx, "/api/memory/recognize", map[string]string{"description": description}, &resp)
	return resp, err
}

// SaveVoiceProfile enrolls a speaker from a transcript sample.
func (c *Client) SaveVoiceProfile(ctx context.Context, name, speechSample string) (SaveMemoryResponse, error) {
	var resp SaveMemoryResponse
	body := map[string]string{"name": name, "speech_sample": speechSample}
	err := c.post(ctx, "/api/voice/save", body, &resp)
	return resp, err
}

// RecognizeVoice identifies the speaker behind a transcript sample.
func (c *Client) RecognizeVoice(ctx context.Context, speechSample string) (RecognizeResponse, error) {
	var resp RecognizeResponse
	body := map[string]string{"speech_sample": speechSample}
	err := c.post(ctx, "/api/voice/recognize", body, &resp)
	return resp, err
}

// UserProfile fetches the stored user profile. A missing profile comes
// back with Success true and a nil Profile.
func (c *Client) UserProfile(ctx context.Context) (UserProfileResponse, error) {
	var resp UserProfileResponse
	err := c.get(ctx, "/api/user/profile", &resp)
	return resp, err
}

// SaveUserProfile creates or updates the user profile.
func (c *Client) SaveUserProfile(ctx context.Context, profile UserProfile) (StatusResponse, error) {
	var resp StatusResponse
	err := c.post(ctx, "/api/user/profile", profile, &resp)
	return resp, err
}

// Health reports whether the backend is reachable and serving.
func (c *Client) Health(ctx context.Context) error {
	var resp map[string]any
	return c.get(ctx, "/health", &resp)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("memory backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("memory backend: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
