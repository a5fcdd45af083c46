package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tradewire/fieldsync/internal/sync"
)

// Client is the transport to the sync server.
type Client interface {
	Upload(ctx context.Context, request sync.UploadRequest) (*sync.UploadResponse, error)
	FetchBundle(ctx context.Context) (*sync.Bundle, error)
}

// HTTPClient talks to the sync server over its JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient constructs an HTTPClient for the given server and bearer token.
func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Upload sends one batch flush and decodes the per-entry outcomes.
func (c *HTTPClient) Upload(ctx context.Context, request sync.UploadRequest) (*sync.UploadResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	var response sync.UploadResponse
	if err := c.do(ctx, http.MethodPost, "/sync/upload", body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// FetchBundle pulls the current reference-data and sync-status snapshot.
func (c *HTTPClient) FetchBundle(ctx context.Context) (*sync.Bundle, error) {
	var bundle sync.Bundle
	if err := c.do(ctx, http.MethodGet, "/sync/bundle", nil, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Authorization", "Bearer "+c.token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("device: %s %s returned %d: %s", method, path, response.StatusCode, strings.TrimSpace(string(payload)))
	}
	return json.NewDecoder(response.Body).Decode(out)
}
