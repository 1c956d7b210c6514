// Package remote defines the client contract to the external skill
// marketplace (spec §4.6/§4.9). The marketplace service itself is out of
// scope; this package specifies only what the lifecycle services need from
// it, plus an HTTP-backed reference implementation.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agenshield/skillcore/pkg/skillerr"
	"github.com/agenshield/skillcore/pkg/types"
)

// Descriptor is the marketplace's metadata for one skill.
type Descriptor struct {
	RemoteID      string
	Name          string
	Author        string
	Description   string
	Tags          []string
	LatestVersion string
	IsPublic      bool
}

// Client fetches skill descriptors and byte content from the marketplace.
type Client interface {
	// GetDescriptor fetches the descriptor for remoteID.
	GetDescriptor(ctx context.Context, remoteID string) (Descriptor, error)
	// GetLatestVersion reports the latest version string the marketplace
	// publishes for remoteID, used by Update to detect drift.
	GetLatestVersion(ctx context.Context, remoteID string) (string, error)
	// Download fetches the file set for (remoteID, version).
	Download(ctx context.Context, remoteID, version string) ([]types.FileContent, error)
}

// HTTPClient is the reference Client, talking to a marketplace over a
// small JSON/REST surface. download has a 90s absolute timeout per spec §5;
// metadata calls use the same client with the same timeout.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a marketplace client. downloadTimeout defaults to
// 90s (spec §5's remote download timeout) when zero.
func NewHTTPClient(baseURL string, downloadTimeout time.Duration) *HTTPClient {
	if downloadTimeout <= 0 {
		downloadTimeout = 90 * time.Second
	}
	return &HTTPClient{baseURL: baseURL, http: &http.Client{Timeout: downloadTimeout}}
}

type descriptorPayload struct {
	RemoteID      string   `json:"remoteId"`
	Name          string   `json:"name"`
	Author        string   `json:"author"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	LatestVersion string   `json:"latestVersion"`
	IsPublic      bool     `json:"isPublic"`
}

func (c *HTTPClient) GetDescriptor(ctx context.Context, remoteID string) (Descriptor, error) {
	var payload descriptorPayload
	if err := c.getJSON(ctx, fmt.Sprintf("/skills/%s", remoteID), &payload); err != nil {
		if apiErr, ok := err.(*skillerr.RemoteAPIError); ok && apiErr.StatusCode == http.StatusNotFound {
			return Descriptor{}, fmt.Errorf("%w: %s", skillerr.ErrRemoteSkillNotFound, remoteID)
		}
		return Descriptor{}, err
	}
	return Descriptor{
		RemoteID: payload.RemoteID, Name: payload.Name, Author: payload.Author,
		Description: payload.Description, Tags: payload.Tags,
		LatestVersion: payload.LatestVersion, IsPublic: payload.IsPublic,
	}, nil
}

func (c *HTTPClient) GetLatestVersion(ctx context.Context, remoteID string) (string, error) {
	desc, err := c.GetDescriptor(ctx, remoteID)
	if err != nil {
		return "", err
	}
	return desc.LatestVersion, nil
}

type downloadPayload struct {
	Files []struct {
		RelativePath string `json:"relativePath"`
		Content      []byte `json:"content"`
	} `json:"files"`
}

func (c *HTTPClient) Download(ctx context.Context, remoteID, version string) ([]types.FileContent, error) {
	var payload downloadPayload
	if err := c.getJSON(ctx, fmt.Sprintf("/skills/%s/versions/%s/download", remoteID, version), &payload); err != nil {
		return nil, err
	}

	files := make([]types.FileContent, 0, len(payload.Files))
	for _, f := range payload.Files {
		files = append(files, types.FileContent{RelativePath: f.RelativePath, Bytes: f.Content})
	}
	return files, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return &skillerr.RemoteAPIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

