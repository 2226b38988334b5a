// Package feed talks to the delivery backend: REST for snapshots and
// edits, websocket for live updates, MQTT for raw driver GPS.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// Client handles REST communication with the delivery backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new REST client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the backend is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// FetchParcels retrieves all parcels.
func (c *Client) FetchParcels(ctx context.Context) ([]core.Parcel, error) {
	var parcels []core.Parcel
	if err := c.getJSON(ctx, "/parcels", &parcels); err != nil {
		return nil, err
	}
	return parcels, nil
}

// FetchParcel retrieves a single parcel by tracking id.
func (c *Client) FetchParcel(ctx context.Context, trackingID string) (*core.Parcel, error) {
	var parcel core.Parcel
	if err := c.getJSON(ctx, "/parcels/"+trackingID, &parcel); err != nil {
		return nil, err
	}
	return &parcel, nil
}

// FetchDrivers retrieves all drivers.
func (c *Client) FetchDrivers(ctx context.Context) ([]core.Driver, error) {
	var drivers []core.Driver
	if err := c.getJSON(ctx, "/drivers", &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

// UpdateParcelLocation moves a parcel to the given coordinate.
func (c *Client) UpdateParcelLocation(ctx context.Context, trackingID string, loc core.GeoPoint) error {
	return c.putJSON(ctx, "/parcels/"+trackingID, map[string]any{
		"location": loc,
	})
}

// UpdateParcelStatus changes a parcel's status string.
func (c *Client) UpdateParcelStatus(ctx context.Context, trackingID, status string) error {
	return c.putJSON(ctx, "/parcels/"+trackingID, map[string]any{
		"status": status,
	})
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) putJSON(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("PUT %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
