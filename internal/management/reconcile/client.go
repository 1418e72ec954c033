// Package reconcile syncs the Configuration Authority's declarative walls
// and sources into the Management Service's relational tables. Grounded
// on services/mgmt-api/app/reconcile.py.
package reconcile

import (
	"context"
	"time"

	"github.com/vitaliisemenov/videowall-controlplane/internal/core/resilience"
	"github.com/vitaliisemenov/videowall-controlplane/internal/platformmetrics"
	"github.com/vitaliisemenov/videowall-controlplane/pkg/httpclient"
)

// ConfigWall is one wall entry as published by the Configuration Authority.
type ConfigWall struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Grid       *ConfigGrid       `json:"grid,omitempty"`
	Screens    int               `json:"screens"`
	Resolution string            `json:"resolution"`
	Tags       map[string]string `json:"tags"`
}

// ConfigGrid is a tiled wall's rows x cols declaration.
type ConfigGrid struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// ConfigSource is one source entry as published by the Configuration Authority.
type ConfigSource struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Endpoint string            `json:"endpoint"`
	Codec    string            `json:"codec"`
	Tags     map[string]string `json:"tags"`
}

// ConfigClient fetches declarative state from the Configuration Authority.
type ConfigClient struct {
	http *httpclient.Client
}

// NewConfigClient builds a ConfigClient against baseURL. Transient failures
// retry twice with short backoff, since a skipped reconcile tick just
// means the next poll retries the whole fetch anyway.
func NewConfigClient(baseURL string) *ConfigClient {
	return &ConfigClient{
		http: httpclient.New(baseURL, 10*time.Second, &resilience.RetryPolicy{
			MaxRetries:    2,
			BaseDelay:     200 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			Multiplier:    2.0,
			Jitter:        true,
			Metrics:       platformmetrics.NewRetryMetrics(),
			OperationName: "config_authority.fetch",
		}),
	}
}

// Version fetches the current config_hash, or ("", err) if the
// Configuration Authority is unreachable. Callers treat this error as
// "unchanged, retry next interval" per spec.
func (c *ConfigClient) Version(ctx context.Context) (string, error) {
	var out struct {
		ConfigHash string `json:"config_hash"`
	}
	if err := c.http.GetJSON(ctx, "/api/v1/config/version", &out); err != nil {
		return "", err
	}
	return out.ConfigHash, nil
}

// Walls fetches every declared wall.
func (c *ConfigClient) Walls(ctx context.Context) ([]ConfigWall, error) {
	var out struct {
		Walls []ConfigWall `json:"walls"`
	}
	if err := c.http.GetJSON(ctx, "/api/v1/walls", &out); err != nil {
		return nil, err
	}
	return out.Walls, nil
}

// Sources fetches every declared source.
func (c *ConfigClient) Sources(ctx context.Context) ([]ConfigSource, error) {
	var out struct {
		Sources []ConfigSource `json:"sources"`
	}
	if err := c.http.GetJSON(ctx, "/api/v1/sources", &out); err != nil {
		return nil, err
	}
	return out.Sources, nil
}
