package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/vitaliisemenov/videowall-controlplane/internal/core/resilience"
	"github.com/vitaliisemenov/videowall-controlplane/internal/platformmetrics"
	"github.com/vitaliisemenov/videowall-controlplane/pkg/httpclient"
)

// AuditClient proxies verify and export calls to the Audit Service. Query
// is served directly from the Management Service's own audit.Store, so it
// has no proxy method here.
type AuditClient struct {
	http *httpclient.Client
}

// NewAuditClient builds an AuditClient against baseURL. Verify/export are
// read-only, so a dropped connection or timeout retries twice.
func NewAuditClient(baseURL string) *AuditClient {
	return &AuditClient{
		http: httpclient.New(baseURL, 30*time.Second, &resilience.RetryPolicy{
			MaxRetries:    2,
			BaseDelay:     100 * time.Millisecond,
			MaxDelay:      1 * time.Second,
			Multiplier:    2.0,
			Jitter:        true,
			Metrics:       platformmetrics.NewRetryMetrics(),
			OperationName: "audit_service.proxy",
		}),
	}
}

// Verify proxies GET /verify?last_n=.
func (c *AuditClient) Verify(ctx context.Context, lastN int) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.http.GetJSON(ctx, fmt.Sprintf("/verify?last_n=%d", lastN), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Export proxies GET /export?since=&until=.
func (c *AuditClient) Export(ctx context.Context, since, until string) (json.RawMessage, error) {
	q := url.Values{}
	if since != "" {
		q.Set("since", since)
	}
	if until != "" {
		q.Set("until", until)
	}
	path := "/export"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var raw json.RawMessage
	if err := c.http.GetJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
