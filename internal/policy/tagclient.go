package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitaliisemenov/videowall-controlplane/pkg/httpclient"
)

// TagClient fetches wall and source tags from the Management Service so the
// Policy Engine can evaluate tag-based conditions without owning that data
// itself. Grounded on _lookup_tags in services/policy/app/main.py: a failed
// lookup (timeout, 404, malformed body) yields empty tags rather than an
// error — enrichment fails open, while Engine.Evaluate's default-deny
// fallback keeps the overall decision fail-closed. Unlike every other
// inter-service client in this repo, Lookup carries no retry: a slow
// Management Service should degrade tag-based rules, not delay the whole
// policy decision.
type TagClient struct {
	http   *httpclient.Client
	logger *slog.Logger
}

// NewTagClient builds a client against baseURL (the Management Service's
// external address) with a short per-request timeout, matching the
// prototype's 2-second socket timeout.
func NewTagClient(baseURL string, logger *slog.Logger) *TagClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &TagClient{
		http:   httpclient.New(baseURL, 2*time.Second, nil),
		logger: logger,
	}
}

type tagsEnvelope struct {
	Tags []string `json:"tags"`
}

// Lookup fetches wall and source tags concurrently-safely (sequential, the
// prototype does too) and returns whatever it could get; a failure on
// either leg logs at debug and yields an empty slice for that leg only.
func (c *TagClient) Lookup(ctx context.Context, wallID, sourceID string) (wallTags, sourceTags []string) {
	wallTags = c.fetchTags(ctx, fmt.Sprintf("/api/v1/walls/%s", wallID))
	sourceTags = c.fetchTags(ctx, fmt.Sprintf("/api/v1/sources/%s", sourceID))
	return wallTags, sourceTags
}

func (c *TagClient) fetchTags(ctx context.Context, path string) []string {
	var env tagsEnvelope
	if err := c.http.GetJSON(ctx, path, &env); err != nil {
		c.logger.Debug("tag lookup failed, enriching with empty tags", "path", path, "error", err)
		return nil
	}
	return env.Tags
}
