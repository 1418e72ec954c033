package httpapi

import (
	"context"
	"time"

	"github.com/vitaliisemenov/videowall-controlplane/internal/core/resilience"
	"github.com/vitaliisemenov/videowall-controlplane/internal/platformmetrics"
	"github.com/vitaliisemenov/videowall-controlplane/pkg/httpclient"
)

// PolicyDecision mirrors internal/policy.Decision's wire shape, kept as a
// local type so this package doesn't import internal/policy just to talk
// to it over HTTP — the two services are meant to be deployed separately.
type PolicyDecision struct {
	Allowed      bool             `json:"allowed"`
	Reason       string           `json:"reason"`
	MatchedRules []map[string]any `json:"matched_rules"`
}

type policyEvalRequest struct {
	WallID        string   `json:"wall_id"`
	SourceID      string   `json:"source_id"`
	OperatorID    string   `json:"operator_id"`
	OperatorRoles []string `json:"operator_roles"`
	OperatorTags  []string `json:"operator_tags"`
}

// PolicyClient proxies evaluation requests to the Policy Engine.
type PolicyClient struct {
	http *httpclient.Client
}

// NewPolicyClient builds a PolicyClient against baseURL. Evaluation is a
// read-only decision, so a dropped connection or timeout retries twice
// with short backoff.
func NewPolicyClient(baseURL string) *PolicyClient {
	return &PolicyClient{
		http: httpclient.New(baseURL, 5*time.Second, &resilience.RetryPolicy{
			MaxRetries:    2,
			BaseDelay:     50 * time.Millisecond,
			MaxDelay:      500 * time.Millisecond,
			Multiplier:    2.0,
			Jitter:        true,
			Metrics:       platformmetrics.NewRetryMetrics(),
			OperationName: "policy_engine.evaluate",
		}),
	}
}

// Evaluate calls the Policy Engine's POST /evaluate.
func (c *PolicyClient) Evaluate(ctx context.Context, wallID, sourceID string, operatorID string, roles, tags []string) (PolicyDecision, error) {
	var decision PolicyDecision
	err := c.http.PostJSON(ctx, "/evaluate", policyEvalRequest{
		WallID: wallID, SourceID: sourceID, OperatorID: operatorID,
		OperatorRoles: roles, OperatorTags: tags,
	}, &decision)
	if err != nil {
		return PolicyDecision{}, err
	}
	return decision, nil
}
