// Package membership resolves group identifiers to member ids via the IAM
// service. The caller's own credential is passed through, so IAM applies its
// usual authorization to the lookup.
package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// Resolver is the membership-resolution collaborator used by the group
// publish path.
type Resolver interface {
	GroupMemberIDs(ctx context.Context, groupID string, token string) ([]int64, error)
}

// Client is an HTTP Resolver with a circuit breaker: when IAM is down, group
// publishes fail fast instead of stacking up requests against a dead host.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a resolver against the given IAM base URL.
func NewClient(baseURL string) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "iam-membership",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"component", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: breaker,
	}
}

// GroupMemberIDs fetches the member ids of a group. Each id doubles as a
// channel name on the publish side.
func (c *Client) GroupMemberIDs(ctx context.Context, groupID string, token string) ([]int64, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, groupID, token)
	})
	if err != nil {
		return nil, err
	}
	return result.([]int64), nil
}

func (c *Client) fetch(ctx context.Context, groupID string, token string) ([]int64, error) {
	endpoint := fmt.Sprintf("%s/identity/groups/%s/member-ids", c.baseURL, url.PathEscape(groupID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build IAM request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call IAM: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("IAM returned status %d", resp.StatusCode)
	}

	var ids []int64
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("decode IAM response: %w", err)
	}
	return ids, nil
}
