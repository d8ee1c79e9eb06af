package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"profileagent/internal/metrics"
)

// #region types

// RelayConfig configures the key-manager relay client. The relay holds the
// signing session for the agent key and handles nonce, gas and confirmation;
// this client only shapes requests and maps failures.
type RelayConfig struct {
	BaseURL            string
	AgentKey           string
	ChainID            int64
	RewardTokenAddress string
	Timeout            time.Duration
}

// executeRequest is the relay's action submission payload.
type executeRequest struct {
	Profile    string `json:"profile"`
	Action     string `json:"action"`
	ChainID    int64  `json:"chain_id"`
	ContentRef string `json:"content_ref,omitempty"`
	Target     string `json:"target,omitempty"`
	Token      string `json:"token,omitempty"`
	AmountWei  string `json:"amount_wei,omitempty"`
}

// metricsResponse is the metrics source payload.
type metricsResponse struct {
	Followers      float64 `json:"followers"`
	PostsCount     float64 `json:"posts_count"`
	EngagementRate float64 `json:"engagement_rate"`
}

// #endregion types

// #region client-struct

// RelayClient wraps the HTTP connection to the signing relay. It implements
// both Executor and the environment's metrics source.
type RelayClient struct {
	cfg RelayConfig
	hc  *http.Client
}

// NewRelayClient creates a relay client with its own HTTP client and the
// configured per-call timeout.
func NewRelayClient(cfg RelayConfig) *RelayClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RelayClient{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
	}
}

// NewRelayClientWithHTTPClient creates a RelayClient with an injected HTTP
// client. Used for testing without a real relay.
func NewRelayClientWithHTTPClient(cfg RelayConfig, hc *http.Client) *RelayClient {
	return &RelayClient{cfg: cfg, hc: hc}
}

// #endregion client-struct

// #region ping

// Ping probes relay connectivity. Used once at startup when execution is
// enabled.
func (c *RelayClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build ping: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// #endregion ping

// #region executor

// MakePost submits a post action carrying the content reference.
func (c *RelayClient) MakePost(ctx context.Context, profileAddress, contentRef string) (Receipt, error) {
	return c.execute(ctx, executeRequest{
		Profile:    profileAddress,
		Action:     "post",
		ChainID:    c.cfg.ChainID,
		ContentRef: contentRef,
	})
}

// FollowProfile submits a follow of the target profile.
func (c *RelayClient) FollowProfile(ctx context.Context, profileAddress, targetAddress string) (Receipt, error) {
	return c.execute(ctx, executeRequest{
		Profile: profileAddress,
		Action:  "follow",
		ChainID: c.cfg.ChainID,
		Target:  targetAddress,
	})
}

// RewardFollower submits a reward-token transfer to the target.
func (c *RelayClient) RewardFollower(ctx context.Context, profileAddress, targetAddress, amountWei string) (Receipt, error) {
	return c.execute(ctx, executeRequest{
		Profile:   profileAddress,
		Action:    "reward",
		ChainID:   c.cfg.ChainID,
		Target:    targetAddress,
		Token:     c.cfg.RewardTokenAddress,
		AmountWei: amountWei,
	})
}

// execute submits one action and maps the relay's response onto the error
// taxonomy. No retry on failure: a second broadcast of a non-idempotent
// transaction risks nonce reuse.
func (c *RelayClient) execute(ctx context.Context, req executeRequest) (Receipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal execute: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("build execute: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.AgentKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("read execute response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var receipt Receipt
		if err := json.Unmarshal(data, &receipt); err != nil {
			return Receipt{}, fmt.Errorf("decode receipt: %w", err)
		}
		return receipt, nil
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return Receipt{}, fmt.Errorf("%w: %s", ErrRejected, relayDetail(data))
	case resp.StatusCode >= 500:
		return Receipt{}, fmt.Errorf("%w: relay status %d", ErrUnavailable, resp.StatusCode)
	default:
		return Receipt{}, fmt.Errorf("relay status %d: %s", resp.StatusCode, relayDetail(data))
	}
}

// #endregion executor

// #region metrics-source

// ProfileMetrics reads the profile's current metrics from the relay's
// indexer endpoint.
func (c *RelayClient) ProfileMetrics(ctx context.Context, profileAddress string) (metrics.State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/profiles/"+profileAddress+"/metrics", nil)
	if err != nil {
		return metrics.State{}, fmt.Errorf("build metrics request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AgentKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return metrics.State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return metrics.State{}, fmt.Errorf("%w: metrics status %d", ErrUnavailable, resp.StatusCode)
	}

	var mr metricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return metrics.State{}, fmt.Errorf("decode metrics: %w", err)
	}
	return metrics.State{
		Followers:  mr.Followers,
		Posts:      mr.PostsCount,
		Engagement: mr.EngagementRate,
	}, nil
}

// #endregion metrics-source

// #region helpers

func relayDetail(data []byte) string {
	var e struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return string(data)
}

// #endregion helpers
