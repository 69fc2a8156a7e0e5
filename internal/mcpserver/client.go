package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the Perkloop platform.
type Config struct {
	APIURL      string // Base URL, e.g. "http://localhost:8080"
	AdminSecret string // X-Admin-Secret value; required for review tools
	Reviewer    string // Name recorded on reward reviews, e.g. "ops-oncall"
}

// PerkloopClient is a pure HTTP client for the Perkloop platform API.
type PerkloopClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewPerkloopClient creates a new client for the Perkloop platform.
func NewPerkloopClient(cfg Config) *PerkloopClient {
	return &PerkloopClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
// 4xx responses from the purchase endpoints are business outcomes (rejections),
// so the caller gets the parsed body along with the error.
func (c *PerkloopClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.cfg.AdminSecret != "" {
		req.Header.Set("X-Admin-Secret", c.cfg.AdminSecret)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return json.RawMessage(respBody), fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// ResolveCode checks a referral code against the platform.
func (c *PerkloopClient) ResolveCode(ctx context.Context, code string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/referral-codes/"+url.PathEscape(code), nil, nil)
}

// SubmitPurchase runs a purchase attempt through fraud validation.
func (c *PerkloopClient) SubmitPurchase(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/purchases", nil, body)
}

// ListPendingRewards returns rewards awaiting operator review.
func (c *PerkloopClient) ListPendingRewards(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/admin/rewards/pending", q, nil)
}

// ReviewReward approves or rejects a pending reward.
func (c *PerkloopClient) ReviewReward(ctx context.Context, rewardID, decision, note string) (json.RawMessage, error) {
	body := map[string]string{"reviewedBy": c.cfg.Reviewer}
	if note != "" {
		body["note"] = note
	}
	path := "/v1/admin/rewards/" + url.PathEscape(rewardID) + "/" + decision
	return c.doRequest(ctx, http.MethodPost, path, nil, body)
}

// GetReferrer returns a referrer's profile.
func (c *PerkloopClient) GetReferrer(ctx context.Context, referrerID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/referrers/"+url.PathEscape(referrerID), nil, nil)
}

// ListReferrerPurchases returns a referrer's recent purchases.
func (c *PerkloopClient) ListReferrerPurchases(ctx context.Context, referrerID string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/referrers/"+url.PathEscape(referrerID)+"/purchases", q, nil)
}

// ListAssessments returns recent fraud assessments, optionally per referrer.
func (c *PerkloopClient) ListAssessments(ctx context.Context, referrerID string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/admin/fraud/assessments"
	if referrerID != "" {
		path = "/v1/admin/fraud/referrers/" + url.PathEscape(referrerID) + "/assessments"
	}
	return c.doRequest(ctx, http.MethodGet, path, q, nil)
}
