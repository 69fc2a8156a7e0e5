package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPProvider queries a hosted identity provider over its REST API.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProvider creates a provider client for the given base URL.
// timeout bounds each lookup; a stalled provider must not stall validation.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *HTTPProvider) IsPrimaryContactVerified(ctx context.Context, identityID string) (bool, error) {
	u := p.baseURL + "/v1/identities/" + url.PathEscape(identityID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Unknown identity: not verified, but a definitive answer.
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: provider returned %d", ErrLookupFailed, resp.StatusCode)
	}

	var body struct {
		PrimaryContactVerified bool `json:"primaryContactVerified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: decode response: %v", ErrLookupFailed, err)
	}
	return body.PrimaryContactVerified, nil
}
