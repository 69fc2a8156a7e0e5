package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/perkloop/perkloop/internal/config"
	"github.com/perkloop/perkloop/internal/identity"
	"github.com/perkloop/perkloop/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal in-memory config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Env:               "development",
		LogLevel:          "error",
		MinPurchaseAmount: 50.00,
		RejectThreshold:   70,
		IPAllTimeLimit:    5,
		IPDailyLimit:      10,
		IdentityTimeout:   2 * time.Second,
		FraudFailMode:     config.FailClosed,
		ValidationTimeout: 5 * time.Second,
		RewardPercent:     0.10,
		AdminSecret:       "test-secret",
		RateLimitRPM:      100000,
	}
}

// newTestServer creates a server with in-memory stores and a stub identity provider
func newTestServer(t *testing.T) (*Server, *identity.MemoryProvider) {
	t.Helper()
	provider := identity.NewMemoryProvider()
	s, err := New(testConfig(),
		WithLogger(logging.New("error", "text")),
		WithIdentityProvider(provider),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s, provider
}

func doRequest(s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Health and info endpoints
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, "GET", "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v", resp["status"])
	}
}

func TestLivenessAndReadiness(t *testing.T) {
	s, _ := newTestServer(t)

	if w := doRequest(s, "GET", "/health/live", nil, nil); w.Code != http.StatusOK {
		t.Errorf("liveness = %d, want 200", w.Code)
	}

	// Readiness flips only once Run has started the listeners.
	if w := doRequest(s, "GET", "/health/ready", nil, nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness before Run = %d, want 503", w.Code)
	}

	s.ready.Store(true)
	if w := doRequest(s, "GET", "/health/ready", nil, nil); w.Code != http.StatusOK {
		t.Errorf("readiness = %d, want 200", w.Code)
	}
}

func TestInfoAndMetricsEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, "GET", "/api", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("/api = %d, want 200", w.Code)
	}

	w = doRequest(s, "GET", "/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("/metrics = %d, want 200", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, "GET", "/health", nil, nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}

	w = doRequest(s, "GET", "/health", nil, map[string]string{"X-Request-ID": "req-from-lb"})
	if got := w.Header().Get("X-Request-ID"); got != "req-from-lb" {
		t.Errorf("X-Request-ID = %q, want the forwarded one", got)
	}
}

// ---------------------------------------------------------------------------
// Admin gating
// ---------------------------------------------------------------------------

func TestAdminRoutesRequireSecret(t *testing.T) {
	s, _ := newTestServer(t)

	if w := doRequest(s, "GET", "/v1/admin/rewards/pending", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("without secret = %d, want 401", w.Code)
	}

	headers := map[string]string{"X-Admin-Secret": "test-secret"}
	if w := doRequest(s, "GET", "/v1/admin/rewards/pending", nil, headers); w.Code != http.StatusOK {
		t.Errorf("with secret = %d, want 200", w.Code)
	}
}

func TestAdminDisabledWithoutConfiguredSecret(t *testing.T) {
	cfg := testConfig()
	cfg.AdminSecret = ""
	s, err := New(cfg, WithLogger(logging.New("error", "text")), WithIdentityProvider(identity.NewMemoryProvider()))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	headers := map[string]string{"X-Admin-Secret": "anything"}
	if w := doRequest(s, "GET", "/v1/admin/fraud/assessments", nil, headers); w.Code != http.StatusForbidden {
		t.Errorf("admin without configured secret = %d, want 403", w.Code)
	}
}

// ---------------------------------------------------------------------------
// End-to-end referral purchase flow over the wired router
// ---------------------------------------------------------------------------

func TestReferralPurchaseFlow(t *testing.T) {
	s, provider := newTestServer(t)
	admin := map[string]string{"X-Admin-Secret": "test-secret"}

	// Register a referrer.
	w := doRequest(s, "POST", "/v1/referrers", gin.H{"name": "Alice", "email": "alice@example.com"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create referrer = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Referrer struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		} `json:"referrer"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("parse create response: %v", err)
	}

	provider.SetVerified("cust_bob", true)

	// Submit a clean purchase against the code.
	w = doRequest(s, "POST", "/v1/purchases", gin.H{
		"amount":       120.00,
		"referralCode": created.Referrer.Code,
		"customerId":   "cust_bob",
		"originIp":     "203.0.113.9",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit purchase = %d: %s", w.Code, w.Body.String())
	}
	var submitted struct {
		Purchase struct {
			ID         string `json:"id"`
			FraudScore int    `json:"fraudScore"`
		} `json:"purchase"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("parse purchase response: %v", err)
	}
	if submitted.Purchase.FraudScore != 0 {
		t.Errorf("fraud score = %d, want 0", submitted.Purchase.FraudScore)
	}

	// The reward is pending admin review.
	w = doRequest(s, "GET", "/v1/admin/rewards/pending", nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("list pending = %d", w.Code)
	}
	var pending struct {
		Rewards []struct {
			ID     string  `json:"id"`
			Amount float64 `json:"amount"`
		} `json:"rewards"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &pending); err != nil {
		t.Fatalf("parse pending response: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("pending count = %d, want 1", pending.Count)
	}
	if pending.Rewards[0].Amount != 12.00 {
		t.Errorf("reward amount = %v, want 12.00", pending.Rewards[0].Amount)
	}

	// Approve it.
	w = doRequest(s, "POST", "/v1/admin/rewards/"+pending.Rewards[0].ID+"/approve",
		gin.H{"reviewedBy": "ops@example.com"}, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("approve = %d: %s", w.Code, w.Body.String())
	}

	// Self-referral attempt on the same code is refused.
	provider.SetVerified(created.Referrer.ID, true)
	w = doRequest(s, "POST", "/v1/purchases", gin.H{
		"amount":       120.00,
		"referralCode": created.Referrer.Code,
		"customerId":   created.Referrer.ID,
		"originIp":     "203.0.113.10",
	}, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("self-referral = %d, want 403: %s", w.Code, w.Body.String())
	}
}

func TestPurchaseWithBadCodeOverRouter(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, "POST", "/v1/purchases", gin.H{
		"amount":       100.00,
		"referralCode": "ZZZZ9999",
	}, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown code = %d, want 422", w.Code)
	}
}
