package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *PerkloopClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *PerkloopClient) *Handlers {
	return &Handlers{client: client}
}

// HandleCheckReferralCode looks up a referral code.
func (h *Handlers) HandleCheckReferralCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := req.GetString("code", "")
	if code == "" {
		return mcp.NewToolResultError("code is required"), nil
	}

	raw, err := h.client.ResolveCode(ctx, code)
	if err != nil {
		if raw != nil {
			// Malformed or unregistered: a definitive answer, not a failure.
			return mcp.NewToolResultText(formatCodeOutcome(raw)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check code: %v", err)), nil
	}

	text, err := formatReferrer(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse referrer: %v", err)), nil
	}
	return mcp.NewToolResultText("Code is valid.\n\n" + text), nil
}

// HandleValidatePurchase submits a purchase through fraud validation.
func (h *Handlers) HandleValidatePurchase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	amount := req.GetFloat("amount", 0)
	if amount <= 0 {
		return mcp.NewToolResultError("amount must be a positive number"), nil
	}
	referralCode := req.GetString("referral_code", "")
	if referralCode == "" {
		return mcp.NewToolResultError("referral_code is required"), nil
	}

	body := map[string]any{
		"amount":       amount,
		"referralCode": referralCode,
	}
	if v := req.GetString("customer_id", ""); v != "" {
		body["customerId"] = v
	}
	if v := req.GetString("email", ""); v != "" {
		body["email"] = v
	}
	if v := req.GetString("origin_ip", ""); v != "" {
		body["originIp"] = v
	}

	raw, err := h.client.SubmitPurchase(ctx, body)
	if err != nil {
		if raw != nil {
			return mcp.NewToolResultText(formatRejection(raw)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Validation request failed: %v", err)), nil
	}

	text, err := formatPurchase(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse purchase: %v", err)), nil
	}
	return mcp.NewToolResultText("Purchase ACCEPTED.\n\n" + text), nil
}

// HandleListPendingRewards lists rewards awaiting review.
func (h *Handlers) HandleListPendingRewards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListPendingRewards(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list pending rewards: %v", err)), nil
	}

	text, err := formatRewardList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse rewards: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleReviewReward approves or rejects a pending reward.
func (h *Handlers) HandleReviewReward(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rewardID := req.GetString("reward_id", "")
	if rewardID == "" {
		return mcp.NewToolResultError("reward_id is required"), nil
	}
	decision := req.GetString("decision", "")
	if decision != "approve" && decision != "reject" {
		return mcp.NewToolResultError("decision must be 'approve' or 'reject'"), nil
	}
	note := req.GetString("note", "")
	if decision == "reject" && note == "" {
		return mcp.NewToolResultError("note is required when rejecting a reward"), nil
	}

	raw, err := h.client.ReviewReward(ctx, rewardID, decision, note)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Review failed: %v", err)), nil
	}

	var resp struct {
		Reward rewardJSON `json:"reward"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse reward: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Reward %s is now %s.\nAmount: $%.2f\nReferrer: %s\nPurchase: %s",
		resp.Reward.ID, strings.ToUpper(resp.Reward.Status),
		resp.Reward.Amount, resp.Reward.ReferrerID, resp.Reward.PurchaseID)), nil
}

// HandleReferrerStats returns a referrer profile with recent purchases.
func (h *Handlers) HandleReferrerStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	referrerID := req.GetString("referrer_id", "")
	if referrerID == "" {
		return mcp.NewToolResultError("referrer_id is required"), nil
	}
	limit := req.GetInt("limit", 10)

	refRaw, err := h.client.GetReferrer(ctx, referrerID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get referrer: %v", err)), nil
	}
	refText, err := formatReferrer(refRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse referrer: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(refText)

	purchasesRaw, err := h.client.ListReferrerPurchases(ctx, referrerID, limit)
	if err == nil {
		if purchText, perr := formatPurchaseList(purchasesRaw); perr == nil {
			sb.WriteString("\n\n")
			sb.WriteString(purchText)
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleRecentAssessments browses the fraud audit trail.
func (h *Handlers) HandleRecentAssessments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	referrerID := req.GetString("referrer_id", "")
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListAssessments(ctx, referrerID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list assessments: %v", err)), nil
	}

	text, err := formatAssessmentList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessments: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// -----------------------------------------------------------------------------
// Formatters: JSON responses to operator-readable text
// -----------------------------------------------------------------------------

type referrerJSON struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

type purchaseJSON struct {
	ID         string    `json:"id"`
	ReferrerID string    `json:"referrerId"`
	Amount     float64   `json:"amount"`
	OriginIP   string    `json:"originIp"`
	FraudScore int       `json:"fraudScore"`
	CreatedAt  time.Time `json:"createdAt"`
}

type rewardJSON struct {
	ID         string  `json:"id"`
	PurchaseID string  `json:"purchaseId"`
	ReferrerID string  `json:"referrerId"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status"`
}

type assessmentJSON struct {
	ID          string    `json:"id"`
	ReferrerID  string    `json:"referrerId"`
	OriginIP    string    `json:"originIp"`
	Amount      float64   `json:"amount"`
	Score       int       `json:"score"`
	Flags       []string  `json:"flags"`
	Accepted    bool      `json:"accepted"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

func formatReferrer(raw json.RawMessage) (string, error) {
	var resp struct {
		Referrer    referrerJSON `json:"referrer"`
		DisplayCode string       `json:"display_code"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	r := resp.Referrer

	var sb strings.Builder
	fmt.Fprintf(&sb, "Referrer: %s (%s)\n", r.Name, r.ID)
	fmt.Fprintf(&sb, "Code: %s\n", resp.DisplayCode)
	fmt.Fprintf(&sb, "Verified: %v\n", r.Verified)
	switch {
	case r.Email != "":
		fmt.Fprintf(&sb, "Contact: %s (email)", r.Email)
	case r.Phone != "":
		fmt.Fprintf(&sb, "Contact: %s (sms)", r.Phone)
	default:
		sb.WriteString("Contact: none (cannot be notified)")
	}
	return sb.String(), nil
}

func formatCodeOutcome(raw json.RawMessage) string {
	var e apiError
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		switch e.Error {
		case "malformed_code":
			return "Code is MALFORMED: " + e.Message
		case "code_not_found":
			return "Code is NOT REGISTERED: " + e.Message
		}
		return e.Error + ": " + e.Message
	}
	return string(raw)
}

func formatRejection(raw json.RawMessage) string {
	var e struct {
		Error   string   `json:"error"`
		Message string   `json:"message"`
		Score   int      `json:"score"`
		Flags   []string `json:"flags"`
	}
	if json.Unmarshal(raw, &e) != nil {
		return string(raw)
	}

	var sb strings.Builder
	switch e.Error {
	case "invalid_referral_code":
		sb.WriteString("Purchase REJECTED: invalid referral code.")
	case "fraud_suspected":
		fmt.Fprintf(&sb, "Purchase REJECTED: fraud suspected (score %d).\n\nFlags:\n", e.Score)
		for _, f := range e.Flags {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
	case "fraud_check_unavailable":
		sb.WriteString("Purchase REJECTED: fraud validation unavailable (failing closed). Retry later.")
	default:
		fmt.Fprintf(&sb, "Purchase rejected: %s — %s", e.Error, e.Message)
	}
	return sb.String()
}

func formatPurchase(raw json.RawMessage) (string, error) {
	var resp struct {
		Purchase purchaseJSON `json:"purchase"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	p := resp.Purchase
	return fmt.Sprintf("Purchase: %s\nAmount: $%.2f\nReferrer: %s\nFraud score: %d",
		p.ID, p.Amount, p.ReferrerID, p.FraudScore), nil
}

func formatPurchaseList(raw json.RawMessage) (string, error) {
	var resp struct {
		Purchases []purchaseJSON `json:"purchases"`
		Count     int            `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Purchases) == 0 {
		return "No referred purchases yet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent purchases (%d):\n", resp.Count)
	for _, p := range resp.Purchases {
		fmt.Fprintf(&sb, "  %s  $%.2f  score %d  %s\n",
			p.ID, p.Amount, p.FraudScore, p.CreatedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func formatRewardList(raw json.RawMessage) (string, error) {
	var resp struct {
		Rewards []rewardJSON `json:"rewards"`
		Count   int          `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Rewards) == 0 {
		return "No rewards pending review.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Pending rewards (%d):\n", resp.Count)
	for _, r := range resp.Rewards {
		fmt.Fprintf(&sb, "  %s  $%.2f  referrer %s  purchase %s\n",
			r.ID, r.Amount, r.ReferrerID, r.PurchaseID)
	}
	sb.WriteString("\nUse review_reward with a reward_id to approve or reject.")
	return sb.String(), nil
}

func formatAssessmentList(raw json.RawMessage) (string, error) {
	var resp struct {
		Assessments []assessmentJSON `json:"assessments"`
		Count       int              `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Assessments) == 0 {
		return "No assessments recorded.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Fraud assessments (%d):\n", resp.Count)
	for _, a := range resp.Assessments {
		outcome := "accepted"
		if !a.Accepted {
			outcome = "REJECTED"
		}
		fmt.Fprintf(&sb, "  %s  $%.2f  score %d  %s", a.ID, a.Amount, a.Score, outcome)
		if len(a.Flags) > 0 {
			fmt.Fprintf(&sb, "  [%s]", strings.Join(a.Flags, "; "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
