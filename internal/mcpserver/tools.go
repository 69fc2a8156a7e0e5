package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Perkloop MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolCheckReferralCode = mcp.NewTool("check_referral_code",
	mcp.WithDescription(
		"Look up a referral code on Perkloop. "+
			"Tells you whether the code is malformed, unregistered, or valid, "+
			"and returns the referrer behind a valid code. "+
			"Codes are 8 characters, optionally hyphenated as XXXX-XXXX."),
	mcp.WithString("code",
		mcp.Required(),
		mcp.Description("The referral code to check (e.g. 'AB2D-EF3H' or 'AB2DEF3H')")),
)

var ToolValidatePurchase = mcp.NewTool("validate_purchase",
	mcp.WithDescription(
		"Submit a purchase attempt through Perkloop's fraud validation pipeline. "+
			"Accepted purchases are recorded and schedule a referrer reward; "+
			"rejected attempts return the fraud score and the specific flags that fired "+
			"(below-minimum amount, unverified identity, self-referral, origin-IP abuse)."),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Purchase amount in dollars (e.g. 99.50)")),
	mcp.WithString("referral_code",
		mcp.Required(),
		mcp.Description("The referral code used for the purchase")),
	mcp.WithString("customer_id",
		mcp.Description("Existing customer identity ID; omit for guest checkout")),
	mcp.WithString("email",
		mcp.Description("Customer email address")),
	mcp.WithString("origin_ip",
		mcp.Description("Origin IP address of the purchase; omit if unknown")),
)

var ToolListPendingRewards = mcp.NewTool("list_pending_rewards",
	mcp.WithDescription(
		"List referrer rewards awaiting operator review on Perkloop. "+
			"Each pending reward corresponds to an accepted purchase. "+
			"Use review_reward to approve or reject them."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of rewards to return (default 20)")),
)

var ToolReviewReward = mcp.NewTool("review_reward",
	mcp.WithDescription(
		"Approve or reject a pending referrer reward. "+
			"Rejection requires a note explaining the decision. "+
			"Already-reviewed rewards cannot be changed."),
	mcp.WithString("reward_id",
		mcp.Required(),
		mcp.Description("The reward ID from list_pending_rewards (e.g. 'rwd_...')")),
	mcp.WithString("decision",
		mcp.Required(),
		mcp.Description("The review decision"),
		mcp.Enum("approve", "reject")),
	mcp.WithString("note",
		mcp.Description("Reason for the decision; required when rejecting")),
)

var ToolReferrerStats = mcp.NewTool("referrer_stats",
	mcp.WithDescription(
		"Get a referrer's profile and recent referred purchases. "+
			"Shows the referral code, verification status, contact channels, "+
			"and the purchases attributed to them with their fraud scores."),
	mcp.WithString("referrer_id",
		mcp.Required(),
		mcp.Description("The referrer ID (e.g. 'ref_...')")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of purchases to include (default 10)")),
)

var ToolRecentAssessments = mcp.NewTool("recent_assessments",
	mcp.WithDescription(
		"Browse the fraud assessment audit trail. "+
			"Shows recent scored purchase attempts with their fraud scores, triggered flags, "+
			"and accept/reject outcomes. Optionally filter to one referrer to investigate a pattern."),
	mcp.WithString("referrer_id",
		mcp.Description("Restrict to assessments for one referrer")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of assessments to return (default 20)")),
)
