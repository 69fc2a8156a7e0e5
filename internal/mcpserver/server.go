package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Perkloop tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("perkloop", "1.0.0")
	client := NewPerkloopClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolCheckReferralCode, h.HandleCheckReferralCode)
	s.AddTool(ToolValidatePurchase, h.HandleValidatePurchase)
	s.AddTool(ToolListPendingRewards, h.HandleListPendingRewards)
	s.AddTool(ToolReviewReward, h.HandleReviewReward)
	s.AddTool(ToolReferrerStats, h.HandleReferrerStats)
	s.AddTool(ToolRecentAssessments, h.HandleRecentAssessments)

	return s
}
