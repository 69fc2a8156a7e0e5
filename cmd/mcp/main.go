// Perkloop MCP Server - Exposes referral fraud review tools as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/perkloop/perkloop/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:      envOrDefault("PERKLOOP_API_URL", "http://localhost:8080"),
		AdminSecret: os.Getenv("PERKLOOP_ADMIN_SECRET"),
		Reviewer:    envOrDefault("PERKLOOP_REVIEWER", "mcp-operator"),
	}

	if cfg.AdminSecret == "" {
		fmt.Fprintln(os.Stderr, "warning: PERKLOOP_ADMIN_SECRET not set; review tools will be rejected by the platform")
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
