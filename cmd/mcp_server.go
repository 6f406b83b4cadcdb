/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

// MCP server bootstrap: exposes C11's agent tool registry (notes_search,
// recent_changes) over stdio for external AI clients, mirroring the
// teacher's cmd/mcp_server.go task-tool exposure.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/obbywatch/internal/agent"
	"github.com/josephgoksu/obbywatch/internal/config"
	"github.com/josephgoksu/obbywatch/internal/semanticindex"
	"github.com/josephgoksu/obbywatch/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing the watched project's agent tools",
	Long: `Start a Model Context Protocol (MCP) server over stdin/stdout so AI
tools like Claude Code can call the same notes_search and recent_changes
tools the in-terminal agent uses, without going through the HTTP chat
endpoints.

Example usage with Claude Code:
  obbywatch mcp

The server runs until the client disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServer(ctx context.Context) error {
	pctx := config.GetProjectContext()
	layout := config.ResolveLayout(pctx.RootPath)

	st, err := store.Open(layout.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	idx := semanticindex.New(st)
	registry := agent.NewRegistry(
		agent.NewNotesSearchTool(idx),
		agent.NewHistoryTool(st),
	)

	impl := &mcp.Implementation{
		Name:    "obbywatch",
		Version: version,
	}
	server := mcp.NewServer(impl, &mcp.ServerOptions{})

	if err := registerAgentMCPTools(server, registry); err != nil {
		return fmt.Errorf("register mcp tools: %w", err)
	}

	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		return fmt.Errorf("mcp server failed: %w", err)
	}
	return nil
}

// agentToolArgs is a loose arguments bag: each registered agent.Tool
// parses its own JSON shape internally (InvokableRun), so the MCP layer
// only needs to round-trip whatever the client sends.
type agentToolArgs map[string]any

// agentToolResult is the structured result surfaced back to the MCP
// client alongside the text content block.
type agentToolResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func registerAgentMCPTools(server *mcp.Server, registry *agent.Registry) error {
	for _, t := range registry.BaseTools() {
		info, err := t.Info(context.Background())
		if err != nil {
			return fmt.Errorf("tool info: %w", err)
		}
		mcp.AddTool(server, &mcp.Tool{
			Name:        info.Name,
			Description: info.Desc,
		}, agentToolHandler(registry, info.Name))
	}
	return nil
}

func agentToolHandler(registry *agent.Registry, name string) mcp.ToolHandlerFor[agentToolArgs, agentToolResult] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[agentToolArgs]) (*mcp.CallToolResultFor[agentToolResult], error) {
		argsJSON, err := json.Marshal(params.Arguments)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}

		result := registry.Invoke(ctx, name, string(argsJSON))
		if !result.Success {
			return &mcp.CallToolResultFor[agentToolResult]{
				Content:           []mcp.Content{&mcp.TextContent{Text: "error: " + result.Error}},
				IsError:           true,
				StructuredContent: agentToolResult{Success: false, Error: result.Error},
			}, nil
		}

		return &mcp.CallToolResultFor[agentToolResult]{
			Content:           []mcp.Content{&mcp.TextContent{Text: result.Content}},
			StructuredContent: agentToolResult{Success: true},
		}, nil
	}
}
