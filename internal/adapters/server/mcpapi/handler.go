// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/gridsel/internal/adapters/server/common"
	"github.com/hylla/gridsel/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing grid listing and bulk action tools.
func NewHandler(cfg Config, grid common.GridService) (*Handler, error) {
	if grid == nil {
		return nil, fmt.Errorf("grid service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerListRecordsTool(mcpSrv, grid)
	registerBulkActionTool(mcpSrv, grid)
	registerActionLogTool(mcpSrv, grid)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "gridsel"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerListRecordsTool registers the `gridsel.list_records` tool.
func registerListRecordsTool(srv *mcpserver.MCPServer, grid common.GridService) {
	srv.AddTool(
		mcp.NewTool(
			"gridsel.list_records",
			mcp.WithDescription("List one page of records matching a query, with the total match count."),
			mcp.WithString("q", mcp.Description("Case-insensitive title search")),
			mcp.WithString("status", mcp.Description("Status filter"), mcp.Enum("draft", "active", "closed")),
			mcp.WithBoolean("include_archived", mcp.Description("Include archived records")),
			mcp.WithNumber("page", mcp.Description("1-based page number")),
			mcp.WithNumber("page_size", mcp.Description("Records per page")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			page, err := grid.ListRecords(ctx, common.ListRecordsRequest{
				Query: common.QueryFilter{
					Search:          req.GetString("q", ""),
					Status:          req.GetString("status", ""),
					IncludeArchived: req.GetBool("include_archived", false),
				},
				Page:     req.GetInt("page", 1),
				PageSize: req.GetInt("page_size", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(page)
			if err != nil {
				return nil, fmt.Errorf("encode list_records result: %w", err)
			}
			return result, nil
		},
	)
}

// registerBulkActionTool registers the `gridsel.run_bulk_action` tool.
func registerBulkActionTool(srv *mcpserver.MCPServer, grid common.GridService) {
	actions := make([]string, 0, len(domain.BulkActions()))
	for _, action := range domain.BulkActions() {
		actions = append(actions, string(action))
	}
	srv.AddTool(
		mcp.NewTool(
			"gridsel.run_bulk_action",
			mcp.WithDescription("Apply a bulk action to explicit record ids, or with select_across to every record matching the query."),
			mcp.WithString("action", mcp.Required(), mcp.Description("Bulk action"), mcp.Enum(actions...)),
			mcp.WithBoolean("select_across", mcp.Description("Target every record matching the query instead of ids")),
			mcp.WithArray("ids", mcp.Description("Record ids when select_across is false"), mcp.WithStringItems()),
			mcp.WithString("q", mcp.Description("Query title search used with select_across")),
			mcp.WithString("query_status", mcp.Description("Query status filter used with select_across")),
			mcp.WithBoolean("include_archived", mcp.Description("Query includes archived records")),
			mcp.WithString("priority", mcp.Description("Target priority for set_priority"), mcp.Enum("low", "medium", "high")),
			mcp.WithString("status", mcp.Description("Target status for set_status"), mcp.Enum("draft", "active", "closed")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			action, err := req.RequireString("action")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			out, err := grid.RunBulkAction(ctx, common.BulkActionRequest{
				Action:       action,
				SelectAcross: req.GetBool("select_across", false),
				IDs:          req.GetStringSlice("ids", nil),
				Query: common.QueryFilter{
					Search:          req.GetString("q", ""),
					Status:          req.GetString("query_status", ""),
					IncludeArchived: req.GetBool("include_archived", false),
				},
				Priority: req.GetString("priority", ""),
				Status:   req.GetString("status", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(out)
			if err != nil {
				return nil, fmt.Errorf("encode run_bulk_action result: %w", err)
			}
			return result, nil
		},
	)
}

// registerActionLogTool registers the `gridsel.list_action_log` tool.
func registerActionLogTool(srv *mcpserver.MCPServer, grid common.GridService) {
	srv.AddTool(
		mcp.NewTool(
			"gridsel.list_action_log",
			mcp.WithDescription("List recent bulk action log entries, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum entries to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			entries, err := grid.ListActionLog(ctx, req.GetInt("limit", 20))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"entries": entries})
			if err != nil {
				return nil, fmt.Errorf("encode list_action_log result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps adapter errors into MCP tool error results.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrNoSelection):
		return mcp.NewToolResultError("no_selection: " + err.Error())
	case errors.Is(err, common.ErrInvalidArgument):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
