// Package mcp provides a Model Context Protocol server for notesearch.
//
// It exposes the note search subsystem (search, recommend, mention lookup,
// index stats) as MCP tools over stdio, so editor agents can query a user's
// notes. Tenancy is explicit: every tool takes the tenant id.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/notevault/notesearch/internal/index"
	"github.com/notevault/notesearch/internal/search"
	"github.com/notevault/notesearch/internal/store"
)

// ServerConfig holds the collaborators of the MCP server.
type ServerConfig struct {
	Engine  *search.Engine
	Index   index.Engine
	Version string
}

// NewServer creates a configured MCP server with all notesearch tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"notesearch",
		ver,
		server.WithToolCapabilities(false),
	)

	registerSearchTool(s, cfg.Engine)
	registerRecommendTool(s, cfg.Engine)
	registerMentionTool(s, cfg.Engine)
	registerMentionSelectTool(s, cfg.Engine)
	registerStatsTool(s, cfg.Index)

	return s
}

func registerSearchTool(s *server.MCPServer, engine *search.Engine) {
	tool := mcp.NewTool("note_search",
		mcp.WithDescription("Search a user's notes with ranking and highlighted snippets. Empty query lists notes by a structural sort key."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("tenant",
			mcp.Required(),
			mcp.Description("User account id; results never cross tenants"),
		),
		mcp.WithString("query",
			mcp.Description("Free-text query. Empty lists all live notes."),
		),
		mcp.WithString("sort",
			mcp.Description("Sort key (default: relevance for queries, created otherwise)"),
			mcp.Enum("relevance", "created", "modified", "title"),
		),
		mcp.WithBoolean("reverse",
			mcp.Description("Descending order for structural sort keys"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based page number (default: 1)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Page size (default: 10)"),
		),
		mcp.WithBoolean("in_trash",
			mcp.Description("Search trashed notes instead of live ones"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenant, err := req.RequireString("tenant")
		if err != nil {
			return mcp.NewToolResultError("tenant is required"), nil
		}

		query := ""
		if q, err := req.RequireString("query"); err == nil {
			query = q
		}

		opts := search.Options{}
		if sortStr, err := req.RequireString("sort"); err == nil && sortStr != "" {
			opts.Sort = index.Sort(sortStr)
		}
		if rev, err := req.RequireString("reverse"); err == nil {
			opts.Reverse = rev == "true"
		}
		if page, err := req.RequireFloat("page"); err == nil && page > 0 {
			opts.Page = int(page)
		}
		if limit, err := req.RequireFloat("limit"); err == nil && limit > 0 {
			opts.Limit = int(limit)
		}
		if trash, err := req.RequireString("in_trash"); err == nil {
			opts.InTrash = trash == "true"
		}

		hits, total, err := engine.UserNodes(ctx, tenant, query, opts)
		if err != nil {
			return toolError("search", err), nil
		}
		return resultJSON(map[string]interface{}{
			"total": total,
			"hits":  hits,
		}), nil
	})
}

func registerRecommendTool(s *server.MCPServer, engine *search.Engine) {
	tool := mcp.NewTool("note_recommend",
		mcp.WithDescription("Find the notes most similar to the given content. The content does not have to be an indexed note."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("tenant",
			mcp.Required(),
			mcp.Description("User account id"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Content to find similar notes for"),
		),
		mcp.WithNumber("max_return",
			mcp.Description("Maximum results (default: 5)"),
		),
		mcp.WithString("exclude",
			mcp.Description("Comma-separated nids to exclude"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenant, err := req.RequireString("tenant")
		if err != nil {
			return mcp.NewToolResultError("tenant is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError("content is required"), nil
		}

		maxReturn := 0
		if n, err := req.RequireFloat("max_return"); err == nil && n > 0 {
			maxReturn = int(n)
		}
		var exclude []string
		if ex, err := req.RequireString("exclude"); err == nil && ex != "" {
			exclude = splitCSV(ex)
		}

		hits, err := engine.Recommend(ctx, tenant, content, maxReturn, exclude)
		if err != nil {
			return toolError("recommend", err), nil
		}
		return resultJSON(hits), nil
	})
}

func registerMentionTool(s *server.MCPServer, engine *search.Engine) {
	tool := mcp.NewTool("note_mention",
		mcp.WithDescription("'@' autocomplete for linking notes: empty query returns recently mentioned notes in recency order, otherwise a similarity search. The current note is always excluded."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("tenant",
			mcp.Required(),
			mcp.Description("User account id"),
		),
		mcp.WithString("nid",
			mcp.Required(),
			mcp.Description("The note the mention is typed in"),
		),
		mcp.WithString("query",
			mcp.Description("Text typed after the '@'"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based page number (default: 1)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Page size (default: 10)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenant, err := req.RequireString("tenant")
		if err != nil {
			return mcp.NewToolResultError("tenant is required"), nil
		}
		nid, err := req.RequireString("nid")
		if err != nil {
			return mcp.NewToolResultError("nid is required"), nil
		}

		query := ""
		if q, err := req.RequireString("query"); err == nil {
			query = q
		}
		page, limit := 1, 0
		if p, err := req.RequireFloat("page"); err == nil && p > 0 {
			page = int(p)
		}
		if l, err := req.RequireFloat("limit"); err == nil && l > 0 {
			limit = int(l)
		}

		hits, total, err := engine.At(ctx, tenant, nid, query, page, limit)
		if err != nil {
			return toolError("mention lookup", err), nil
		}
		return resultJSON(map[string]interface{}{
			"total": total,
			"hits":  hits,
		}), nil
	})
}

func registerMentionSelectTool(s *server.MCPServer, engine *search.Engine) {
	tool := mcp.NewTool("note_mention_select",
		mcp.WithDescription("Record that the user picked a note from the '@' autocomplete, so it ranks first in future empty-query mention lookups."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("tenant",
			mcp.Required(),
			mcp.Description("User account id"),
		),
		mcp.WithString("nid",
			mcp.Required(),
			mcp.Description("The note the mention was typed in"),
		),
		mcp.WithString("to_nid",
			mcp.Required(),
			mcp.Description("The note that was selected"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenant, err := req.RequireString("tenant")
		if err != nil {
			return mcp.NewToolResultError("tenant is required"), nil
		}
		nid, err := req.RequireString("nid")
		if err != nil {
			return mcp.NewToolResultError("nid is required"), nil
		}
		toNid, err := req.RequireString("to_nid")
		if err != nil {
			return mcp.NewToolResultError("to_nid is required"), nil
		}

		if err := engine.MentionAdded(ctx, tenant, nid, toNid); err != nil {
			return toolError("mention select", err), nil
		}
		return resultJSON(map[string]interface{}{"recorded": toNid}), nil
	})
}

func registerStatsTool(s *server.MCPServer, idx index.Engine) {
	tool := mcp.NewTool("note_stats",
		mcp.WithDescription("Total indexed note count across all tenants."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := idx.CountAll(ctx)
		if err != nil {
			return toolError("stats", err), nil
		}
		return resultJSON(map[string]interface{}{"indexed_documents": n}), nil
	})
}

// toolError maps classified engine errors onto tool error strings without
// leaking backend detail.
func toolError(op string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, index.ErrInvalidQuery):
		return mcp.NewToolResultError(fmt.Sprintf("%s: query could not be parsed", op))
	case errors.Is(err, index.ErrNotFound), errors.Is(err, store.ErrNodeNotExist):
		return mcp.NewToolResultError(fmt.Sprintf("%s: not found", op))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("%s error: %v", op, err))
	}
}

func resultJSON(v interface{}) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data))
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
