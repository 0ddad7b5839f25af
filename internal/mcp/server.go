// Package mcp provides a Model Context Protocol server for the lore store.
//
// It exposes lookups over the latest cleaning run (record lookup, category
// listing, context search, quality report) as MCP tools, and the quality
// report as an MCP resource. Supports stdio transport and optional
// streamable HTTP transport.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/loresmith/internal/extract"
	"github.com/hurttlocker/loresmith/internal/store"
)

// ReportURI is the quality report resource.
const ReportURI = "lore://report"

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Version string // version string for MCP server info
}

// dbMu serializes tool calls that touch the database; mcp-go dispatches
// handlers concurrently.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all lore tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"loresmith",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerLookupTool(s, cfg.Store)
	registerListTool(s, cfg.Store)
	registerSearchTool(s, cfg.Store)
	registerReportTool(s, cfg.Store)

	registerReportResource(s, cfg.Store)

	return s
}

// --- Tools ---

func registerLookupTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("lore_lookup",
		mcp.WithDescription("Look up one record (gear set, rune, character or material) from the latest cleaning run, with its contexts, sources and derived attributes."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("Record category"),
			mcp.Enum(extract.Categories...),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Record key, e.g. 'oracle' or 'thor'"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		category, err := req.RequireString("category")
		if err != nil {
			return mcp.NewToolResultError("category is required"), nil
		}
		name, err := req.RequireString("name")
		if err != nil || strings.TrimSpace(name) == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		rec, err := st.GetRecord(ctx, category, name)
		if err != nil {
			return storeError("lookup", err), nil
		}
		return jsonResult(rec), nil
	})
}

func registerListTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("lore_list",
		mcp.WithDescription("List records in a category from the latest cleaning run. Without a category, returns record counts per category."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("category",
			mcp.Description("Record category; empty lists category counts"),
		),
		mcp.WithString("sort",
			mcp.Description("Sort order (default: mentions)"),
			mcp.Enum("mentions", "confidence", "name"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records (default: 20, max: 200)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		category, _ := req.RequireString("category")
		category = strings.TrimSpace(strings.ToLower(category))
		if category == "" {
			cats, err := st.Categories(ctx)
			if err != nil {
				return storeError("list", err), nil
			}
			return jsonResult(cats), nil
		}

		opts := store.ListOpts{Limit: 20}
		if sortBy, err := req.RequireString("sort"); err == nil && sortBy != "" {
			if !slices.Contains([]string{"mentions", "confidence", "name"}, sortBy) {
				return mcp.NewToolResultError(fmt.Sprintf("invalid sort: %s", sortBy)), nil
			}
			opts.SortBy = sortBy
		}
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			limit := int(limitVal)
			if limit > 200 {
				limit = 200
			}
			if limit > 0 {
				opts.Limit = limit
			}
		}

		recs, err := st.ListRecords(ctx, category, opts)
		if err != nil {
			return storeError("list", err), nil
		}
		// Listings stay compact; lore_lookup returns the full record.
		for _, r := range recs {
			r.Record = nil
		}
		if recs == nil {
			recs = []*store.StoredRecord{}
		}
		return jsonResult(recs), nil
	})
}

func registerSearchTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("lore_search",
		mcp.WithDescription("Full-text search over the context snippets of the latest cleaning run. Returns matching snippets with their record and confidence."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10, max: 50)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := 10
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			limit = min(max(int(limitVal), 1), 50)
		}

		results, err := st.SearchContexts(ctx, query, limit)
		if err != nil {
			return storeError("search", err), nil
		}
		if results == nil {
			results = []*store.SearchResult{}
		}
		return jsonResult(results), nil
	})
}

func registerReportTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("lore_report",
		mcp.WithDescription("Get the quality report of the latest cleaning run: entry counts, duplicates removed, cleaning efficiency and per-category breakdown."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		run, err := st.LatestRun(ctx)
		if err != nil {
			return storeError("report", err), nil
		}
		return jsonResult(run.Report), nil
	})
}

// --- Resources ---

func registerReportResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		ReportURI,
		"Quality Report",
		mcp.WithResourceDescription("Quality report of the latest cleaning run."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		run, err := st.LatestRun(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading latest run: %w", err)
		}

		data, _ := json.MarshalIndent(run.Report, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// --- Helpers ---

func jsonResult(v any) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data))
}

func storeError(op string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, store.ErrNoRuns):
		return mcp.NewToolResultError("no cleaning run has been stored yet; run `loresmith clean` first")
	case errors.Is(err, store.ErrNotFound):
		return mcp.NewToolResultError("record not found")
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s error: %v", op, err))
}
