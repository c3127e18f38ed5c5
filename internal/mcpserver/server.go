// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes presetcat tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/presetcat/internal/index"
	"github.com/starford/presetcat/internal/presetservice"
)

const groupFormatURI = "presetcat://group-format"

// Server wraps the MCP server with presetcat tools.
type Server struct {
	mcp *server.MCPServer
	svc *presetservice.Service
}

// New creates a new MCP server with all presetcat tools registered.
func New(svc *presetservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"presetcat",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_presets",
		mcp.WithDescription("List catalog presets with their cluster and group. Rescan first if the catalog may be stale."),
		mcp.WithString("cluster", mcp.Description("Only presets with this cluster")),
		mcp.WithString("group", mcp.Description("Only presets with this group")),
		mcp.WithBoolean("rescan", mcp.Description("Rescan the presets root before listing")),
	), s.listPresets)

	s.mcp.AddTool(mcp.NewTool("search_presets",
		mcp.WithDescription("Search presets by file name, cluster or group."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPresets)

	s.mcp.AddTool(mcp.NewTool("read_preset",
		mcp.WithDescription("Re-read one preset from disk: cluster, group, encoding and raw XMP."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the presets root (e.g. Portraits/Warm.xmp)")),
	), s.readPreset)

	s.mcp.AddTool(mcp.NewTool("set_cluster",
		mcp.WithDescription("Write a cluster value into presets. Folders expand to the presets they contain. "+
			"Read the presetcat://group-format resource for the value rules."),
		mcp.WithArray("paths", mcp.Required(), mcp.WithStringItems(), mcp.Description("Preset files or folders")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New cluster value")),
		mcp.WithBoolean("dry_run", mcp.Description("Return diffs without writing")),
	), s.setCluster)

	s.mcp.AddTool(mcp.NewTool("set_group",
		mcp.WithDescription("Write a group value into presets, replacing any malformed group tags."),
		mcp.WithArray("paths", mcp.Required(), mcp.WithStringItems(), mcp.Description("Preset files or folders")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New group value")),
		mcp.WithBoolean("dry_run", mcp.Description("Return diffs without writing")),
	), s.setGroup)

	s.mcp.AddTool(mcp.NewTool("fix_group_tags",
		mcp.WithDescription("Rewrite malformed group tags in canonical form, recovering the value "+
			"from the broken markup or the parent folder name."),
		mcp.WithArray("paths", mcp.Required(), mcp.WithStringItems(), mcp.Description("Preset files or folders")),
		mcp.WithBoolean("dry_run", mcp.Description("Return diffs without writing")),
	), s.fixGroupTags)

	s.mcp.AddTool(mcp.NewTool("suggest_from_paths",
		mcp.WithDescription("Start smart detection: infer cluster and group from each preset's folder "+
			"position. Manual set_cluster and set_group are refused until the suggestions are applied or reset."),
	), s.suggestFromPaths)

	s.mcp.AddTool(mcp.NewTool("apply_suggestions",
		mcp.WithDescription("Write pending smart detection suggestions. Empty paths applies all of them."),
		mcp.WithArray("paths", mcp.WithStringItems(), mcp.Description("Preset files or folders to apply")),
		mcp.WithBoolean("dry_run", mcp.Description("Return diffs without writing")),
	), s.applySuggestions)

	s.mcp.AddTool(mcp.NewTool("reset_suggestions",
		mcp.WithDescription("Discard pending smart detection suggestions."),
	), s.resetSuggestions)

	s.mcp.AddTool(mcp.NewTool("get_group_format",
		mcp.WithDescription("Returns how presetcat writes Cluster and Group fields and which values it accepts."),
	), s.getGroupFormat)

	// Resource: field format contract.
	s.mcp.AddResource(
		mcp.NewResource(groupFormatURI, "Cluster/Group Format",
			mcp.WithResourceDescription("Canonical layout of the Cluster and Group fields in XMP presets."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGroupFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listPresets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if req.GetBool("rescan", false) || len(s.svc.Records()) == 0 {
		if _, err := s.svc.Scan(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	items, _, err := s.svc.ListPresets(ctx, index.ListFilter{
		Cluster: req.GetString("cluster", ""),
		Group:   req.GetString("group", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no presets found"), nil
	}

	var b strings.Builder
	for _, p := range items {
		fmt.Fprintf(&b, "%s\tcluster=%q\tgroup=%q\n", p.DisplayName, p.Cluster, p.Group)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) searchPresets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readPreset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.GetPreset(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return jsonResult(p)
}

func (s *Server) setCluster(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, value, err := editArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.SetCluster(ctx, paths, value, req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) setGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, value, err := editArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.SetGroup(ctx, paths, value, req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func editArgs(req mcp.CallToolRequest) ([]string, string, error) {
	paths, err := req.RequireStringSlice("paths")
	if err != nil {
		return nil, "", err
	}
	value, err := req.RequireString("value")
	if err != nil {
		return nil, "", err
	}
	return paths, value, nil
}

func (s *Server) fixGroupTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := req.RequireStringSlice("paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.FixGroups(ctx, paths, req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) suggestFromPaths(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.StartSmartDetection(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(st.Suggestions) == 0 {
		s.svc.ResetSmartDetection()
		return mcp.NewToolResultText("every preset already matches its folder"), nil
	}
	return jsonResult(st)
}

func (s *Server) applySuggestions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths := req.GetStringSlice("paths", nil)
	res, err := s.svc.ApplySmartDetection(ctx, paths, req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) resetSuggestions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.svc.ResetSmartDetection() {
		return mcp.NewToolResultText("smart detection was not active"), nil
	}
	return mcp.NewToolResultText("suggestions discarded"), nil
}

func (s *Server) getGroupFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(GroupFormatContract), nil
}

func (s *Server) readGroupFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      groupFormatURI,
			MIMEType: "text/markdown",
			Text:     GroupFormatContract,
		},
	}, nil
}
