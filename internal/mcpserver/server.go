// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes jsonvault documents for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jsonvault/internal/bridge"
	"github.com/starford/jsonvault/internal/docservice"
	"github.com/starford/jsonvault/internal/models"
)

// Server wraps the MCP server with jsonvault tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *docservice.Service
	bridge *bridge.Dispatcher
}

// New creates a new MCP server with all jsonvault tools registered.
// Document operations go through the bridge so JSON rules match the host API.
func New(svc *docservice.Service, d *bridge.Dispatcher, version string) *Server {
	s := &Server{svc: svc, bridge: d}

	s.mcp = server.NewMCPServer(
		"jsonvault",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	tierOpt := mcp.WithString("tier",
		mcp.Description("Storage tier: synced (cloud mirrored) or private (device only). Defaults to private."),
		mcp.Enum("synced", "private"),
	)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Read a JSON document by name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document file name, e.g. servers.json")),
		tierOpt,
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("set_document",
		mcp.WithDescription("Create or replace a JSON document. "+
			"Read the jsonvault://layout resource for naming rules."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document file name, e.g. servers.json")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Complete JSON text of the document")),
		tierOpt,
	), s.setDocument)

	s.mcp.AddTool(mcp.NewTool("remove_document",
		mcp.WithDescription("Delete a JSON document."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document file name")),
		tierOpt,
	), s.removeDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List document names of a tier."),
		mcp.WithString("ext", mcp.Description("Optional extension filter such as .json")),
		tierOpt,
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Substring search across document names, titles and contents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("tier", mcp.Description("Optional tier to restrict the search"), mcp.Enum("synced", "private")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("get_layout",
		mcp.WithDescription("Returns the storage layout and naming rules. "+
			"Call this before writing documents."),
	), s.getLayout)

	s.mcp.AddResource(
		mcp.NewResource(layoutURI, "Storage Layout",
			mcp.WithResourceDescription("Where documents live and how they are named."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
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

func tierArg(req mcp.CallToolRequest) (models.Tier, error) {
	return models.ParseTier(req.GetString("tier", models.Private.String()))
}

// command picks the synced or private variant of a bridge command.
func command(tier models.Tier, synced, private string) string {
	if tier == models.Synced {
		return synced
	}
	return private
}

// run executes a bridge command and converts a failure into a tool error.
func (s *Server) run(ctx context.Context, cmd string, args ...string) (bridge.Result, *mcp.CallToolResult) {
	res := s.bridge.Execute(ctx, cmd, bridge.StringArgs(args...))
	if !res.Success {
		return res, mcp.NewToolResultError(fmt.Sprintf("%s %s", res.Error, res.Reason))
	}
	return res, nil
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tier, err := tierArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cmd := command(tier, bridge.CmdGet, bridge.CmdGetPrivate)
	res, errRes := s.run(ctx, cmd, name)
	if errRes != nil {
		return errRes, nil
	}
	out, _ := json.MarshalIndent(res.Contents, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) setDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tier, err := tierArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cmd := command(tier, bridge.CmdSet, bridge.CmdSetPrivate)
	if _, errRes := s.run(ctx, cmd, name, content); errRes != nil {
		return errRes, nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("stored: %s/%s", tier, name)), nil
}

func (s *Server) removeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tier, err := tierArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cmd := command(tier, bridge.CmdRemove, bridge.CmdRemovePriv)
	if _, errRes := s.run(ctx, cmd, name); errRes != nil {
		return errRes, nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %s/%s", tier, name)), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tier, err := tierArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cmd := command(tier, bridge.CmdList, bridge.CmdListPrivate)
	res, errRes := s.run(ctx, cmd, req.GetString("ext", ""))
	if errRes != nil {
		return errRes, nil
	}
	names, _ := res.Contents.([]string)
	if len(names) == 0 {
		return mcp.NewToolResultText("no documents"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var tiers []models.Tier
	if raw := req.GetString("tier", ""); raw != "" {
		t, err := models.ParseTier(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		tiers = append(tiers, t)
	}
	results, err := s.svc.Search(ctx, query, 20, tiers...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(Layout(s.svc.Store())), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      layoutURI,
			MIMEType: "text/markdown",
			Text:     Layout(s.svc.Store()),
		},
	}, nil
}
