package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerNavigationTools() {
	// ── list_annotated_pages ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_annotated_pages",
		mcp.WithDescription("List every page that has stored annotations, with stroke counts"),
	), s.handleListAnnotatedPages)

	// ── set_active_page ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_page",
		mcp.WithDescription("Set the active page for subsequent tool calls. Tools that accept path will default to this."),
		mcp.WithString("path",
			mcp.Description("Page path (for example /docs/getting-started)"),
			mcp.Required(),
		),
	), s.handleSetActivePage)
}

func (s *Server) handleListAnnotatedPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pages, err := s.svc.ListPages()
	if err != nil {
		return nil, err
	}
	return jsonResult(pages)
}

func (s *Server) handleSetActivePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	sess, err := s.svc.OpenSession(path)
	if err != nil {
		return nil, fmt.Errorf("set active page: %w", err)
	}
	s.mu.Lock()
	s.activePath = path
	s.mu.Unlock()
	return textResult(fmt.Sprintf("Active page set to %s (%s, %d strokes)", path, sess.Key(), len(sess.Drawings()))), nil
}
