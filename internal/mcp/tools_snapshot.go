package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerSnapshotTools() {
	s.mcp.AddTool(mcp.NewTool("list_snapshots",
		mcp.WithDescription("List the backup history of a page, newest first"),
		mcp.WithString("path", mcp.Description("Page path (optional, defaults to active page)")),
	), s.handleListSnapshots)

	s.mcp.AddTool(mcp.NewTool("restore_snapshot",
		mcp.WithDescription("Replace the strokes of a page with a stored backup"),
		mcp.WithString("path", mcp.Description("Page path (optional, defaults to active page)")),
		mcp.WithString("snapshotId", mcp.Description("ID from list_snapshots"), mcp.Required()),
	), s.handleRestoreSnapshot)
}

func (s *Server) handleListSnapshots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.resolvePath(req.GetArguments())
	if err != nil {
		return nil, err
	}
	snaps, err := s.svc.Snapshots(path)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return jsonResult(snaps)
}

func (s *Server) handleRestoreSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("snapshotId", "")
	if id == "" {
		return nil, fmt.Errorf("snapshotId is required")
	}
	sess, err := s.sessionForTool(req)
	if err != nil {
		return nil, err
	}
	n, err := sess.RestoreSnapshot(id)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	s.emitChanged(ctx, sess)
	return textResult(fmt.Sprintf("Restored snapshot %s (%d strokes)", id, n)), nil
}
