package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"annotator/internal/domain"
	"annotator/internal/ink"
	"annotator/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerStrokeTools() {
	s.mcp.AddTool(mcp.NewTool("list_strokes",
		mcp.WithDescription("List the committed strokes of a page in z-order, with tool, style, point count and bounds"),
		mcp.WithString("path", mcp.Description("Page path (optional, defaults to active page)")),
	), s.handleListStrokes)

	s.mcp.AddTool(mcp.NewTool("add_stroke",
		mcp.WithDescription("Draw a stroke on a page. Coordinates are document pixels. A pen needs two points; a highlighter keeps only its first two."),
		mcp.WithString("path", mcp.Description("Page path (optional, defaults to active page)")),
		mcp.WithString("tool", mcp.Description("pen or highlighter (default pen)")),
		mcp.WithString("points", mcp.Description(`JSON array of points, [{"x":10,"y":20}, ...] or [[10,20], ...]`), mcp.Required()),
		mcp.WithString("color", mcp.Description("CSS color (optional, tool default)")),
		mcp.WithNumber("lineWidth", mcp.Description("Line width in pixels (optional, tool default)")),
		mcp.WithNumber("opacity", mcp.Description("Opacity between 0 and 1 (optional, tool default)")),
	), s.handleAddStroke)

	s.mcp.AddTool(mcp.NewTool("erase_at",
		mcp.WithDescription("Erase every stroke that passes near a point"),
		mcp.WithString("path", mcp.Description("Page path (optional, defaults to active page)")),
		mcp.WithNumber("x", mcp.Description("X position"), mcp.Required()),
		mcp.WithNumber("y", mcp.Description("Y position"), mcp.Required()),
		mcp.WithNumber("width", mcp.Description("Eraser width (optional, current eraser width)")),
	), s.handleEraseAt)

	s.mcp.AddTool(mcp.NewTool("undo_last_stroke",
		mcp.WithDescription("Remove the most recently committed stroke"),
		mcp.WithString("path", mcp.Description("Page path (optional, defaults to active page)")),
	), s.handleUndoLastStroke)

	s.mcp.AddTool(mcp.NewTool("clear_annotations",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove every stroke on a page. A backup snapshot is kept."),
		mcp.WithString("path", mcp.Description("Page path (optional, defaults to active page)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleClearAnnotations)
}

func boolPtr(v bool) *bool { return &v }

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListStrokes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.sessionForTool(req)
	if err != nil {
		return nil, err
	}
	return jsonResult(summarizeStrokes(sess.Drawings()))
}

func (s *Server) handleAddStroke(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.sessionForTool(req)
	if err != nil {
		return nil, err
	}

	tool := domain.Tool(req.GetString("tool", string(domain.ToolPen)))
	if tool != domain.ToolPen && tool != domain.ToolHighlighter {
		return nil, fmt.Errorf("tool must be pen or highlighter, got %q", tool)
	}
	pts, err := parsePoints(req.GetString("points", ""))
	if err != nil {
		return nil, err
	}

	color := req.GetString("color", "")
	if _, ok := ink.ParseColor(color); color != "" && !ok {
		return nil, fmt.Errorf("invalid color %q", color)
	}

	st := domain.Stroke{
		Tool:      tool,
		Points:    pts,
		Color:     color,
		LineWidth: req.GetFloat("lineWidth", 0),
		Opacity:   req.GetFloat("opacity", 0),
	}
	if _, err := sess.Commit(st); err != nil {
		if errors.Is(err, service.ErrStrokeDiscarded) {
			return textResult("Stroke discarded: a pen stroke needs at least two points"), nil
		}
		return nil, fmt.Errorf("add stroke: %w", err)
	}

	s.emitChanged(ctx, sess)
	return textResult(fmt.Sprintf("Stroke added to %s (%d strokes)", sess.Path(), len(sess.Drawings()))), nil
}

func (s *Server) handleEraseAt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.sessionForTool(req)
	if err != nil {
		return nil, err
	}
	removed, err := sess.EraseAt(req.GetFloat("x", 0), req.GetFloat("y", 0), req.GetFloat("width", 0))
	if err != nil {
		return nil, fmt.Errorf("erase: %w", err)
	}
	if removed > 0 {
		s.emitChanged(ctx, sess)
	}
	return textResult(fmt.Sprintf("Erased %d stroke(s)", removed)), nil
}

func (s *Server) handleUndoLastStroke(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.sessionForTool(req)
	if err != nil {
		return nil, err
	}
	if !sess.UndoLastDrawing() {
		return textResult("Nothing to undo"), nil
	}
	s.emitChanged(ctx, sess)
	return textResult(fmt.Sprintf("Last stroke removed (%d left)", len(sess.Drawings()))), nil
}

func (s *Server) handleClearAnnotations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.sessionForTool(req)
	if err != nil {
		return nil, err
	}
	n := len(sess.Drawings())
	if !s.confirm("clear_annotations", fmt.Sprintf("Clear %d stroke(s) on %s", n, sess.Path())) {
		return textResult("Action rejected by user"), nil
	}
	sess.Clear()
	s.emitChanged(ctx, sess)
	return textResult(fmt.Sprintf("Cleared %d stroke(s) on %s", n, sess.Path())), nil
}
