package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("highlight_section",
		mcp.WithPromptDescription("Guide through highlighting a region of a page and underlining key lines"),
		mcp.WithArgument("path",
			mcp.ArgumentDescription("Page path to annotate"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("region",
			mcp.ArgumentDescription("Which part of the page to mark up, in words"),
			mcp.RequiredArgument(),
		),
	), s.handleHighlightPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("review_annotations",
		mcp.WithPromptDescription("Summarize the existing annotations of a page and tidy up stray strokes"),
		mcp.WithArgument("path",
			mcp.ArgumentDescription("Page path to review"),
			mcp.RequiredArgument(),
		),
	), s.handleReviewPrompt)
}

func (s *Server) handleHighlightPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	path := req.Params.Arguments["path"]
	region := req.Params.Arguments["region"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Highlight %s on %s", region, path),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Mark up "%s" on page %s.

Steps:
1. Call set_active_page with path %q.
2. Call list_strokes to see what is already drawn; do not duplicate existing marks.
3. For each heading or paragraph in the region, call add_stroke with tool "highlighter"
   and two points spanning the line (same y, start and end x).
4. Underline the single most important sentence with a pen stroke (lineWidth 2, color "#d00000").
5. Call export_page with format "png" and show me the result.

Coordinates are document pixels from the top-left of the page.`, region, path, path),
				},
			},
		},
	}, nil
}

func (s *Server) handleReviewPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	path := req.Params.Arguments["path"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review annotations on %s", path),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Review the annotations on page %s.

Steps:
1. Call set_active_page with path %q, then list_strokes.
2. Describe the annotations grouped by tool and color.
3. Strokes with only a couple of points and a tiny bounding box are usually accidental.
   Remove them one at a time with erase_at on their first point.
4. If you removed something by mistake, call list_snapshots and restore_snapshot with the newest entry.`, path, path),
				},
			},
		},
	}, nil
}
