package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"annotator/internal/export"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerExportTools() {
	s.mcp.AddTool(mcp.NewTool("export_page",
		mcp.WithDescription("Render the strokes of a page to PNG or PDF. Without outputPath a PNG is returned inline."),
		mcp.WithString("path", mcp.Description("Page path (optional, defaults to active page)")),
		mcp.WithString("format", mcp.Description("png or pdf (default png)")),
		mcp.WithString("outputPath", mcp.Description("File to write (required for pdf)")),
		mcp.WithNumber("width", mcp.Description("Canvas width (optional, fits the strokes)")),
		mcp.WithNumber("height", mcp.Description("Canvas height (optional, fits the strokes)")),
		mcp.WithString("background", mcp.Description("Background color (optional, transparent)")),
	), s.handleExportPage)
}

func (s *Server) handleExportPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.resolvePath(req.GetArguments())
	if err != nil {
		return nil, err
	}
	drawings, err := s.svc.LoadDrawings(path)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	opts := export.Options{
		Width:      req.GetInt("width", 0),
		Height:     req.GetInt("height", 0),
		Background: req.GetString("background", ""),
		Smooth:     true,
	}
	out := req.GetString("outputPath", "")

	switch format := req.GetString("format", "png"); format {
	case "png":
		if out == "" {
			var buf bytes.Buffer
			if err := export.WritePNG(&buf, drawings, opts); err != nil {
				return nil, err
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewImageContent(base64.StdEncoding.EncodeToString(buf.Bytes()), "image/png"),
				},
			}, nil
		}
		if err := export.SavePNG(out, drawings, opts); err != nil {
			return nil, err
		}
	case "pdf":
		if out == "" {
			return nil, fmt.Errorf("outputPath is required for pdf")
		}
		if err := export.SavePDF(out, drawings, opts); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format %q (want png or pdf)", format)
	}
	return textResult(fmt.Sprintf("Exported %d stroke(s) of %s to %s", len(drawings), path, out)), nil
}
