package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"annotator/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	pagesURI      = "annotations://pages"
	pageURIPrefix = "annotations://page/"
)

func (s *Server) registerResources() {
	// ── annotations://pages ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		pagesURI,
		"Annotated Pages",
		mcp.WithMIMEType("application/json"),
	), s.handlePagesResource)

	// ── annotations://page/{pageKey} ───────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			pageURIPrefix+"{pageKey}",
			"Strokes on a Page",
		),
		s.handlePageResource,
	)
}

func (s *Server) handlePagesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	pages, err := s.svc.ListPages()
	if err != nil {
		return nil, err
	}
	data, _ := json.MarshalIndent(pages, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      pagesURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handlePageResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	key := pageKeyFromURI(uri)
	if key == "" {
		return nil, fmt.Errorf("could not extract pageKey from URI: %s", uri)
	}

	drawings, err := s.svc.DrawingsByKey(key)
	if err != nil {
		return nil, err
	}
	data, _ := json.MarshalIndent(drawings, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// pageKeyFromURI extracts the key from "annotations://page/{pageKey}".
// A bare path is accepted and turned into its key.
func pageKeyFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, pageURIPrefix)
	if !ok || rest == "" {
		return ""
	}
	if strings.HasPrefix(rest, service.PageKeyPrefix) {
		return rest
	}
	key, err := service.PageKey(rest)
	if err != nil {
		return ""
	}
	return key
}
