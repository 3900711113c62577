package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"annotator/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// EventChanged tells listeners that an agent modified a page.
const EventChanged = "mcp:annotations-changed"

// Server is the MCP server for the annotator.
// It exposes tools, resources and prompts so AI agents can read and draw
// page annotations.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	svc      *service.AnnotationService

	mu         sync.Mutex
	activePath string
}

// Deps holds everything passed from the App layer to the MCP server.
type Deps struct {
	Emitter     EventEmitter
	Annotations *service.AnnotationService
	// RequireApproval routes destructive tools through the approval queue,
	// answered in-process through Approve and Reject.
	RequireApproval bool
	// ApprovalStore, when set, routes destructive tools through the shared
	// database instead (standalone mode). It implies RequireApproval.
	ApprovalStore ApprovalStore
}

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	s := &Server{
		emitter: deps.Emitter,
		svc:     deps.Annotations,
	}
	if s.emitter == nil {
		s.emitter = service.LogEmitter{}
	}
	if deps.RequireApproval || deps.ApprovalStore != nil {
		s.approval = NewApprovalQueue(ctx, s.emitter)
		if deps.ApprovalStore != nil {
			s.approval.SetStore(deps.ApprovalStore)
		}
	}

	s.mcp = server.NewMCPServer(
		"annotator-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerNavigationTools()
	s.registerStrokeTools()
	s.registerSnapshotTools()
	s.registerExportTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCP exposes the underlying server, mostly for in-process clients.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) {
	if s.approval != nil {
		s.approval.Approve(actionID)
	}
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) {
	if s.approval != nil {
		s.approval.Reject(actionID)
	}
}

// ── Helpers ────────────────────────────────────────────────

func (s *Server) emitChanged(ctx context.Context, sess *service.AnnotationSession) {
	s.emitter.Emit(ctx, EventChanged, map[string]string{"pageKey": sess.Key(), "path": sess.Path()})
}

// confirm asks the approval queue when one is configured.
func (s *Server) confirm(tool, description string) bool {
	if s.approval == nil {
		return true
	}
	approved, err := s.approval.Request(tool, description)
	if err != nil {
		log.Printf("[MCP] %s not approved: %v", tool, err)
	}
	return err == nil && approved
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// resolvePath returns the page path from tool args or falls back to the
// active page.
func (s *Server) resolvePath(args map[string]any) (string, error) {
	if p, ok := args["path"].(string); ok && p != "" {
		return p, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePath != "" {
		return s.activePath, nil
	}
	return "", fmt.Errorf("no path provided and no active page set (use set_active_page first)")
}

// sessionForTool opens the session of the page a tool call targets.
func (s *Server) sessionForTool(req mcp.CallToolRequest) (*service.AnnotationSession, error) {
	path, err := s.resolvePath(req.GetArguments())
	if err != nil {
		return nil, err
	}
	return s.svc.OpenSession(path)
}
