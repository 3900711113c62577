package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpserver "annotator/internal/mcp"
	"annotator/internal/service"
)

// ServeMCP runs the annotator as a standalone MCP server on stdin/stdout.
// It opens storage and the annotation service and serves until stdin closes
// or the process is interrupted. Pending page writes are flushed on exit.
// With cfg.MCPApproval, destructive tools are queued in mcp_approvals.
func ServeMCP(cfg Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout belongs to the protocol
	log.SetOutput(os.Stderr)

	// No frame clock: nothing is displayed in this mode.
	cfg.FrameInterval = 0

	a := New(cfg, service.LogEmitter{})
	if err := a.Startup(ctx); err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	deps := mcpserver.Deps{
		Emitter:     service.LogEmitter{},
		Annotations: a.Service(),
	}
	// Destructive tools wait for `annotator approve` from another terminal
	if cfg.MCPApproval {
		deps.ApprovalStore = a.approvals
	}
	srv := mcpserver.New(ctx, deps)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
	case <-ctx.Done():
		log.Println("[MCP] Interrupted, flushing pages...")
	}
	return nil
}
