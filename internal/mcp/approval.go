package mcpserver

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"annotator/internal/storage"
)

// Approval events sent to whoever hosts the server in-process.
const (
	EventApprovalRequired  = "mcp:approval-required"
	EventApprovalDismissed = "mcp:approval-dismissed"
)

// DefaultApprovalTimeout is how long a destructive call waits for a user.
const DefaultApprovalTimeout = 120 * time.Second

// DefaultApprovalPoll is how often store mode checks for an answer.
const DefaultApprovalPoll = 500 * time.Millisecond

// ApprovalStore is the shared table a standalone server writes requests to
// and another process answers. storage.ApprovalStore implements it.
type ApprovalStore interface {
	CreateApproval(id, tool, description string) error
	ApprovalStatus(id string) (string, error)
	DeleteApproval(id string) error
}

// EventEmitter allows the server and approval queue to notify the host.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// PendingAction represents a destructive operation awaiting user approval.
type PendingAction struct {
	ID          string `json:"id"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

// ApprovalQueue manages human-in-the-loop approval for destructive MCP
// tool calls. Requests block until Approve, Reject, the timeout or ctx.
// It supports two modes:
//   - In-process: channels plus an EventEmitter notification
//   - Store: rows in mcp_approvals, answered by another process and polled
type ApprovalQueue struct {
	mu      sync.Mutex
	pending map[string]chan bool
	ctx     context.Context
	emitter EventEmitter
	Timeout time.Duration

	store        ApprovalStore
	PollInterval time.Duration
}

func NewApprovalQueue(ctx context.Context, emitter EventEmitter) *ApprovalQueue {
	return &ApprovalQueue{
		pending:      make(map[string]chan bool),
		ctx:          ctx,
		emitter:      emitter,
		Timeout:      DefaultApprovalTimeout,
		PollInterval: DefaultApprovalPoll,
	}
}

// SetStore switches the queue to store mode.
func (q *ApprovalQueue) SetStore(store ApprovalStore) {
	q.store = store
}

// Request announces a pending action and blocks until it is resolved.
func (q *ApprovalQueue) Request(tool, description string) (bool, error) {
	id := uuid.NewString()
	if q.store != nil {
		return q.requestViaStore(id, tool, description)
	}
	return q.requestViaChannel(id, tool, description)
}

// requestViaStore writes a pending row and polls until someone answers it.
// The row is removed once the call returns.
func (q *ApprovalQueue) requestViaStore(id, tool, description string) (bool, error) {
	if err := q.store.CreateApproval(id, tool, description); err != nil {
		return false, err
	}
	defer func() {
		if err := q.store.DeleteApproval(id); err != nil {
			log.Printf("[MCP] approval %s: %v", id, err)
		}
	}()
	log.Printf("[MCP] %s waiting for approval %s: %s", tool, id, description)

	deadline := time.NewTimer(q.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(q.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status, err := q.store.ApprovalStatus(id)
			if err != nil {
				continue
			}
			switch status {
			case storage.ApprovalApproved:
				return true, nil
			case storage.ApprovalRejected:
				return false, fmt.Errorf("action rejected by user: %s", tool)
			}
		case <-deadline.C:
			return false, fmt.Errorf("action timed out after %s: %s", q.Timeout, tool)
		case <-q.ctx.Done():
			return false, fmt.Errorf("approval %s: %w", tool, q.ctx.Err())
		}
	}
}

// requestViaChannel is the in-process mode.
func (q *ApprovalQueue) requestViaChannel(id, tool, description string) (bool, error) {
	ch := make(chan bool, 1)

	q.mu.Lock()
	q.pending[id] = ch
	q.mu.Unlock()
	defer q.cleanup(id)

	q.emitter.Emit(q.ctx, EventApprovalRequired, PendingAction{
		ID:          id,
		Tool:        tool,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	})

	timer := time.NewTimer(q.Timeout)
	defer timer.Stop()

	select {
	case approved := <-ch:
		if !approved {
			return false, fmt.Errorf("action rejected by user: %s", tool)
		}
		return true, nil
	case <-timer.C:
		q.emitter.Emit(q.ctx, EventApprovalDismissed, map[string]string{"id": id})
		return false, fmt.Errorf("action timed out after %s: %s", q.Timeout, tool)
	case <-q.ctx.Done():
		return false, fmt.Errorf("approval %s: %w", tool, q.ctx.Err())
	}
}

// Approve marks a pending action as approved.
func (q *ApprovalQueue) Approve(actionID string) { q.resolve(actionID, true) }

// Reject marks a pending action as rejected.
func (q *ApprovalQueue) Reject(actionID string) { q.resolve(actionID, false) }

// Pending returns the IDs still waiting for a decision.
func (q *ApprovalQueue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	return ids
}

func (q *ApprovalQueue) resolve(actionID string, approved bool) {
	q.mu.Lock()
	ch, ok := q.pending[actionID]
	q.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- approved:
	default:
	}
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
