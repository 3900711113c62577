package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Approval statuses stored in mcp_approvals.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Approval is a destructive MCP call waiting on, or answered by, a user.
type Approval struct {
	ID          string    `json:"id"`
	Tool        string    `json:"tool"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ApprovalStore lets a standalone MCP server and the user's tools agree on
// destructive calls through the shared database.
type ApprovalStore struct {
	db *DB
}

func NewApprovalStore(db *DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

// CreateApproval records a pending request.
func (s *ApprovalStore) CreateApproval(id, tool, description string) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO mcp_approvals (id, tool, description, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, tool, description, ApprovalPending, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// ApprovalStatus returns the current status of a request.
func (s *ApprovalStore) ApprovalStatus(id string) (string, error) {
	var status string
	err := s.db.conn.QueryRow(`SELECT status FROM mcp_approvals WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("approval status: %w", err)
	}
	return status, nil
}

// ResolveApproval answers a pending request. Requests that are unknown or
// already answered return ErrNotFound.
func (s *ApprovalStore) ResolveApproval(id string, approved bool) error {
	status := ApprovalRejected
	if approved {
		status = ApprovalApproved
	}
	res, err := s.db.conn.Exec(
		`UPDATE mcp_approvals SET status = ? WHERE id = ? AND status = ?`,
		status, id, ApprovalPending,
	)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ApprovalStore) DeleteApproval(id string) error {
	if _, err := s.db.conn.Exec(`DELETE FROM mcp_approvals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete approval: %w", err)
	}
	return nil
}

// PendingApprovals lists unanswered requests, oldest first.
func (s *ApprovalStore) PendingApprovals() ([]Approval, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, tool, description, status, created_at FROM mcp_approvals
		 WHERE status = ? ORDER BY created_at, rowid`, ApprovalPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []Approval
	for rows.Next() {
		var a Approval
		if err := rows.Scan(&a.ID, &a.Tool, &a.Description, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
