package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"annotator/internal/domain"
)

// MaxSnapshotsPerPage bounds the backup history of one page.
const MaxSnapshotsPerPage = 40

// SnapshotStore manages annotation backups in SQLite.
type SnapshotStore struct {
	db *DB
}

func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// PushSnapshot records data as the newest backup of pageKey and prunes
// the oldest entries beyond MaxSnapshotsPerPage.
func (s *SnapshotStore) PushSnapshot(pageKey, label, data string) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{
		ID:        uuid.NewString(),
		PageKey:   pageKey,
		Label:     label,
		Data:      data,
		CreatedAt: time.Now(),
	}
	_, err := s.db.Conn().Exec(
		`INSERT INTO annotation_snapshots (id, page_key, label, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.PageKey, snap.Label, snap.Data, snap.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	if err := s.prune(pageKey, MaxSnapshotsPerPage); err != nil {
		return nil, err
	}
	return snap, nil
}

// ListSnapshots returns the history of pageKey, newest first. Data is
// left empty; use GetSnapshot to load one.
func (s *SnapshotStore) ListSnapshots(pageKey string) ([]domain.Snapshot, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, page_key, label, created_at FROM annotation_snapshots
		 WHERE page_key = ? ORDER BY created_at DESC, rowid DESC`, pageKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.Snapshot
	for rows.Next() {
		var sn domain.Snapshot
		if err := rows.Scan(&sn.ID, &sn.PageKey, &sn.Label, &sn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, sn)
	}
	return snaps, rows.Err()
}

func (s *SnapshotStore) GetSnapshot(id string) (*domain.Snapshot, error) {
	sn := &domain.Snapshot{}
	err := s.db.Conn().QueryRow(
		`SELECT id, page_key, label, data, created_at FROM annotation_snapshots WHERE id = ?`, id,
	).Scan(&sn.ID, &sn.PageKey, &sn.Label, &sn.Data, &sn.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return sn, nil
}

// ClearPage removes all snapshots of a page.
func (s *SnapshotStore) ClearPage(pageKey string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM annotation_snapshots WHERE page_key = ?`, pageKey)
	return err
}

func (s *SnapshotStore) PruneOrphans(cutoff time.Time) (int, error) {
	res, err := s.db.Conn().Exec(
		`DELETE FROM annotation_snapshots
		 WHERE created_at < ? AND page_key NOT IN (SELECT page_key FROM annotations)`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune orphan snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// prune removes the oldest snapshots when count exceeds maxKeep.
func (s *SnapshotStore) prune(pageKey string, maxKeep int) error {
	_, err := s.db.Conn().Exec(
		`DELETE FROM annotation_snapshots WHERE page_key = ? AND id NOT IN (
			SELECT id FROM annotation_snapshots WHERE page_key = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, pageKey, pageKey, maxKeep,
	)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
