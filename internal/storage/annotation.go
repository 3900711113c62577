package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"annotator/internal/domain"
)

// AnnotationStore implements domain.AnnotationStore using SQLite.
type AnnotationStore struct {
	db *DB
}

func NewAnnotationStore(db *DB) *AnnotationStore {
	return &AnnotationStore{db: db}
}

func (s *AnnotationStore) GetPage(pageKey string) (*domain.PageRecord, error) {
	rec := &domain.PageRecord{}
	err := s.db.conn.QueryRow(
		`SELECT page_key, source_path, data, updated_at FROM annotations WHERE page_key = ?`, pageKey,
	).Scan(&rec.PageKey, &rec.Path, &rec.Data, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get annotations %s: %w", pageKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get annotations: %w", err)
	}
	return rec, nil
}

// PutPage inserts or replaces the record for rec.PageKey. UpdatedAt is set
// to the write time.
func (s *AnnotationStore) PutPage(rec *domain.PageRecord) error {
	rec.UpdatedAt = time.Now()
	_, err := s.db.conn.Exec(
		`INSERT INTO annotations (page_key, source_path, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(page_key) DO UPDATE SET
		   data = excluded.data,
		   source_path = CASE WHEN excluded.source_path = '' THEN annotations.source_path ELSE excluded.source_path END,
		   updated_at = excluded.updated_at`,
		rec.PageKey, rec.Path, rec.Data, rec.UpdatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put annotations: %w", err)
	}
	return nil
}

// DeletePage removes the record. Deleting a missing record is not an error.
func (s *AnnotationStore) DeletePage(pageKey string) error {
	if _, err := s.db.conn.Exec(`DELETE FROM annotations WHERE page_key = ?`, pageKey); err != nil {
		return fmt.Errorf("delete annotations: %w", err)
	}
	return nil
}

// ListPages returns every stored record, most recently updated first.
func (s *AnnotationStore) ListPages() ([]domain.PageRecord, error) {
	rows, err := s.db.conn.Query(
		`SELECT page_key, source_path, data, updated_at FROM annotations ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []domain.PageRecord
	for rows.Next() {
		var p domain.PageRecord
		if err := rows.Scan(&p.PageKey, &p.Path, &p.Data, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// Fingerprint summarizes the table so watchers can cheaply detect writes
// from another process.
func (s *AnnotationStore) Fingerprint() (string, error) {
	var count int
	var maxUpdated string
	err := s.db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(MAX(updated_at), '') FROM annotations`,
	).Scan(&count, &maxUpdated)
	if err != nil {
		return "", fmt.Errorf("annotations fingerprint: %w", err)
	}
	return fmt.Sprintf("%d:%s", count, maxUpdated), nil
}
