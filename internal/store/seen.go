package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SeenResource is a title recorded as already submitted.
type SeenResource struct {
	Title  string    `json:"title"`
	SeenAt time.Time `json:"seen_at"`
}

// Exists reports whether title has been marked seen.
func (s *Store) Exists(ctx context.Context, title string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM seen_resources WHERE title = ?`, title).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check seen title: %w", err)
	}
	return true, nil
}

// MarkSeen records titles as submitted. Already-seen titles keep their
// original timestamp.
func (s *Store) MarkSeen(ctx context.Context, titles ...string) error {
	if len(titles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark seen: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO seen_resources (title, seen_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare mark seen: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, title := range titles {
		if strings.TrimSpace(title) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, title, now); err != nil {
			return fmt.Errorf("mark seen %q: %w", title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark seen: %w", err)
	}
	return nil
}

// ListSeen returns seen titles, newest first. limit <= 0 returns all.
func (s *Store) ListSeen(ctx context.Context, limit int) ([]SeenResource, error) {
	query := `SELECT title, seen_at FROM seen_resources ORDER BY seen_at DESC, title`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list seen: %w", err)
	}
	defer rows.Close()

	var out []SeenResource
	for rows.Next() {
		var (
			title  string
			seenAt sql.NullString
		)
		if err := rows.Scan(&title, &seenAt); err != nil {
			return nil, fmt.Errorf("scan seen: %w", err)
		}
		out = append(out, SeenResource{Title: title, SeenAt: parseTime(seenAt)})
	}
	return out, rows.Err()
}

// Forget removes titles from the seen set so the next poll reconsiders them.
func (s *Store) Forget(ctx context.Context, titles ...string) (int64, error) {
	var removed int64
	for _, title := range titles {
		res, err := s.db.ExecContext(ctx, `DELETE FROM seen_resources WHERE title = ?`, title)
		if err != nil {
			return removed, fmt.Errorf("forget %q: %w", title, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	return removed, nil
}

// ClearSeen removes every seen title.
func (s *Store) ClearSeen(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM seen_resources`)
	if err != nil {
		return 0, fmt.Errorf("clear seen: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
