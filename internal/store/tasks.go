package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mikanarr/internal/feed"
)

// TaskStatus tracks a submitted download through the remote pipeline.
type TaskStatus string

const (
	TaskDownloading  TaskStatus = "downloading"
	TaskTransferring TaskStatus = "transferring"
	TaskCompleted    TaskStatus = "completed"
	TaskFailed       TaskStatus = "failed"
	TaskCanceled     TaskStatus = "canceled"
)

// Active reports whether the watcher still needs to poll the task.
func (s TaskStatus) Active() bool {
	return s == TaskDownloading || s == TaskTransferring
}

// TaskRecord is a submitted offline-download task and the resource it fetches.
type TaskRecord struct {
	TaskID       string            `json:"task_id"`
	TransferID   string            `json:"transfer_id,omitempty"`
	SavePath     string            `json:"save_path"`
	Status       TaskStatus        `json:"status"`
	FinalPath    string            `json:"final_path,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Resource     feed.ResourceInfo `json:"resource"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ErrTaskNotFound is returned when a task record does not exist.
var ErrTaskNotFound = errors.New("task record not found")

const taskColumns = "task_id, transfer_id, save_path, status, final_path, error_message, resource_json, created_at, updated_at"

// RecordTask inserts a newly submitted task.
func (s *Store) RecordTask(ctx context.Context, rec TaskRecord) error {
	if strings.TrimSpace(rec.TaskID) == "" {
		return errors.New("record task: task id required")
	}
	if rec.Status == "" {
		rec.Status = TaskDownloading
	}
	resource, err := json.Marshal(rec.Resource)
	if err != nil {
		return fmt.Errorf("record task: encode resource: %w", err)
	}
	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO task_records (
            task_id, title, anime_name, save_path, status, transfer_id,
            final_path, error_message, resource_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TaskID,
		rec.Resource.Title,
		nullableString(rec.Resource.AnimeName),
		rec.SavePath,
		rec.Status,
		nullableString(rec.TransferID),
		nullableString(rec.FinalPath),
		nullableString(rec.ErrorMessage),
		string(resource),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("record task %s: %w", rec.TaskID, err)
	}
	return nil
}

// UpdateTask persists status, transfer, final path and error of rec.
func (s *Store) UpdateTask(ctx context.Context, rec TaskRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_records
         SET status = ?, transfer_id = ?, final_path = ?, error_message = ?, updated_at = ?
         WHERE task_id = ?`,
		rec.Status,
		nullableString(rec.TransferID),
		nullableString(rec.FinalPath),
		nullableString(rec.ErrorMessage),
		formatTime(time.Now()),
		rec.TaskID,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", rec.TaskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update task %s: %w", rec.TaskID, ErrTaskNotFound)
	}
	return nil
}

// GetTask returns the record for taskID.
func (s *Store) GetTask(ctx context.Context, taskID string) (TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task_records WHERE task_id = ?`, taskID)
	rec, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskRecord{}, fmt.Errorf("get task %s: %w", taskID, ErrTaskNotFound)
	}
	if err != nil {
		return TaskRecord{}, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return rec, nil
}

// ListTasks returns records matching statuses (all records when none are
// given), oldest first.
func (s *Store) ListTasks(ctx context.Context, statuses ...TaskStatus) ([]TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM task_records`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at, task_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ActiveTasks returns records still downloading or transferring.
func (s *Store) ActiveTasks(ctx context.Context) ([]TaskRecord, error) {
	return s.ListTasks(ctx, TaskDownloading, TaskTransferring)
}

// ClaimedTransfers returns the transfer task ids already matched to a record.
func (s *Store) ClaimedTransfers(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT transfer_id FROM task_records WHERE transfer_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list claimed transfers: %w", err)
	}
	defer rows.Close()

	claimed := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transfer id: %w", err)
		}
		claimed[id] = struct{}{}
	}
	return claimed, rows.Err()
}

// PruneTasks deletes finished records last updated before cutoff.
func (s *Store) PruneTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM task_records WHERE status NOT IN (?, ?) AND updated_at < ?`,
		TaskDownloading, TaskTransferring, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (TaskRecord, error) {
	var (
		rec          TaskRecord
		status       string
		transferID   sql.NullString
		finalPath    sql.NullString
		errorMessage sql.NullString
		resource     string
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&rec.TaskID,
		&transferID,
		&rec.SavePath,
		&status,
		&finalPath,
		&errorMessage,
		&resource,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return TaskRecord{}, err
	}
	if err := json.Unmarshal([]byte(resource), &rec.Resource); err != nil {
		return TaskRecord{}, fmt.Errorf("decode resource for %s: %w", rec.TaskID, err)
	}
	rec.Status = TaskStatus(status)
	rec.TransferID = transferID.String
	rec.FinalPath = finalPath.String
	rec.ErrorMessage = errorMessage.String
	rec.CreatedAt = parseTime(createdRaw)
	rec.UpdatedAt = parseTime(updatedRaw)
	return rec, nil
}
