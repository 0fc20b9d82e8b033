package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists tasks.
type Repository interface {
	Get(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, filter ListFilter) ([]Task, error)
	Create(ctx context.Context, task Task) (int64, error)
	Complete(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	CountOpen(ctx context.Context, ownerID int64) (int, error)
}

// PGRepository is the PostgreSQL Repository. It also serves the reminder job.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectTask = `
	SELECT t.id, t.title, t.notes, COALESCE(t.lead_id, 0), COALESCE(l.name, ''), t.owner_id, COALESCE(u.name, ''),
	       t.due_at, t.priority, t.completed_at IS NOT NULL, t.completed_at, t.reminded_at, t.created_by, t.created_at
	FROM tasks t
	LEFT JOIN leads l ON l.id = t.lead_id
	LEFT JOIN users u ON u.id = t.owner_id`

// Get loads a task.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, selectTask+` WHERE t.id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns tasks ordered by due date.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Task, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.OwnerID > 0 {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("t.owner_id = $%d", len(args)))
	}
	if filter.LeadID > 0 {
		args = append(args, filter.LeadID)
		conditions = append(conditions, fmt.Sprintf("t.lead_id = $%d", len(args)))
	}
	if !filter.IncludeDone {
		conditions = append(conditions, "t.completed_at IS NULL")
	}
	query := selectTask
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY t.completed_at IS NOT NULL, t.due_at, t.id LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tasks: list: %w", err)
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Create inserts a task.
func (r *PGRepository) Create(ctx context.Context, task Task) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, notes, lead_id, owner_id, due_at, priority, created_by)
		VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7)
		RETURNING id`,
		task.Title, task.Notes, task.LeadID, task.OwnerID, task.DueAt.UTC(), string(task.Priority), task.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("tasks: create: %w", err)
	}
	return id, nil
}

// Complete marks an open task as done.
func (r *PGRepository) Complete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tasks SET completed_at = NOW() WHERE id = $1 AND completed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("tasks: complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyDone
	}
	return nil
}

// Delete removes a task.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("tasks: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOpen counts open tasks, optionally for one owner.
func (r *PGRepository) CountOpen(ctx context.Context, ownerID int64) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE completed_at IS NULL`
	var args []any
	if ownerID > 0 {
		query += ` AND owner_id = $1`
		args = append(args, ownerID)
	}
	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("tasks: count open: %w", err)
	}
	return n, nil
}

// ReminderTarget loads the data needed to send a reminder.
func (r *PGRepository) ReminderTarget(ctx context.Context, id int64) (ReminderTarget, error) {
	var target ReminderTarget
	err := r.pool.QueryRow(ctx, `
		SELECT t.id, t.title, t.owner_id, u.email, t.due_at, t.completed_at IS NOT NULL, t.reminded_at IS NOT NULL
		FROM tasks t JOIN users u ON u.id = t.owner_id
		WHERE t.id = $1`, id,
	).Scan(&target.TaskID, &target.Title, &target.OwnerID, &target.OwnerEmail, &target.DueAt, &target.Done, &target.Reminded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReminderTarget{}, ErrNotFound
		}
		return ReminderTarget{}, err
	}
	return target, nil
}

// MarkReminded stamps reminded_at once.
func (r *PGRepository) MarkReminded(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE tasks SET reminded_at = NOW() WHERE id = $1 AND reminded_at IS NULL`, id)
	return err
}

func scanTask(row pgx.Row) (Task, error) {
	var (
		task     Task
		priority string
	)
	err := row.Scan(&task.ID, &task.Title, &task.Notes, &task.LeadID, &task.LeadName, &task.OwnerID, &task.OwnerName,
		&task.DueAt, &priority, &task.Done, &task.CompletedAt, &task.RemindedAt, &task.CreatedBy, &task.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	task.Priority = Priority(priority)
	return task, nil
}

var _ Repository = (*PGRepository)(nil)
