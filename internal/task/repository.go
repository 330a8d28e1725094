package task

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Repository handles task data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new task repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const taskColumns = `id, title, description, status, priority, due_at, created_by, assigned_by,
	task_type, group_id, created_at, updated_at, completed_at`

// Create inserts a task and its assignees in one transaction
func (r *Repository) Create(ctx context.Context, t *Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tasks (id, title, description, status, priority, due_at, created_by, assigned_by,
			task_type, group_id, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = tx.ExecContext(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.DueAt,
		t.CreatedBy,
		t.AssignedBy,
		string(t.TaskType),
		t.GroupID,
		t.CreatedAt,
		t.UpdatedAt,
		t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := insertAssignees(ctx, tx, t.ID, t.Assignees); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task: %w", err)
	}
	return nil
}

// GetByID retrieves a task with its assignees and comments
func (r *Repository) GetByID(ctx context.Context, id string) (*RawTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	raw, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if err := r.attachChildren(ctx, []*RawTask{raw}); err != nil {
		return nil, err
	}
	return raw, nil
}

// List retrieves tasks newest first. A non-nil groupID limits the result to
// tasks of that group or assigned to one of its members.
func (r *Repository) List(ctx context.Context, groupID *string) ([]*RawTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if groupID != nil {
		query += ` WHERE group_id = $1 OR id IN (
			SELECT ta.task_id FROM task_assignees ta
			JOIN users u ON u.id = ta.user_id
			WHERE u.group_id = $1
		)`
		args = append(args, *groupID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var tasks []*RawTask
	for rows.Next() {
		raw, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, raw)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	rows.Close()

	if err := r.attachChildren(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update writes every mutable field and replaces the assignee set
func (r *Repository) Update(ctx context.Context, t *Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE tasks
		SET title = $1,
		    description = $2,
		    status = $3,
		    priority = $4,
		    due_at = $5,
		    updated_at = $6,
		    completed_at = $7
		WHERE id = $8
	`
	result, err := tx.ExecContext(ctx, query,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.DueAt,
		t.UpdatedAt,
		t.CompletedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update task: %w", sql.ErrNoRows)
	}

	if err := replaceAssignees(ctx, tx, t.ID, t.Assignees); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task update: %w", err)
	}
	return nil
}

// ReplaceAssignees overwrites a task's assignee set and bumps updated_at
func (r *Repository) ReplaceAssignees(ctx context.Context, taskID string, assignees []string, updatedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at = $1 WHERE id = $2`, updatedAt, taskID)
	if err != nil {
		return fmt.Errorf("failed to touch task: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to replace assignees: %w", sql.ErrNoRows)
	}

	if err := replaceAssignees(ctx, tx, taskID, assignees); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assignees: %w", err)
	}
	return nil
}

// AddComment appends a comment after the task's existing comments
func (r *Repository) AddComment(ctx context.Context, taskID string, c *Comment) error {
	query := `
		INSERT INTO task_comments (id, task_id, position, text, author_id, author_name, created_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM task_comments WHERE task_id = $2), $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, c.ID, taskID, c.Text, c.AuthorID, c.AuthorName, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

// Delete removes a task together with its assignees and comments
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM task_comments WHERE task_id = $1`,
		`DELETE FROM task_assignees WHERE task_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("failed to delete task children: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to delete task: %w", sql.ErrNoRows)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task delete: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*RawTask, error) {
	raw := &RawTask{}
	err := row.Scan(
		&raw.ID,
		&raw.Title,
		&raw.Description,
		&raw.Status,
		&raw.Priority,
		&raw.DueAt,
		&raw.CreatedBy,
		&raw.AssignedBy,
		&raw.TaskType,
		&raw.GroupID,
		&raw.CreatedAt,
		&raw.UpdatedAt,
		&raw.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// attachChildren loads assignees and comments for tasks with one query each.
// Rows from the parent query must already be closed.
func (r *Repository) attachChildren(ctx context.Context, tasks []*RawTask) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[string]*RawTask, len(tasks))
	args := make([]any, len(tasks))
	placeholders := make([]string, len(tasks))
	for i, t := range tasks {
		byID[t.ID] = t
		args[i] = t.ID
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	in := strings.Join(placeholders, ", ")

	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id, user_id FROM task_assignees WHERE task_id IN (`+in+`) ORDER BY task_id, position`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to load assignees: %w", err)
	}
	for rows.Next() {
		var taskID, userID string
		if err := rows.Scan(&taskID, &userID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan assignee: %w", err)
		}
		if t := byID[taskID]; t != nil {
			t.Assignees = append(t.Assignees, userID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to load assignees: %w", err)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx,
		`SELECT task_id, id, text, author_id, author_name, created_at FROM task_comments
		 WHERE task_id IN (`+in+`) ORDER BY task_id, position`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to load comments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var taskID string
		var c Comment
		if err := rows.Scan(&taskID, &c.ID, &c.Text, &c.AuthorID, &c.AuthorName, &c.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		if t := byID[taskID]; t != nil {
			t.Comments = append(t.Comments, c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load comments: %w", err)
	}
	return nil
}

func insertAssignees(ctx context.Context, tx *sql.Tx, taskID string, assignees []string) error {
	query := `INSERT INTO task_assignees (task_id, user_id, position) VALUES ($1, $2, $3)`
	for i, userID := range assignees {
		if _, err := tx.ExecContext(ctx, query, taskID, userID, i); err != nil {
			return fmt.Errorf("failed to add assignee: %w", err)
		}
	}
	return nil
}

func replaceAssignees(ctx context.Context, tx *sql.Tx, taskID string, assignees []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to clear assignees: %w", err)
	}
	return insertAssignees(ctx, tx, taskID, assignees)
}
