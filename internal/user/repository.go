package user

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository handles user data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new user repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, name, email, role, status, group_id, created_at`

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, name, email, role, status, group_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Name, u.Email, string(u.Role), string(u.Status), u.GroupID, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by their email (case-insensitive)
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// List retrieves users with pagination, optionally scoped to one group
func (r *Repository) List(ctx context.Context, groupID *string, limit, offset int) ([]*User, int, error) {
	where := ""
	var args []any
	if groupID != nil {
		where = ` WHERE group_id = $1`
		args = append(args, *groupID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY name, id LIMIT $%d OFFSET $%d`, userColumns, where, n+1, n+2)
	args = append(args, limit, offset)

	users, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListAll retrieves every user, used to resolve display names
func (r *Repository) ListAll(ctx context.Context) ([]*User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Update writes a user's mutable profile fields
func (r *Repository) Update(ctx context.Context, u *User) error {
	query := `UPDATE users SET name = $1, role = $2, status = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, u.Name, string(u.Role), string(u.Status), u.ID); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// SetGroup sets or clears (nil) a user's group
func (r *Repository) SetGroup(ctx context.Context, userID string, groupID *string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET group_id = $1 WHERE id = $2`, groupID, userID); err != nil {
		return fmt.Errorf("failed to set user group: %w", err)
	}
	return nil
}

// Delete removes a user and their group memberships
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("failed to remove memberships: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to delete user: %w", sql.ErrNoRows)
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &u.GroupID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}
