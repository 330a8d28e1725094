package group

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository handles group data persistence. Membership changes also keep
// users.group_id in step, inside the same transaction.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new group with its members
func (r *Repository) Create(ctx context.Context, g *Group) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO groups (id, name, created_at) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, g.ID, g.Name, g.CreatedAt); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	for i, userID := range g.Members {
		if err := addMember(ctx, tx, g.ID, userID, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a group with its members
func (r *Repository) GetByID(ctx context.Context, id string) (*Group, error) {
	query := `SELECT id, name, created_at FROM groups WHERE id = $1`

	group := &Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&group.ID, &group.Name, &group.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	members, err := r.GetMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	group.Members = members
	return group, nil
}

// List retrieves every group with its members, ordered by name
func (r *Repository) List(ctx context.Context) ([]*Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM groups ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var groups []*Group
	byID := map[string]*Group{}
	for rows.Next() {
		g := &Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
		byID[g.ID] = g
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `SELECT group_id, user_id FROM group_members ORDER BY group_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var groupID, userID string
		if err := rows.Scan(&groupID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		if g := byID[groupID]; g != nil {
			g.Members = append(g.Members, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	return groups, nil
}

// GetMembers returns a group's member ids in insertion order
func (r *Repository) GetMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY position`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	return members, nil
}

// Update renames a group and replaces its member list. Users dropped from the
// list lose their group assignment if it still points here.
func (r *Repository) Update(ctx context.Context, g *Group, removed []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE groups SET name = $1 WHERE id = $2`, g.Name, g.ID); err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to clear group members: %w", err)
	}
	for i, userID := range g.Members {
		if err := addMember(ctx, tx, g.ID, userID, i); err != nil {
			return err
		}
	}
	for _, userID := range removed {
		if err := clearUserGroup(ctx, tx, g.ID, userID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete removes a group and clears the group assignment of its users
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE users SET group_id = NULL WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear user groups: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete group members: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to delete group: %w", sql.ErrNoRows)
	}

	return tx.Commit()
}

// AddMember appends a user to a group and points the user at it
func (r *Repository) AddMember(ctx context.Context, groupID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM group_members WHERE group_id = $1`, groupID).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to get member position: %w", err)
	}
	if err := addMember(ctx, tx, groupID, userID, next); err != nil {
		return err
	}

	return tx.Commit()
}

// RemoveMember removes a user from a group
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to remove member: %w", sql.ErrNoRows)
	}
	if err := clearUserGroup(ctx, tx, groupID, userID); err != nil {
		return err
	}

	return tx.Commit()
}

func addMember(ctx context.Context, tx *sql.Tx, groupID, userID string, position int) error {
	query := `INSERT INTO group_members (group_id, user_id, position) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, groupID, userID, position); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET group_id = $1 WHERE id = $2`, groupID, userID); err != nil {
		return fmt.Errorf("failed to set user group: %w", err)
	}
	return nil
}

func clearUserGroup(ctx context.Context, tx *sql.Tx, groupID, userID string) error {
	query := `UPDATE users SET group_id = NULL WHERE id = $1 AND group_id = $2`
	if _, err := tx.ExecContext(ctx, query, userID, groupID); err != nil {
		return fmt.Errorf("failed to clear user group: %w", err)
	}
	return nil
}
