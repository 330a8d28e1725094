package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Repository handles activity log persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new activity repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create appends an entry to the log
func (r *Repository) Create(ctx context.Context, e *Entry) error {
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode activity meta: %w", err)
	}

	query := `
		INSERT INTO activity (id, action, actor_id, subject_id, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, e.ID, string(e.Action), e.ActorID, e.SubjectID, string(meta), e.CreatedAt); err != nil {
		return fmt.Errorf("failed to create activity entry: %w", err)
	}
	return nil
}

// List retrieves entries newest first, skipping the first offset
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	query := `
		SELECT id, action, actor_id, subject_id, meta, created_at
		FROM activity
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var meta string
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.SubjectID, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &e.Meta); err != nil {
				return nil, fmt.Errorf("failed to decode activity meta: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}

	return entries, nil
}
