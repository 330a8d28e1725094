package activity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/teamtasks/internal/session"
)

const (
	defaultLimit = 200
	maxLimit     = 1000
)

// Service handles activity log business logic
type Service struct {
	repo     *Repository
	logger   *zap.Logger
	now      func() time.Time
	pageSize int
}

// NewService creates a new activity service
func NewService(repo *Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		pageSize: defaultLimit,
	}
}

// Record appends an entry. Failures are logged and never returned: the
// audit log must not fail the write that triggered it.
func (s *Service) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}

	if err := s.repo.Create(ctx, &e); err != nil {
		s.logger.Warn("activity log failed",
			zap.String("action", string(e.Action)),
			zap.String("subject_id", e.SubjectID),
			zap.Error(err),
		)
	}
}

// List returns the newest entries relevant to viewer. Admins see everything.
// For other viewers the log is read page by page until limit related
// entries are found or the log runs out.
func (s *Service) List(ctx context.Context, viewer session.Viewer, limit int) ([]*Entry, error) {
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}

	if viewer.IsAdmin() {
		return s.repo.List(ctx, limit, 0)
	}

	related := make([]*Entry, 0, limit)
	for offset := 0; ; offset += s.pageSize {
		page, err := s.repo.List(ctx, s.pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, e := range page {
			if Related(viewer, e) {
				related = append(related, e)
				if len(related) == limit {
					return related, nil
				}
			}
		}
		if len(page) < s.pageSize {
			return related, nil
		}
	}
}

// Related reports whether e concerns viewer: they acted, they are the subject,
// or the snapshot names them as assignee, comment author or by email.
func Related(viewer session.Viewer, e *Entry) bool {
	if viewer.ID == "" {
		return false
	}
	if e.ActorID == viewer.ID || e.SubjectID == viewer.ID {
		return true
	}

	meta := e.Meta
	if meta == nil {
		return false
	}
	if email, ok := meta["email"].(string); ok && viewer.Email != "" && strings.EqualFold(email, viewer.Email) {
		return true
	}
	for _, key := range []string{"assignee", "authorId", "memberId", "userId"} {
		if id, ok := meta[key].(string); ok && id == viewer.ID {
			return true
		}
	}
	return containsID(meta["assignees"], viewer.ID)
}

// containsID handles both []string snapshots and []any decoded from JSON
func containsID(v any, id string) bool {
	switch ids := v.(type) {
	case []string:
		for _, s := range ids {
			if s == id {
				return true
			}
		}
	case []any:
		for _, s := range ids {
			if str, ok := s.(string); ok && str == id {
				return true
			}
		}
	}
	return false
}
