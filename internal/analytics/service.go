package analytics

import (
	"context"
	"time"

	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/internal/task"
	"github.com/fkhayef/teamtasks/internal/user"
)

// TaskLister returns the tasks a viewer may see
type TaskLister interface {
	List(ctx context.Context, viewer session.Viewer, groupID *string) ([]*task.Task, error)
}

// UserLister returns every user
type UserLister interface {
	ListAll(ctx context.Context) ([]*user.User, error)
}

// Service computes analytics over visible tasks
type Service struct {
	tasks TaskLister
	users UserLister
	now   func() time.Time
}

// NewService creates a new analytics service
func NewService(tasks TaskLister, users UserLister) *Service {
	return &Service{
		tasks: tasks,
		users: users,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Summary summarizes the tasks viewer can see. Admins also get the per-user overview.
func (s *Service) Summary(ctx context.Context, viewer session.Viewer, groupID *string) (*Summary, error) {
	tasks, err := s.tasks.List(ctx, viewer, groupID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	if viewer.IsAdmin() && groupID != nil {
		scoped := users[:0:0]
		for _, u := range users {
			if u.GroupID != nil && *u.GroupID == *groupID {
				scoped = append(scoped, u)
			}
		}
		users = scoped
	}

	return Compute(tasks, users, s.now(), viewer.IsAdmin()), nil
}
