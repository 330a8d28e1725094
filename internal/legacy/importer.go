package legacy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/teamtasks/internal/group"
	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/internal/task"
	"github.com/fkhayef/teamtasks/internal/task/membership"
	"github.com/fkhayef/teamtasks/internal/user"
)

// Report counts what an import wrote and skipped
type Report struct {
	Users      int `json:"users"`
	Groups     int `json:"groups"`
	Tasks      int `json:"tasks"`
	Skipped    int `json:"skipped"`
	Violations int `json:"violations"`
}

// Importer writes an export through the repositories. Records whose id
// already exists are skipped, so an import can be rerun.
type Importer struct {
	users    *user.Repository
	groups   *group.Repository
	tasks    *task.Repository
	policies *membership.Factory
	logger   *zap.Logger
	now      func() time.Time
}

// NewImporter creates a new importer
func NewImporter(users *user.Repository, groups *group.Repository, tasks *task.Repository, logger *zap.Logger) *Importer {
	return &Importer{
		users:    users,
		groups:   groups,
		tasks:    tasks,
		policies: membership.NewFactory(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Import writes users, then groups, then tasks
func (im *Importer) Import(ctx context.Context, exp *Export) (*Report, error) {
	report := &Report{}

	names := make(map[string]string, len(exp.Users))
	for _, u := range exp.Users {
		names[u.ID] = u.Name
	}

	for _, u := range exp.Users {
		ok, err := im.importUser(ctx, u)
		if err != nil {
			return report, err
		}
		if ok {
			report.Users++
		} else {
			report.Skipped++
		}
	}

	for _, g := range exp.Groups {
		ok, err := im.importGroup(ctx, g)
		if err != nil {
			return report, err
		}
		if ok {
			report.Groups++
		} else {
			report.Skipped++
		}
	}

	for _, t := range exp.Tasks {
		ok, violated, err := im.importTask(ctx, t, names)
		if err != nil {
			return report, err
		}
		if violated {
			report.Violations++
		}
		if ok {
			report.Tasks++
		} else {
			report.Skipped++
		}
	}

	return report, nil
}

func (im *Importer) importUser(ctx context.Context, in User) (bool, error) {
	if in.ID == "" || in.Email == "" {
		im.logger.Warn("skipping user without id or email", zap.String("name", in.Name))
		return false, nil
	}
	existing, err := im.users.GetByID(ctx, in.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	role := session.Role(strings.ToLower(in.Role))
	if !role.Valid() {
		role = session.RoleUser
	}
	status := user.Status(in.Status)
	if status != user.StatusInvited {
		status = user.StatusActive
	}

	u := &user.User{
		ID:        in.ID,
		Name:      in.Name,
		Email:     strings.TrimSpace(in.Email),
		Role:      role,
		Status:    status,
		CreatedAt: im.orNow(in.CreatedAt),
	}
	// group_id is set when the group's membership is written
	if err := im.users.Create(ctx, u); err != nil {
		return false, fmt.Errorf("user %s: %w", in.ID, err)
	}
	return true, nil
}

func (im *Importer) importGroup(ctx context.Context, in Group) (bool, error) {
	if in.ID == "" {
		im.logger.Warn("skipping group without id", zap.String("name", in.Name))
		return false, nil
	}
	existing, err := im.groups.GetByID(ctx, in.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	var members []string
	seen := make(map[string]bool, len(in.Members))
	for _, id := range in.Members {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		u, err := im.users.GetByID(ctx, id)
		if err != nil {
			return false, err
		}
		if u == nil {
			im.logger.Warn("dropping unknown group member", zap.String("group", in.ID), zap.String("user", id))
			continue
		}
		members = append(members, id)
	}

	g := &group.Group{
		ID:        in.ID,
		Name:      in.Name,
		Members:   members,
		CreatedAt: im.orNow(in.CreatedAt),
	}
	if err := im.groups.Create(ctx, g); err != nil {
		return false, fmt.Errorf("group %s: %w", in.ID, err)
	}
	return true, nil
}

func (im *Importer) importTask(ctx context.Context, in Task, names map[string]string) (bool, bool, error) {
	raw := in.Raw()
	if raw.CreatedAt.IsZero() {
		raw.CreatedAt = im.now()
	}
	if raw.UpdatedAt.IsZero() {
		raw.UpdatedAt = raw.CreatedAt
	}

	t, err := task.Normalize(raw, names)
	if err != nil {
		im.logger.Warn("skipping task", zap.String("title", in.Title), zap.Error(err))
		return false, false, nil
	}

	existing, err := im.tasks.GetByID(ctx, t.ID)
	if err != nil {
		return false, false, err
	}
	if existing != nil {
		return false, false, nil
	}

	violated := false
	policy, err := im.policies.Create(t.TaskType)
	if err == nil {
		err = policy.Validate(t.Assignees)
	}
	if err != nil {
		violated = true
		im.logger.Warn("imported task breaks membership rules",
			zap.String("task", t.ID),
			zap.String("type", string(t.TaskType)),
			zap.Int("assignees", len(t.Assignees)),
			zap.Error(err),
		)
	}

	if err := im.tasks.Create(ctx, t); err != nil {
		return false, violated, fmt.Errorf("task %s: %w", t.ID, err)
	}
	for i := range t.Comments {
		c := t.Comments[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = t.CreatedAt
		}
		if err := im.tasks.AddComment(ctx, t.ID, &c); err != nil {
			return false, violated, fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	return true, violated, nil
}

func (im *Importer) orNow(ts Timestamp) time.Time {
	if ts.IsZero() {
		return im.now()
	}
	return ts.Time
}
