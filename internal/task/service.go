package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/teamtasks/internal/activity"
	"github.com/fkhayef/teamtasks/internal/realtime"
	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/internal/task/membership"
	"github.com/fkhayef/teamtasks/internal/user"
)

// Common errors
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidTask       = errors.New("invalid task")
	ErrInvalidComment    = errors.New("comment text is required")
	ErrStreamUnavailable = errors.New("task stream is not available")
	errUnknownAssignee   = errors.New("unknown assignee")
	errGroupRequired     = errors.New("group tasks need a group_id")
	errTitleRequired     = errors.New("title is required")
	errInvalidStatus     = errors.New("unknown status")
	errInvalidPriority   = errors.New("unknown priority")
	errInvalidTaskType   = errors.New("unknown task type")
)

// UserDirectory resolves users. GetByID returns user.ErrUserNotFound for unknown ids.
type UserDirectory interface {
	ListAll(ctx context.Context) ([]*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// GroupDirectory returns a group's current members
type GroupDirectory interface {
	MemberIDs(ctx context.Context, groupID string) ([]string, error)
}

// ActivityRecorder appends audit entries
type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry)
}

// AssignmentNotifier tells a user they were put on a task
type AssignmentNotifier interface {
	NotifyAssigned(ctx context.Context, assignee *user.User, t *Task)
}

// Collaborators are the optional services a task Service reports to.
// Nil fields are skipped.
type Collaborators struct {
	Groups   GroupDirectory
	Activity ActivityRecorder
	Notifier AssignmentNotifier
	Broker   realtime.Broker
	Logger   *zap.Logger
}

// Service handles task business logic
type Service struct {
	repo     *Repository
	users    UserDirectory
	groups   GroupDirectory
	activity ActivityRecorder
	notifier AssignmentNotifier
	broker   realtime.Broker
	logger   *zap.Logger
	policies *membership.Factory
	now      func() time.Time
}

// NewService creates a new task service
func NewService(repo *Repository, users UserDirectory, c Collaborators) *Service {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		users:    users,
		groups:   c.Groups,
		activity: c.Activity,
		notifier: c.Notifier,
		broker:   c.Broker,
		logger:   logger,
		policies: membership.NewFactory(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns the tasks viewer may see, newest first. A non-nil groupID
// limits the set to that group's tasks and its members' tasks.
func (s *Service) List(ctx context.Context, viewer session.Viewer, groupID *string) ([]*Task, error) {
	raws, err := s.repo.List(ctx, groupID)
	if err != nil {
		return nil, err
	}
	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	tasks := make([]*Task, 0, len(raws))
	for _, raw := range raws {
		t, err := Normalize(*raw, names)
		if err != nil {
			s.logger.Warn("skipping unreadable task", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}
	return Visible(viewer, tasks), nil
}

// Get returns one task if viewer may see it
func (s *Service) Get(ctx context.Context, viewer session.Viewer, id string) (*Task, error) {
	t, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(viewer, t) {
		return nil, ErrPermissionDenied
	}
	return t, nil
}

// Create stores a new task created by viewer. Group tasks take their
// assignees from the group's members at this moment.
func (s *Service) Create(ctx context.Context, viewer session.Viewer, req *CreateTaskRequest) (*Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalid(errTitleRequired)
	}

	status := req.Status
	if status == "" {
		status = StatusToDo
	}
	if !status.Valid() {
		return nil, invalid(errInvalidStatus)
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, invalid(errInvalidPriority)
	}

	taskType := req.TaskType
	if taskType == "" {
		switch {
		case req.GroupID != nil:
			taskType = membership.TaskTypeGroup
		case len(req.Assignees) > 1:
			taskType = membership.TaskTypeCustom
		default:
			taskType = membership.TaskTypeIndividual
		}
	}
	policy, err := s.policies.Create(taskType)
	if err != nil {
		return nil, invalid(errInvalidTaskType)
	}

	var groupID *string
	assignees := mergeAssignees(req.Assignees, nil, "")
	if taskType == membership.TaskTypeGroup {
		if req.GroupID == nil || *req.GroupID == "" || s.groups == nil {
			return nil, invalid(errGroupRequired)
		}
		members, err := s.groups.MemberIDs(ctx, *req.GroupID)
		if err != nil {
			return nil, invalid(err)
		}
		gid := *req.GroupID
		groupID = &gid
		assignees = mergeAssignees(members, nil, "")
	}

	if err := policy.Validate(assignees); err != nil {
		return nil, invalid(err)
	}
	directory, err := s.directory(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkKnown(assignees, directory); err != nil {
		return nil, invalid(err)
	}

	now := s.now()
	t := &Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
		DueAt:       utc(req.DueAt),
		CreatedBy:   viewer.ID,
		AssignedBy:  viewer.Name,
		TaskType:    taskType,
		GroupID:     groupID,
		Assignees:   assignees,
		Comments:    []Comment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == StatusDone {
		t.CompletedAt = &now
	}
	t.AssigneeNames = joinNames(assignees, namesOf(directory))

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	meta := map[string]any{
		"title":     t.Title,
		"status":    string(t.Status),
		"priority":  string(t.Priority),
		"taskType":  string(t.TaskType),
		"assignees": t.Assignees,
	}
	if groupID != nil {
		meta["groupId"] = *groupID
	}
	s.record(ctx, activity.ActionCreate, viewer, t.ID, meta)
	s.notify(ctx, viewer, t, t.Assignees, directory)
	s.publish(ctx, realtime.TaskCreated, t.ID)
	return t, nil
}

// Update applies a partial update. Admins and the creator may change every
// field; an assignee may change only the status.
func (s *Service) Update(ctx context.Context, viewer session.Viewer, id string, req *UpdateTaskRequest) (*Task, error) {
	t, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManage(viewer, t) && !(t.HasAssignee(viewer.ID) && req.onlyStatus()) {
		return nil, ErrPermissionDenied
	}

	patch := map[string]any{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, invalid(errTitleRequired)
		}
		t.Title = title
		patch["title"] = title
	}
	if req.Description != nil {
		t.Description = *req.Description
		patch["desc"] = t.Description
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, invalid(errInvalidPriority)
		}
		t.Priority = *req.Priority
		patch["priority"] = string(t.Priority)
	}
	if req.DueAt != nil {
		t.DueAt = utc(req.DueAt)
		patch["dueAt"] = t.DueAt.Format(time.RFC3339)
	}

	now := s.now()
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, invalid(errInvalidStatus)
		}
		switch {
		case *req.Status == StatusDone && t.Status != StatusDone:
			t.CompletedAt = &now
		case *req.Status != StatusDone:
			t.CompletedAt = nil
		}
		t.Status = *req.Status
		patch["status"] = string(t.Status)
	}

	var directory []*user.User
	var added []string
	if req.Assignees != nil {
		policy, err := s.policies.Create(t.TaskType)
		if err != nil {
			return nil, err
		}
		next := mergeAssignees(*req.Assignees, nil, "")
		if err := policy.Validate(next); err != nil {
			return nil, invalid(err)
		}
		directory, err = s.directory(ctx)
		if err != nil {
			return nil, err
		}
		if err := checkKnown(next, directory); err != nil {
			return nil, invalid(err)
		}
		for _, id := range next {
			if !t.HasAssignee(id) {
				added = append(added, id)
			}
		}
		t.Assignees = next
		t.AssigneeNames = joinNames(next, namesOf(directory))
		patch["assignees"] = next
	}

	t.UpdatedAt = now
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, vanished(err)
	}

	s.record(ctx, activity.ActionUpdate, viewer, t.ID, patch)
	if len(added) > 0 {
		s.notify(ctx, viewer, t, added, directory)
	}
	s.publish(ctx, realtime.TaskUpdated, t.ID)
	return t, nil
}

// Delete removes a task. Admin or creator only.
func (s *Service) Delete(ctx context.Context, viewer session.Viewer, id string) error {
	t, _, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !CanManage(viewer, t) {
		return ErrPermissionDenied
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return vanished(err)
	}

	s.record(ctx, activity.ActionDelete, viewer, id, map[string]any{
		"title":     t.Title,
		"assignees": t.Assignees,
	})
	s.publish(ctx, realtime.TaskDeleted, id)
	return nil
}

// AddComment appends a comment by viewer to a task they can see
func (s *Service) AddComment(ctx context.Context, viewer session.Viewer, id string, req *AddCommentRequest) (*Comment, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrInvalidComment
	}

	t, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(viewer, t) {
		return nil, ErrPermissionDenied
	}

	c := &Comment{
		ID:         uuid.NewString(),
		Text:       text,
		AuthorID:   viewer.ID,
		AuthorName: viewer.Name,
		CreatedAt:  s.now(),
	}
	if err := s.repo.AddComment(ctx, id, c); err != nil {
		return nil, err
	}

	s.record(ctx, activity.ActionComment, viewer, id, map[string]any{
		"id":       c.ID,
		"text":     c.Text,
		"authorId": c.AuthorID,
	})
	s.publish(ctx, realtime.TaskCommented, id)
	return c, nil
}

// AddMember adds userID to a group or custom task. Adding a present member
// changes nothing.
func (s *Service) AddMember(ctx context.Context, viewer session.Viewer, id, userID string) (*Task, error) {
	return s.editMembers(ctx, viewer, id, userID, activity.ActionAddMember, membership.Policy.Add)
}

// RemoveMember removes userID from a group or custom task. Removing a
// non-member changes nothing; removals below the type's minimum fail.
func (s *Service) RemoveMember(ctx context.Context, viewer session.Viewer, id, userID string) (*Task, error) {
	return s.editMembers(ctx, viewer, id, userID, activity.ActionRemoveMember, membership.Policy.Remove)
}

type memberEdit func(p membership.Policy, assignees []string, userID string) ([]string, error)

// editMembers persists only after the policy accepts the edit
func (s *Service) editMembers(ctx context.Context, viewer session.Viewer, id, userID string, action activity.Action, edit memberEdit) (*Task, error) {
	t, names, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManage(viewer, t) {
		return nil, ErrPermissionDenied
	}

	policy, err := s.policies.Create(t.TaskType)
	if err != nil {
		return nil, err
	}
	next, err := edit(policy, t.Assignees, userID)
	if err != nil {
		return nil, err
	}
	if sameMembers(next, t.Assignees) {
		return t, nil
	}

	var member *user.User
	if action == activity.ActionAddMember {
		member, err = s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		names[member.ID] = member.Name
	}

	now := s.now()
	if err := s.repo.ReplaceAssignees(ctx, id, next, now); err != nil {
		return nil, vanished(err)
	}
	t.Assignees = next
	t.AssigneeNames = joinNames(next, names)
	t.UpdatedAt = now

	s.record(ctx, action, viewer, id, map[string]any{
		"memberId":  userID,
		"assignees": next,
	})
	if member != nil && s.notifier != nil && member.ID != viewer.ID {
		s.notifier.NotifyAssigned(ctx, member, t)
	}
	s.publish(ctx, realtime.TaskMembersChanged, id)
	return t, nil
}

// Subscribe streams the tasks viewer may see: the current snapshot at once,
// then a fresh one after every task change. Snapshots are coalesced, so a
// slow reader skips intermediate ones but always gets the latest. The
// channel closes when ctx is done.
func (s *Service) Subscribe(ctx context.Context, viewer session.Viewer, groupID *string) (<-chan []*Task, error) {
	if s.broker == nil {
		return nil, ErrStreamUnavailable
	}

	events, cancel := s.broker.Subscribe()
	initial, err := s.List(ctx, viewer, groupID)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan []*Task, 1)
	out <- initial

	go func() {
		defer close(out)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				snapshot, err := s.List(ctx, viewer, groupID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.Warn("task snapshot failed", zap.String("viewer_id", viewer.ID), zap.Error(err))
					continue
				}
				// Replace an unread snapshot with the newer one.
				select {
				case <-out:
				default:
				}
				out <- snapshot
			}
		}
	}()

	return out, nil
}

// load fetches and normalizes a task, returning the name map it used
func (s *Service) load(ctx context.Context, id string) (*Task, map[string]string, error) {
	raw, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if raw == nil {
		return nil, nil, ErrTaskNotFound
	}

	names, err := s.names(ctx)
	if err != nil {
		return nil, nil, err
	}
	t, err := Normalize(*raw, names)
	if err != nil {
		return nil, nil, err
	}
	return t, names, nil
}

func (s *Service) directory(ctx context.Context) ([]*user.User, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

func (s *Service) names(ctx context.Context) (map[string]string, error) {
	users, err := s.directory(ctx)
	if err != nil {
		return nil, err
	}
	return namesOf(users), nil
}

func namesOf(users []*user.User) map[string]string {
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}

func checkKnown(ids []string, users []*user.User) error {
	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%w: %s", errUnknownAssignee, id)
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, action activity.Action, viewer session.Viewer, subjectID string, meta map[string]any) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, activity.Entry{
		Action:    action,
		ActorID:   viewer.ID,
		SubjectID: subjectID,
		Meta:      meta,
	})
}

// notify tells each listed assignee other than the actor
func (s *Service) notify(ctx context.Context, viewer session.Viewer, t *Task, ids []string, users []*user.User) {
	if s.notifier == nil {
		return
	}
	byID := make(map[string]*user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, id := range ids {
		if u := byID[id]; u != nil && id != viewer.ID {
			s.notifier.NotifyAssigned(ctx, u, t)
		}
	}
}

func (s *Service) publish(ctx context.Context, kind, taskID string) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, realtime.Event{Kind: kind, TaskID: taskID}); err != nil {
		s.logger.Warn("task event publish failed", zap.String("kind", kind), zap.String("task_id", taskID), zap.Error(err))
	}
}

// vanished reports a task deleted between its load and the write as not found
func vanished(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTaskNotFound
	}
	return err
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidTask, err)
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
