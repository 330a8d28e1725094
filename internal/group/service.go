package group

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/teamtasks/internal/activity"
	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/internal/user"
)

// Common errors
var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("user is already a member of this group")
	ErrNotAuthorized       = errors.New("not authorized to perform this action")
	ErrTooFewMembers       = errors.New("a group must have at least 2 members")
	ErrInvalidGroup        = errors.New("group name is required")
)

// UserLookup resolves user ids; GetByID returns user.ErrUserNotFound for unknown ids
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// ActivityRecorder appends audit entries
type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry)
}

// Service handles group business logic
type Service struct {
	repo     *Repository
	users    UserLookup
	activity ActivityRecorder
	now      func() time.Time
}

// NewService creates a new group service
func NewService(repo *Repository, users UserLookup, activity ActivityRecorder) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		activity: activity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create creates a new group and assigns each member to it. Admin only.
func (s *Service) Create(ctx context.Context, actor session.Viewer, req *CreateGroupRequest) (*Group, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidGroup
	}
	members, err := s.checkMembers(ctx, req.Members)
	if err != nil {
		return nil, err
	}

	group := &Group{
		ID:        uuid.NewString(),
		Name:      name,
		Members:   members,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, err
	}

	s.record(ctx, activity.Entry{
		Action:    activity.ActionCreateGroup,
		ActorID:   actor.ID,
		SubjectID: group.ID,
		Meta:      map[string]any{"name": group.Name, "members": group.Members},
	})
	return group, nil
}

// GetByID retrieves a group by its ID
func (s *Service) GetByID(ctx context.Context, id string) (*Group, error) {
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// List retrieves all groups
func (s *Service) List(ctx context.Context) ([]*Group, error) {
	return s.repo.List(ctx)
}

// Exists reports whether a group with id exists
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return group != nil, nil
}

// MemberIDs returns a group's members, used to seed group tasks
func (s *Service) MemberIDs(ctx context.Context, id string) ([]string, error) {
	group, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return group.Members, nil
}

// Update renames a group and/or replaces its members. Admin only.
func (s *Service) Update(ctx context.Context, actor session.Viewer, id string, req *UpdateGroupRequest) (*Group, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	group, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrInvalidGroup
		}
		group.Name = name
	}

	previous := group.Members
	if req.Members != nil {
		members, err := s.checkMembers(ctx, *req.Members)
		if err != nil {
			return nil, err
		}
		group.Members = members
	}

	added, removed := diff(previous, group.Members)
	if err := s.repo.Update(ctx, group, removed); err != nil {
		return nil, err
	}

	s.record(ctx, activity.Entry{
		Action:    activity.ActionUpdateGroup,
		ActorID:   actor.ID,
		SubjectID: group.ID,
		Meta: map[string]any{
			"name":    group.Name,
			"members": group.Members,
			"added":   added,
			"removed": removed,
		},
	})
	return group, nil
}

// Delete removes a group. Former members keep their accounts with no group.
func (s *Service) Delete(ctx context.Context, actor session.Viewer, id string) error {
	if !actor.IsAdmin() {
		return ErrNotAuthorized
	}

	group, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.record(ctx, activity.Entry{
		Action:    activity.ActionDeleteGroup,
		ActorID:   actor.ID,
		SubjectID: id,
		Meta:      map[string]any{"name": group.Name, "members": group.Members},
	})
	return nil
}

// AddMember adds a user to a group. Admin only.
func (s *Service) AddMember(ctx context.Context, actor session.Viewer, groupID, userID string) (*Group, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	group, err := s.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.HasMember(userID) {
		return nil, ErrMemberAlreadyExists
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	if err := s.repo.AddMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	group.Members = append(group.Members, userID)

	s.record(ctx, activity.Entry{
		Action:    activity.ActionAddMember,
		ActorID:   actor.ID,
		SubjectID: groupID,
		Meta:      map[string]any{"groupId": groupID, "memberId": userID},
	})
	return group, nil
}

// RemoveMember removes a user from a group. A group never drops below
// MinMembers this way. Admin only.
func (s *Service) RemoveMember(ctx context.Context, actor session.Viewer, groupID, userID string) (*Group, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	group, err := s.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, ErrMemberNotFound
	}
	if len(group.Members)-1 < MinMembers {
		return nil, ErrTooFewMembers
	}

	if err := s.repo.RemoveMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	group.Members = without(group.Members, userID)

	s.record(ctx, activity.Entry{
		Action:    activity.ActionRemoveMember,
		ActorID:   actor.ID,
		SubjectID: groupID,
		Meta:      map[string]any{"groupId": groupID, "memberId": userID},
	})
	return group, nil
}

// checkMembers dedupes ids, enforces the minimum size and verifies each user exists
func (s *Service) checkMembers(ctx context.Context, ids []string) ([]string, error) {
	members := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	if len(members) < MinMembers {
		return nil, ErrTooFewMembers
	}

	for _, id := range members {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return nil, fmt.Errorf("member %s: %w", id, err)
		}
	}
	return members, nil
}

// diff returns ids in next but not prev, and ids in prev but not next
func diff(prev, next []string) (added, removed []string) {
	inPrev := make(map[string]bool, len(prev))
	for _, id := range prev {
		inPrev[id] = true
	}
	inNext := make(map[string]bool, len(next))
	for _, id := range next {
		inNext[id] = true
		if !inPrev[id] {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if !inNext[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (s *Service) record(ctx context.Context, e activity.Entry) {
	if s.activity != nil {
		s.activity.Record(ctx, e)
	}
}
