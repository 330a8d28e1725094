package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/teamtasks/internal/activity"
	"github.com/fkhayef/teamtasks/internal/database"
	"github.com/fkhayef/teamtasks/internal/session"
)

// Common errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailAlreadyInUse = errors.New("email already in use")
	ErrAdminOnly         = errors.New("only admins can perform this action")
	ErrInvalidUser       = errors.New("invalid user")
	ErrUnknownGroup      = errors.New("group not found")
	ErrNoInvitation      = errors.New("no invitation matches this registration")
	ErrAlreadyRegistered = errors.New("user already registered")
)

// ActivityRecorder appends audit entries
type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry)
}

// GroupChecker reports whether a group exists
type GroupChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service handles user business logic
type Service struct {
	repo     *Repository
	activity ActivityRecorder
	groups   GroupChecker
	now      func() time.Time
}

// NewService creates a new user service with repository dependency injected
func NewService(repo *Repository, activity ActivityRecorder) *Service {
	return &Service{
		repo:     repo,
		activity: activity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetGroupChecker wires the group lookup used by SetGroup. Groups depend on
// users, so this is set after both services exist.
func (s *Service) SetGroupChecker(groups GroupChecker) {
	s.groups = groups
}

// Create adds an invited user. Admin only.
func (s *Service) Create(ctx context.Context, actor session.Viewer, req *CreateUserRequest) (*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}

	u, err := s.insert(ctx, req, StatusInvited)
	if err != nil {
		return nil, err
	}

	s.record(ctx, activity.Entry{
		Action:    activity.ActionCreateUser,
		ActorID:   actor.ID,
		SubjectID: u.ID,
		Meta:      map[string]any{"name": u.Name, "email": u.Email, "role": string(u.Role)},
	})
	return u, nil
}

// Register adds an active user without an acting admin, as done by
// self-registration and the bootstrap command.
func (s *Service) Register(ctx context.Context, req *CreateUserRequest) (*User, error) {
	u, err := s.insert(ctx, req, StatusActive)
	if err != nil {
		return nil, err
	}

	s.record(ctx, activity.Entry{
		Action:    activity.ActionCreateUser,
		ActorID:   u.ID,
		SubjectID: u.ID,
		Meta:      map[string]any{"name": u.Name, "email": u.Email, "role": string(u.Role)},
	})
	return u, nil
}

// CompleteRegistration activates the invited user named by a registration
// link. The email must match the invitation, ignoring case.
func (s *Service) CompleteRegistration(ctx context.Context, req *CompleteRegistrationRequest) (*User, error) {
	u, err := s.repo.GetByID(ctx, strings.TrimSpace(req.UserID))
	if err != nil {
		return nil, err
	}
	if u == nil || !strings.EqualFold(u.Email, strings.TrimSpace(req.Email)) {
		return nil, ErrNoInvitation
	}
	if u.Status != StatusInvited {
		return nil, ErrAlreadyRegistered
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrInvalidUser
		}
		u.Name = name
	}
	u.Status = StatusActive
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	s.record(ctx, activity.Entry{
		Action:    activity.ActionRegisterUser,
		ActorID:   u.ID,
		SubjectID: u.ID,
		Meta:      map[string]any{"name": u.Name, "email": u.Email},
	})
	return u, nil
}

func (s *Service) insert(ctx context.Context, req *CreateUserRequest, status Status) (*User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidUser
	}
	role := req.Role
	if role == "" {
		role = session.RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidUser
	}

	// Check if email is already in use
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyInUse
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	u := &User{
		ID:        id,
		Name:      name,
		Email:     email,
		Role:      role,
		Status:    status,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailAlreadyInUse
		}
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by their ID
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// List retrieves users with pagination, optionally limited to one group
func (s *Service) List(ctx context.Context, groupID *string, page, perPage int) ([]*User, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.List(ctx, groupID, perPage, offset)
}

// ListAll retrieves every user
func (s *Service) ListAll(ctx context.Context) ([]*User, error) {
	return s.repo.ListAll(ctx)
}

// Update modifies an existing user. Users may rename themselves; role
// changes and edits of other users need an admin.
func (s *Service) Update(ctx context.Context, actor session.Viewer, id string, req *UpdateUserRequest) (*User, error) {
	if !actor.IsAdmin() && (actor.ID != id || req.Role != nil) {
		return nil, ErrAdminOnly
	}

	// Check if user exists
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrUserNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrInvalidUser
		}
		existing.Name = name
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, ErrInvalidUser
		}
		existing.Role = *req.Role
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// SetGroup assigns a user to a group, or clears the assignment when groupID is nil
func (s *Service) SetGroup(ctx context.Context, actor session.Viewer, userID string, groupID *string) (*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}

	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if groupID != nil {
		if *groupID == "" {
			groupID = nil
		} else if s.groups != nil {
			ok, err := s.groups.Exists(ctx, *groupID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrUnknownGroup
			}
		}
	}

	if err := s.repo.SetGroup(ctx, userID, groupID); err != nil {
		return nil, err
	}
	u.GroupID = groupID

	var meta any
	if groupID != nil {
		meta = *groupID
	}
	s.record(ctx, activity.Entry{
		Action:    activity.ActionSetUserGroup,
		ActorID:   actor.ID,
		SubjectID: userID,
		Meta:      map[string]any{"userId": userID, "groupId": meta},
	})
	return u, nil
}

// Delete removes a user and their group memberships. Admin only.
func (s *Service) Delete(ctx context.Context, actor session.Viewer, id string) error {
	if !actor.IsAdmin() {
		return ErrAdminOnly
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.record(ctx, activity.Entry{
		Action:    activity.ActionDeleteUser,
		ActorID:   actor.ID,
		SubjectID: id,
		Meta:      map[string]any{"name": u.Name, "email": u.Email},
	})
	return nil
}

// Viewer resolves the session identity for an authenticated user id.
// Unknown ids and users who have not completed registration yield nil, nil.
func (s *Service) Viewer(ctx context.Context, id string) (*session.Viewer, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	if u.Status != StatusActive {
		return nil, nil
	}
	v := u.Viewer()
	return &v, nil
}

func (s *Service) record(ctx context.Context, e activity.Entry) {
	if s.activity != nil {
		s.activity.Record(ctx, e)
	}
}
