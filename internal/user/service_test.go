package user

import (
	"context"
	"errors"
	"testing"

	"github.com/fkhayef/teamtasks/internal/activity"
	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/internal/testutil"
)

var admin = session.Viewer{ID: "admin-1", Name: "Ada", Role: session.RoleAdmin}

type recorder struct {
	entries []activity.Entry
}

func (r *recorder) Record(_ context.Context, e activity.Entry) {
	r.entries = append(r.entries, e)
}

type groupSet map[string]bool

func (g groupSet) Exists(_ context.Context, id string) (bool, error) {
	return g[id], nil
}

func newTestService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	svc := NewService(NewRepository(testutil.OpenDB(t)), rec)
	svc.SetGroupChecker(groupSet{"g1": true})
	return svc, rec
}

func TestCreateInvitesUser(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, admin, &CreateUserRequest{Name: " Bob ", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if u.Name != "Bob" || u.Role != session.RoleUser || u.Status != StatusInvited {
		t.Errorf("Create() = %+v", u)
	}

	resp := u.ToResponse()
	want := "/register?uid=" + u.ID + "&email=bob%40example.com"
	if resp.RegistrationLink != want {
		t.Errorf("RegistrationLink = %q, want %q", resp.RegistrationLink, want)
	}

	if len(rec.entries) != 1 || rec.entries[0].Action != activity.ActionCreateUser {
		t.Fatalf("activity = %+v, want one create-user entry", rec.entries)
	}
}

func TestCreateRejections(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, &CreateUserRequest{Name: "Bob", Email: "bob@example.com"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name    string
		actor   session.Viewer
		req     CreateUserRequest
		wantErr error
	}{
		{"non-admin", session.Viewer{ID: "u1", Role: session.RoleUser}, CreateUserRequest{Name: "C", Email: "c@example.com"}, ErrAdminOnly},
		{"duplicate email", admin, CreateUserRequest{Name: "B", Email: "BOB@example.com"}, ErrEmailAlreadyInUse},
		{"missing name", admin, CreateUserRequest{Email: "d@example.com"}, ErrInvalidUser},
		{"bad email", admin, CreateUserRequest{Name: "D", Email: "nope"}, ErrInvalidUser},
		{"bad role", admin, CreateUserRequest{Name: "D", Email: "d@example.com", Role: "owner"}, ErrInvalidUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.actor, &tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdatePermissions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, &CreateUserRequest{Name: "Bob", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	self := u.Viewer()

	name := "Robert"
	got, err := svc.Update(ctx, self, u.ID, &UpdateUserRequest{Name: &name})
	if err != nil {
		t.Fatalf("self rename error = %v", err)
	}
	if got.Name != "Robert" {
		t.Errorf("Name = %q", got.Name)
	}

	role := session.RoleAdmin
	if _, err := svc.Update(ctx, self, u.ID, &UpdateUserRequest{Role: &role}); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("self promotion error = %v, want ErrAdminOnly", err)
	}

	got, err = svc.Update(ctx, admin, u.ID, &UpdateUserRequest{Role: &role})
	if err != nil {
		t.Fatalf("admin promotion error = %v", err)
	}
	if got.Role != session.RoleAdmin {
		t.Errorf("Role = %q", got.Role)
	}

	if _, err := svc.Update(ctx, admin, "missing", &UpdateUserRequest{Name: &name}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrUserNotFound", err)
	}
}

func TestSetGroup(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, &CreateUserRequest{Name: "Bob", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	g := "g1"
	if _, err := svc.SetGroup(ctx, admin, u.ID, &g); err != nil {
		t.Fatalf("SetGroup() error = %v", err)
	}
	stored, _ := svc.GetByID(ctx, u.ID)
	if stored.GroupID == nil || *stored.GroupID != "g1" {
		t.Fatalf("GroupID = %v, want g1", stored.GroupID)
	}

	members, total, err := svc.List(ctx, &g, 1, 20)
	if err != nil || total != 1 || len(members) != 1 {
		t.Fatalf("List(g1) = %d users, total %d, err %v", len(members), total, err)
	}

	missing := "g9"
	if _, err := svc.SetGroup(ctx, admin, u.ID, &missing); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("SetGroup(g9) error = %v, want ErrUnknownGroup", err)
	}
	if _, err := svc.SetGroup(ctx, u.Viewer(), u.ID, nil); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("SetGroup by user error = %v, want ErrAdminOnly", err)
	}

	if _, err := svc.SetGroup(ctx, admin, u.ID, nil); err != nil {
		t.Fatalf("SetGroup(nil) error = %v", err)
	}
	stored, _ = svc.GetByID(ctx, u.ID)
	if stored.GroupID != nil {
		t.Errorf("GroupID = %v, want nil", *stored.GroupID)
	}

	last := rec.entries[len(rec.entries)-1]
	if last.Action != activity.ActionSetUserGroup || last.Meta["groupId"] != nil {
		t.Errorf("last entry = %+v", last)
	}
}

func TestDeleteAndViewer(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, &CreateUserRequest{Name: "Bob", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	v, err := svc.Viewer(ctx, u.ID)
	if err != nil || v == nil || v.Email != "bob@example.com" {
		t.Fatalf("Viewer() = %+v, %v", v, err)
	}

	if err := svc.Delete(ctx, u.Viewer(), u.ID); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("Delete by user error = %v, want ErrAdminOnly", err)
	}
	if err := svc.Delete(ctx, admin, u.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, admin, u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second Delete() error = %v, want ErrUserNotFound", err)
	}

	v, err = svc.Viewer(ctx, u.ID)
	if err != nil || v != nil {
		t.Errorf("Viewer(deleted) = %+v, %v; want nil, nil", v, err)
	}

	last := rec.entries[len(rec.entries)-1]
	if last.Action != activity.ActionDeleteUser || last.Meta["email"] != "bob@example.com" {
		t.Errorf("last entry = %+v", last)
	}
}

func TestCompleteRegistrationActivatesInvitedUser(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, admin, &CreateUserRequest{Name: "Bob", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	v, err := svc.Viewer(ctx, u.ID)
	if err != nil || v != nil {
		t.Fatalf("Viewer(invited) = %+v, %v; want nil, nil", v, err)
	}

	rejections := []struct {
		name string
		req  CompleteRegistrationRequest
		want error
	}{
		{"unknown uid", CompleteRegistrationRequest{UserID: "nobody", Email: "bob@example.com"}, ErrNoInvitation},
		{"wrong email", CompleteRegistrationRequest{UserID: u.ID, Email: "eve@example.com"}, ErrNoInvitation},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CompleteRegistration(ctx, &tt.req); !errors.Is(err, tt.want) {
				t.Errorf("CompleteRegistration() error = %v, want %v", err, tt.want)
			}
		})
	}

	name := "Bobby"
	got, err := svc.CompleteRegistration(ctx, &CompleteRegistrationRequest{UserID: u.ID, Email: " BOB@example.com ", Name: &name})
	if err != nil {
		t.Fatalf("CompleteRegistration() error = %v", err)
	}
	if got.Status != StatusActive || got.Name != "Bobby" || got.ToResponse().RegistrationLink != "" {
		t.Errorf("CompleteRegistration() = %+v", got)
	}

	stored, err := svc.GetByID(ctx, u.ID)
	if err != nil || stored.Status != StatusActive {
		t.Fatalf("GetByID() = %+v, %v; want active", stored, err)
	}
	v, err = svc.Viewer(ctx, u.ID)
	if err != nil || v == nil || v.ID != u.ID {
		t.Fatalf("Viewer(registered) = %+v, %v", v, err)
	}

	last := rec.entries[len(rec.entries)-1]
	if last.Action != activity.ActionRegisterUser || last.ActorID != u.ID || last.SubjectID != u.ID {
		t.Errorf("last entry = %+v", last)
	}

	if _, err := svc.CompleteRegistration(ctx, &CompleteRegistrationRequest{UserID: u.ID, Email: "bob@example.com"}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second CompleteRegistration() error = %v, want ErrAlreadyRegistered", err)
	}
}
