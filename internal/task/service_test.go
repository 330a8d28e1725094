package task

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fkhayef/teamtasks/internal/activity"
	"github.com/fkhayef/teamtasks/internal/realtime"
	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/internal/task/membership"
	"github.com/fkhayef/teamtasks/internal/testutil"
	"github.com/fkhayef/teamtasks/internal/user"
)

type recorder struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (r *recorder) Record(_ context.Context, e activity.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recorder) actions() []activity.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Action, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

type notifier struct {
	mu       sync.Mutex
	notified []string
}

func (n *notifier) NotifyAssigned(_ context.Context, u *user.User, _ *Task) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, u.ID)
}

type groups map[string][]string

func (g groups) MemberIDs(_ context.Context, id string) ([]string, error) {
	members, ok := g[id]
	if !ok {
		return nil, errors.New("group not found")
	}
	return members, nil
}

type fixture struct {
	svc      *Service
	repo     *Repository
	rec      *recorder
	notifier *notifier
	hub      *realtime.Hub
	users    map[string]session.Viewer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	ctx := context.Background()

	users := user.NewService(user.NewRepository(db), nil)
	viewers := map[string]session.Viewer{}
	for _, u := range []struct {
		id, name string
		role     session.Role
	}{
		{"admin", "Ada", session.RoleAdmin},
		{"u1", "Una", session.RoleUser},
		{"u2", "Dos", session.RoleUser},
		{"u3", "Tres", session.RoleUser},
		{"u9", "Nueve", session.RoleUser},
	} {
		created, err := users.Register(ctx, &user.CreateUserRequest{ID: u.id, Name: u.name, Email: u.id + "@example.com", Role: u.role})
		if err != nil {
			t.Fatalf("Register(%s) error = %v", u.id, err)
		}
		viewers[u.id] = created.Viewer()
	}

	f := &fixture{
		repo:     NewRepository(db),
		rec:      &recorder{},
		notifier: &notifier{},
		hub:      realtime.NewHub(),
		users:    viewers,
	}
	f.svc = NewService(f.repo, users, Collaborators{
		Groups:   groups{"g1": {"u1", "u2"}},
		Activity: f.rec,
		Notifier: f.notifier,
		Broker:   f.hub,
	})
	return f
}

func (f *fixture) create(t *testing.T, by string, req CreateTaskRequest) *Task {
	t.Helper()
	task, err := f.svc.Create(context.Background(), f.users[by], &req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return task
}

func (f *fixture) storedAssignees(t *testing.T, id string) []string {
	t.Helper()
	raw, err := f.repo.GetByID(context.Background(), id)
	if err != nil || raw == nil {
		t.Fatalf("GetByID(%s) = %v, %v", id, raw, err)
	}
	return raw.Assignees
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t)

	task := f.create(t, "u1", CreateTaskRequest{Title: "Write docs", TaskType: membership.TaskTypeCustom, Assignees: []string{"u2", "u3", "u2"}})
	if !reflect.DeepEqual(task.Assignees, []string{"u2", "u3"}) {
		t.Errorf("Assignees = %v", task.Assignees)
	}
	if task.AssigneeNames != "Dos, Tres" || task.AssignedBy != "Una" || task.CreatedBy != "u1" {
		t.Errorf("task = %+v", task)
	}
	if task.Status != StatusToDo || task.Priority != PriorityMedium {
		t.Errorf("defaults = %q/%q", task.Status, task.Priority)
	}

	got, err := f.svc.Get(context.Background(), f.users["u3"], task.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Write docs" || got.TaskType != membership.TaskTypeCustom {
		t.Errorf("stored task = %+v", got)
	}

	if !reflect.DeepEqual(f.notifier.notified, []string{"u2", "u3"}) {
		t.Errorf("notified = %v", f.notifier.notified)
	}
	if !reflect.DeepEqual(f.rec.actions(), []activity.Action{activity.ActionCreate}) {
		t.Errorf("activity = %v", f.rec.actions())
	}
}

func TestCreateGroupTaskSnapshotsMembers(t *testing.T) {
	f := newFixture(t)
	g := "g1"

	task := f.create(t, "admin", CreateTaskRequest{Title: "Retro", TaskType: membership.TaskTypeGroup, GroupID: &g, Assignees: []string{"u9"}})
	if !reflect.DeepEqual(task.Assignees, []string{"u1", "u2"}) {
		t.Errorf("Assignees = %v, want group members", task.Assignees)
	}
	if task.GroupID == nil || *task.GroupID != "g1" {
		t.Errorf("GroupID = %v", task.GroupID)
	}
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	missing := "g9"

	tests := []struct {
		name string
		req  CreateTaskRequest
	}{
		{"blank title", CreateTaskRequest{Title: " ", Assignees: []string{"u1"}}},
		{"individual with two", CreateTaskRequest{Title: "x", TaskType: membership.TaskTypeIndividual, Assignees: []string{"u1", "u2"}}},
		{"custom with none", CreateTaskRequest{Title: "x", TaskType: membership.TaskTypeCustom}},
		{"group without id", CreateTaskRequest{Title: "x", TaskType: membership.TaskTypeGroup}},
		{"unknown group", CreateTaskRequest{Title: "x", TaskType: membership.TaskTypeGroup, GroupID: &missing}},
		{"unknown assignee", CreateTaskRequest{Title: "x", Assignees: []string{"ghost"}}},
		{"unknown type", CreateTaskRequest{Title: "x", TaskType: "team", Assignees: []string{"u1"}}},
		{"bad status", CreateTaskRequest{Title: "x", Status: "Blocked", Assignees: []string{"u1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(context.Background(), f.users["u1"], &tt.req); !errors.Is(err, ErrInvalidTask) {
				t.Errorf("Create() error = %v, want ErrInvalidTask", err)
			}
		})
	}
}

func TestListAppliesVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.create(t, "u1", CreateTaskRequest{Title: "mine", Assignees: []string{"u3"}})
	assigned := f.create(t, "u2", CreateTaskRequest{Title: "assigned", Assignees: []string{"u1"}})
	f.create(t, "u2", CreateTaskRequest{Title: "other", Assignees: []string{"u3"}})

	got, err := f.svc.List(ctx, f.users["u1"], nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	ids := map[string]bool{}
	for _, task := range got {
		ids[task.ID] = true
	}
	if len(got) != 2 || !ids[mine.ID] || !ids[assigned.ID] {
		t.Errorf("u1 sees %v", ids)
	}

	all, err := f.svc.List(ctx, f.users["admin"], nil)
	if err != nil || len(all) != 3 {
		t.Errorf("admin sees %d tasks, err %v; want 3", len(all), err)
	}

	if _, err := f.svc.Get(ctx, f.users["u9"], mine.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Get(invisible) error = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.svc.Get(ctx, f.users["u1"], "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrTaskNotFound", err)
	}
}

func TestUpdatePermissionsAndCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "u1", CreateTaskRequest{Title: "ship", Assignees: []string{"u2"}})

	title := "hijack"
	if _, err := f.svc.Update(ctx, f.users["u2"], task.ID, &UpdateTaskRequest{Title: &title}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("assignee title edit error = %v, want ErrPermissionDenied", err)
	}
	done := StatusDone
	if _, err := f.svc.Update(ctx, f.users["u9"], task.ID, &UpdateTaskRequest{Status: &done}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("stranger status edit error = %v, want ErrPermissionDenied", err)
	}

	got, err := f.svc.Update(ctx, f.users["u2"], task.ID, &UpdateTaskRequest{Status: &done})
	if err != nil {
		t.Fatalf("assignee status edit error = %v", err)
	}
	if got.Status != StatusDone || got.CompletedAt == nil {
		t.Errorf("after Done: status %q, completedAt %v", got.Status, got.CompletedAt)
	}

	reopened := StatusInProgress
	if _, err := f.svc.Update(ctx, f.users["u1"], task.ID, &UpdateTaskRequest{Status: &reopened}); err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	stored, _ := f.svc.Get(ctx, f.users["u1"], task.ID)
	if stored.Status != StatusInProgress || stored.CompletedAt != nil {
		t.Errorf("after reopen: status %q, completedAt %v", stored.Status, stored.CompletedAt)
	}

	assignees := []string{"u2", "u3"}
	if _, err := f.svc.Update(ctx, f.users["u1"], task.ID, &UpdateTaskRequest{Assignees: &assignees}); !errors.Is(err, membership.ErrInvariantViolation) {
		t.Errorf("individual with two assignees error = %v, want ErrInvariantViolation", err)
	}
	if !reflect.DeepEqual(f.storedAssignees(t, task.ID), []string{"u2"}) {
		t.Errorf("rejected update changed assignees to %v", f.storedAssignees(t, task.ID))
	}
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "u1", CreateTaskRequest{Title: "temp", Assignees: []string{"u2"}})

	if err := f.svc.Delete(ctx, f.users["u2"], task.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("assignee Delete() error = %v, want ErrPermissionDenied", err)
	}
	if err := f.svc.Delete(ctx, f.users["admin"], task.ID); err != nil {
		t.Fatalf("admin Delete() error = %v", err)
	}
	if _, err := f.svc.Get(ctx, f.users["admin"], task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrTaskNotFound", err)
	}
}

func TestAddComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "u1", CreateTaskRequest{Title: "discuss", Assignees: []string{"u2"}})

	if _, err := f.svc.AddComment(ctx, f.users["u9"], task.ID, &AddCommentRequest{Text: "hi"}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("invisible comment error = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.svc.AddComment(ctx, f.users["u2"], task.ID, &AddCommentRequest{Text: "  "}); !errors.Is(err, ErrInvalidComment) {
		t.Errorf("blank comment error = %v, want ErrInvalidComment", err)
	}

	for _, text := range []string{"first", "second"} {
		if _, err := f.svc.AddComment(ctx, f.users["u2"], task.ID, &AddCommentRequest{Text: text}); err != nil {
			t.Fatalf("AddComment() error = %v", err)
		}
	}

	got, _ := f.svc.Get(ctx, f.users["u1"], task.ID)
	if len(got.Comments) != 2 || got.Comments[0].Text != "first" || got.Comments[1].AuthorName != "Dos" {
		t.Errorf("Comments = %+v", got.Comments)
	}
}

func TestMembershipEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := "g1"

	group := f.create(t, "admin", CreateTaskRequest{Title: "group", TaskType: membership.TaskTypeGroup, GroupID: &g})
	custom := f.create(t, "u1", CreateTaskRequest{Title: "custom", TaskType: membership.TaskTypeCustom, Assignees: []string{"u1"}})
	individual := f.create(t, "u1", CreateTaskRequest{Title: "solo", Assignees: []string{"u1"}})

	for _, member := range []string{"u1", "u2"} {
		if _, err := f.svc.RemoveMember(ctx, f.users["admin"], group.ID, member); !errors.Is(err, membership.ErrInvariantViolation) {
			t.Errorf("RemoveMember(group, %s) error = %v, want ErrInvariantViolation", member, err)
		}
	}
	if !reflect.DeepEqual(f.storedAssignees(t, group.ID), []string{"u1", "u2"}) {
		t.Errorf("rejected removal changed assignees to %v", f.storedAssignees(t, group.ID))
	}

	if _, err := f.svc.RemoveMember(ctx, f.users["u1"], custom.ID, "u1"); !errors.Is(err, membership.ErrInvariantViolation) {
		t.Errorf("RemoveMember(custom last) error = %v, want ErrInvariantViolation", err)
	}
	if _, err := f.svc.AddMember(ctx, f.users["u1"], individual.ID, "u2"); !errors.Is(err, membership.ErrInvalidOperation) {
		t.Errorf("AddMember(individual) error = %v, want ErrInvalidOperation", err)
	}
	if _, err := f.svc.AddMember(ctx, f.users["u2"], custom.ID, "u3"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("AddMember by non-creator error = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.svc.AddMember(ctx, f.users["u1"], custom.ID, "ghost"); !errors.Is(err, user.ErrUserNotFound) {
		t.Errorf("AddMember(ghost) error = %v, want ErrUserNotFound", err)
	}

	once, err := f.svc.AddMember(ctx, f.users["u1"], custom.ID, "u3")
	if err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	twice, err := f.svc.AddMember(ctx, f.users["u1"], custom.ID, "u3")
	if err != nil {
		t.Fatalf("second AddMember() error = %v", err)
	}
	if !reflect.DeepEqual(once.Assignees, []string{"u1", "u3"}) || !reflect.DeepEqual(twice.Assignees, once.Assignees) {
		t.Errorf("AddMember once = %v, twice = %v", once.Assignees, twice.Assignees)
	}
	if once.AssigneeNames != "Una, Tres" {
		t.Errorf("AssigneeNames = %q", once.AssigneeNames)
	}

	got, err := f.svc.RemoveMember(ctx, f.users["u1"], custom.ID, "u9")
	if err != nil || !reflect.DeepEqual(got.Assignees, []string{"u1", "u3"}) {
		t.Errorf("RemoveMember(non-member) = %v, %v", got, err)
	}

	if _, err := f.svc.RemoveMember(ctx, f.users["u1"], custom.ID, "u1"); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if !reflect.DeepEqual(f.storedAssignees(t, custom.ID), []string{"u3"}) {
		t.Errorf("stored assignees = %v, want [u3]", f.storedAssignees(t, custom.ID))
	}
}

func TestWritesToVanishedTaskReportNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := "g1"

	// deleteOnWrite removes the task after it was loaded and before it is written
	deleteOnWrite := func(id string) {
		f.svc.now = func() time.Time {
			if err := f.repo.Delete(context.Background(), id); err != nil {
				t.Fatalf("Delete(%s) error = %v", id, err)
			}
			return time.Now().UTC()
		}
	}

	solo := f.create(t, "u1", CreateTaskRequest{Title: "solo", Assignees: []string{"u1"}})
	deleteOnWrite(solo.ID)
	title := "renamed"
	if _, err := f.svc.Update(ctx, f.users["u1"], solo.ID, &UpdateTaskRequest{Title: &title}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Update() error = %v, want ErrTaskNotFound", err)
	}

	f.svc.now = func() time.Time { return time.Now().UTC() }
	shared := f.create(t, "admin", CreateTaskRequest{Title: "shared", GroupID: &g})
	deleteOnWrite(shared.ID)
	if _, err := f.svc.AddMember(ctx, f.users["admin"], shared.ID, "u3"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("AddMember() error = %v, want ErrTaskNotFound", err)
	}
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, err := f.svc.Subscribe(ctx, f.users["u2"], nil)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if initial := receive(t, snapshots); len(initial) != 0 {
		t.Fatalf("initial snapshot has %d tasks, want 0", len(initial))
	}

	f.create(t, "u1", CreateTaskRequest{Title: "hidden", Assignees: []string{"u3"}})
	visible := f.create(t, "u1", CreateTaskRequest{Title: "shared", Assignees: []string{"u2"}})

	deadline := time.After(2 * time.Second)
	for {
		var snap []*Task
		select {
		case snap = <-snapshots:
		case <-deadline:
			t.Fatal("no snapshot with the shared task")
		}
		if len(snap) == 1 && snap[0].ID == visible.ID {
			break
		}
	}

	cancel()
	for range snapshots {
	}
	if n := f.hub.Len(); n != 0 {
		t.Errorf("hub has %d subscribers after cancel", n)
	}
}

func receive(t *testing.T, ch <-chan []*Task) []*Task {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("snapshot channel closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}
