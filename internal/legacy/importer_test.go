package legacy

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/teamtasks/internal/group"
	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/internal/task"
	"github.com/fkhayef/teamtasks/internal/testutil"
	"github.com/fkhayef/teamtasks/internal/user"
)

type fixture struct {
	users    *user.Repository
	groups   *group.Repository
	tasks    *task.Repository
	importer *Importer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &fixture{
		users:  user.NewRepository(db),
		groups: group.NewRepository(db),
		tasks:  task.NewRepository(db),
	}
	f.importer = NewImporter(f.users, f.groups, f.tasks, zap.NewNop())
	return f
}

func decode(t *testing.T, doc string) *Export {
	t.Helper()
	exp, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return exp
}

func TestImportWritesCanonicalRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.importer.Import(ctx, decode(t, jsonExport))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	want := Report{Users: 2, Groups: 1, Tasks: 1}
	if *report != want {
		t.Errorf("Import() report = %+v, want %+v", *report, want)
	}

	alice, err := f.users.GetByID(ctx, "u1")
	if err != nil || alice == nil {
		t.Fatalf("GetByID(u1) = %v, %v", alice, err)
	}
	if alice.Role != session.RoleAdmin || alice.Status != user.StatusActive {
		t.Errorf("u1 role/status = %s/%s", alice.Role, alice.Status)
	}
	if alice.GroupID == nil || *alice.GroupID != "g1" {
		t.Errorf("u1 group = %v, want g1", alice.GroupID)
	}

	bob, err := f.users.GetByID(ctx, "u2")
	if err != nil || bob == nil {
		t.Fatalf("GetByID(u2) = %v, %v", bob, err)
	}
	if bob.Status != user.StatusInvited {
		t.Errorf("u2 status = %s, want invited", bob.Status)
	}

	raw, err := f.tasks.GetByID(ctx, "t1")
	if err != nil || raw == nil {
		t.Fatalf("GetByID(t1) = %v, %v", raw, err)
	}
	if !reflect.DeepEqual(raw.Assignees, []string{"u2", "u1"}) {
		t.Errorf("stored assignees = %v, want [u2 u1]", raw.Assignees)
	}
	if raw.TaskType != "group" {
		t.Errorf("stored task type = %q, want group", raw.TaskType)
	}
	if raw.Assignee != "" || len(raw.TaskMembers) != 0 {
		t.Errorf("stored legacy fields = %q, %v", raw.Assignee, raw.TaskMembers)
	}
	if len(raw.Comments) != 1 || raw.Comments[0].Text != "on it" {
		t.Errorf("stored comments = %+v", raw.Comments)
	}
}

func TestImportIsRerunnable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.importer.Import(ctx, decode(t, jsonExport)); err != nil {
		t.Fatalf("first Import() error = %v", err)
	}
	report, err := f.importer.Import(ctx, decode(t, jsonExport))
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	want := Report{Skipped: 4}
	if *report != want {
		t.Errorf("second Import() report = %+v, want %+v", *report, want)
	}
}

func TestImportCountsMembershipViolations(t *testing.T) {
	f := newFixture(t)

	doc := `
users:
  - {id: u1, name: Alice, email: alice@example.com}
  - {id: u2, name: Bob, email: bob@example.com}
groups:
  - {id: g1, name: Solo, members: [u1, ghost, u1]}
tasks:
  - {id: t1, title: Pair work, taskType: individual, assignees: [u1, u2]}
  - {title: no id}
`
	report, err := f.importer.Import(context.Background(), decode(t, doc))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	want := Report{Users: 2, Groups: 1, Tasks: 1, Skipped: 1, Violations: 1}
	if *report != want {
		t.Errorf("Import() report = %+v, want %+v", *report, want)
	}

	g, err := f.groups.GetByID(context.Background(), "g1")
	if err != nil || g == nil {
		t.Fatalf("GetByID(g1) = %v, %v", g, err)
	}
	if !reflect.DeepEqual(g.Members, []string{"u1"}) {
		t.Errorf("group members = %v, want [u1]", g.Members)
	}
}

func TestImportKeepsDueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := `{
  "users": [{"id": "u1", "name": "Alice", "email": "alice@example.com"}],
  "tasks": [{"id": "t1", "title": "Audit", "assignee": "u1", "due": "2025-03-01T10:00:00Z"}]
}`
	if _, err := f.importer.Import(ctx, decode(t, doc)); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	raw, err := f.tasks.GetByID(ctx, "t1")
	if err != nil || raw == nil {
		t.Fatalf("GetByID(t1) = %v, %v", raw, err)
	}
	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if raw.DueAt == nil || !raw.DueAt.Equal(want) {
		t.Errorf("stored due = %v, want %v", raw.DueAt, want)
	}
}
