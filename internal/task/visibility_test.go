package task

import (
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/fkhayef/teamtasks/internal/session"
)

func asUser(id string) session.Viewer {
	return session.Viewer{ID: id, Role: session.RoleUser}
}

func TestVisibleGroupTaskScenario(t *testing.T) {
	task, err := Normalize(RawTask{
		ID:          "t2",
		TaskType:    "group",
		CreatedBy:   "admin",
		TaskMembers: []string{"u1", "u2", "u3"},
	}, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if got := Visible(asUser("u2"), []*Task{task}); len(got) != 1 {
		t.Errorf("u2 sees %d tasks, want 1", len(got))
	}
	if got := Visible(asUser("u9"), []*Task{task}); len(got) != 0 {
		t.Errorf("u9 sees %d tasks, want 0", len(got))
	}

	task.CreatedBy = "u9"
	if got := Visible(asUser("u9"), []*Task{task}); len(got) != 1 {
		t.Errorf("creator u9 sees %d tasks, want 1", len(got))
	}
}

func TestVisibleKeepsOrder(t *testing.T) {
	tasks := []*Task{
		{ID: "a", Assignees: []string{"u1"}},
		{ID: "b", Assignees: []string{"u2"}},
		{ID: "c", CreatedBy: "u1"},
		{ID: "d", Assignees: []string{"u2", "u1"}},
	}

	var ids []string
	for _, task := range Visible(asUser("u1"), tasks) {
		ids = append(ids, task.ID)
	}
	if !reflect.DeepEqual(ids, []string{"a", "c", "d"}) {
		t.Errorf("Visible() = %v, want [a c d]", ids)
	}
}

func TestVisibleEmptyAssignees(t *testing.T) {
	task := &Task{ID: "orphan", CreatedBy: "u1"}
	if len(Visible(asUser("u1"), []*Task{task})) != 1 {
		t.Error("creator should see a task without assignees")
	}
	if len(Visible(asUser("u2"), []*Task{task})) != 0 {
		t.Error("other users should not see a task without assignees")
	}
	if len(Visible(session.Viewer{ID: "x", Role: session.RoleAdmin}, []*Task{task})) != 1 {
		t.Error("admins should see a task without assignees")
	}
}

func drawTask(rt *rapid.T, label string) *Task {
	id := rapid.StringMatching(`u[0-9]`)
	return &Task{
		ID:        label,
		CreatedBy: id.Draw(rt, label+"_creator"),
		Assignees: rapid.SliceOfNDistinct(id, 0, 4, rapid.ID[string]).Draw(rt, label+"_assignees"),
	}
}

func TestPropertyAdminSeesEverything(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(rt, "n")
		tasks := make([]*Task, n)
		for i := range tasks {
			tasks[i] = drawTask(rt, "t")
		}
		admin := session.Viewer{ID: rapid.StringMatching(`u[0-9]`).Draw(rt, "admin"), Role: session.RoleAdmin}

		got := Visible(admin, tasks)
		if len(got) != len(tasks) {
			rt.Fatalf("admin sees %d of %d tasks", len(got), len(tasks))
		}
		for i := range got {
			if got[i] != tasks[i] {
				rt.Fatalf("task %d reordered", i)
			}
		}
	})
}

func TestPropertyUserSeesOwnOrAssigned(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		task := drawTask(rt, "t")
		viewer := asUser(rapid.StringMatching(`u[0-9]`).Draw(rt, "viewer"))

		want := task.CreatedBy == viewer.ID || task.HasAssignee(viewer.ID)
		if got := len(Visible(viewer, []*Task{task})) == 1; got != want {
			rt.Fatalf("visible = %v, want %v for viewer %s and task %+v", got, want, viewer.ID, task)
		}
	})
}
