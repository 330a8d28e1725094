package task

import "github.com/fkhayef/teamtasks/internal/session"

// Visible returns the tasks viewer may see, in their original order.
// Admins see everything; other users see tasks they are assigned to or created.
func Visible(viewer session.Viewer, tasks []*Task) []*Task {
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if CanView(viewer, t) {
			out = append(out, t)
		}
	}
	return out
}

// CanView reports whether viewer may see t
func CanView(viewer session.Viewer, t *Task) bool {
	if viewer.IsAdmin() {
		return true
	}
	if viewer.ID == "" {
		return false
	}
	return t.CreatedBy == viewer.ID || t.HasAssignee(viewer.ID)
}

// CanManage reports whether viewer may edit every field of t, delete it,
// and change its membership
func CanManage(viewer session.Viewer, t *Task) bool {
	if viewer.IsAdmin() {
		return true
	}
	return viewer.ID != "" && t.CreatedBy == viewer.ID
}
