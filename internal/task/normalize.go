package task

import (
	"errors"
	"strings"

	"github.com/fkhayef/teamtasks/internal/task/membership"
)

// ErrValidation is returned when a raw record cannot be normalized at all
var ErrValidation = errors.New("task record has no id")

// Normalize converts a raw record into a canonical task. names maps user ids
// to display names; ids missing from it are left out of AssigneeNames.
//
// When TaskType is not stored, more than one assignee is read as a group task.
// A custom task saved without its type is therefore reported as group.
func Normalize(raw RawTask, names map[string]string) (*Task, error) {
	if raw.ID == "" {
		return nil, ErrValidation
	}

	assignees := mergeAssignees(raw.Assignees, raw.TaskMembers, raw.Assignee)

	taskType := membership.TaskType(raw.TaskType)
	if taskType == "" {
		if len(assignees) > 1 {
			taskType = membership.TaskTypeGroup
		} else {
			taskType = membership.TaskTypeIndividual
		}
	}

	status := Status(raw.Status)
	if status == "" {
		status = StatusToDo
	}
	priority := Priority(raw.Priority)
	if priority == "" {
		priority = PriorityMedium
	}

	comments := make([]Comment, len(raw.Comments))
	copy(comments, raw.Comments)

	return &Task{
		ID:            raw.ID,
		Title:         raw.Title,
		Description:   raw.Description,
		Status:        status,
		Priority:      priority,
		DueAt:         raw.DueAt,
		CreatedBy:     raw.CreatedBy,
		AssignedBy:    raw.AssignedBy,
		TaskType:      taskType,
		GroupID:       raw.GroupID,
		Assignees:     assignees,
		AssigneeNames: joinNames(assignees, names),
		Comments:      comments,
		CreatedAt:     raw.CreatedAt,
		UpdatedAt:     raw.UpdatedAt,
		CompletedAt:   raw.CompletedAt,
	}, nil
}

// mergeAssignees unions every assignee-bearing field in first-seen order.
// The scalar legacy field comes last, so it only matters when the lists are empty
// or do not already name it.
func mergeAssignees(assignees, taskMembers []string, assignee string) []string {
	out := make([]string, 0, len(assignees)+len(taskMembers)+1)
	seen := make(map[string]struct{}, cap(out))

	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range assignees {
		add(id)
	}
	for _, id := range taskMembers {
		add(id)
	}
	add(assignee)

	return out
}

// joinNames resolves ids to display names, skipping unknown ids
func joinNames(ids []string, names map[string]string) string {
	resolved := make([]string, 0, len(ids))
	for _, id := range ids {
		if name := names[id]; name != "" {
			resolved = append(resolved, name)
		}
	}
	return strings.Join(resolved, ", ")
}
