package task

import (
	"time"

	"github.com/fkhayef/teamtasks/internal/task/membership"
)

// Status represents a task's workflow state
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusToDo || s == StatusInProgress || s == StatusDone
}

// Priority represents a task's urgency
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Comment is an immutable note appended to a task
type Comment struct {
	ID         string
	Text       string
	AuthorID   string
	AuthorName string // snapshot of the author's name when the comment was written
	CreatedAt  time.Time
}

// Task is the canonical task record
type Task struct {
	ID            string
	Title         string
	Description   string
	Status        Status
	Priority      Priority
	DueAt         *time.Time
	CreatedBy     string
	AssignedBy    string // display name of the creator at creation time
	TaskType      membership.TaskType
	GroupID       *string
	Assignees     []string
	AssigneeNames string
	Comments      []Comment
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// HasAssignee reports whether userID is in the task's assignee set
func (t *Task) HasAssignee(userID string) bool {
	for _, id := range t.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// RawTask is a task as it comes out of storage or a legacy export, before
// normalization. Assignee and TaskMembers only appear in legacy records.
type RawTask struct {
	ID          string
	Title       string
	Description string
	Status      string
	Priority    string
	DueAt       *time.Time
	CreatedBy   string
	AssignedBy  string
	TaskType    string
	GroupID     *string
	Assignee    string
	Assignees   []string
	TaskMembers []string
	Comments    []Comment
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
