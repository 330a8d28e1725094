package task

import (
	"time"

	"github.com/fkhayef/teamtasks/internal/task/membership"
)

// CreateTaskRequest represents the request to create a new task.
// For group tasks the assignees are taken from the group's members.
type CreateTaskRequest struct {
	Title       string              `json:"title" validate:"required,min=1,max=200"`
	Description string              `json:"desc"`
	Status      Status              `json:"status"`
	Priority    Priority            `json:"priority"`
	DueAt       *time.Time          `json:"due_at,omitempty"`
	TaskType    membership.TaskType `json:"task_type"`
	GroupID     *string             `json:"group_id,omitempty"`
	Assignees   []string            `json:"assignees"`
}

// UpdateTaskRequest represents a partial update. Assignees replaces the whole set.
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"desc,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Assignees   *[]string  `json:"assignees,omitempty"`
}

// onlyStatus reports whether the request touches nothing but the status
func (r *UpdateTaskRequest) onlyStatus() bool {
	return r.Title == nil && r.Description == nil && r.Priority == nil &&
		r.DueAt == nil && r.Assignees == nil
}

// AddCommentRequest represents the request to comment on a task
type AddCommentRequest struct {
	Text string `json:"text" validate:"required"`
}

// AddMemberRequest represents the request to add a participant to a task
type AddMemberRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// TaskResponse represents the response for a task
type TaskResponse struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"desc"`
	Status        Status             `json:"status"`
	Priority      Priority           `json:"priority"`
	DueAt         *string            `json:"due_at,omitempty"`
	CreatedBy     string             `json:"created_by"`
	AssignedBy    string             `json:"assigned_by"`
	TaskType      string             `json:"task_type"`
	GroupID       *string            `json:"group_id,omitempty"`
	Assignees     []string           `json:"assignees"`
	AssigneeNames string             `json:"assignee_names"`
	Comments      []*CommentResponse `json:"comments"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at"`
	CompletedAt   *string            `json:"completed_at,omitempty"`
}

// CommentResponse represents a comment in a task response
type CommentResponse struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	CreatedAt  string `json:"created_at"`
}

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

// ToResponse converts a Task model to a TaskResponse DTO
func (t *Task) ToResponse() *TaskResponse {
	comments := make([]*CommentResponse, len(t.Comments))
	for i := range t.Comments {
		comments[i] = t.Comments[i].ToResponse()
	}

	assignees := t.Assignees
	if assignees == nil {
		assignees = []string{}
	}

	return &TaskResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		Priority:      t.Priority,
		DueAt:         formatTime(t.DueAt),
		CreatedBy:     t.CreatedBy,
		AssignedBy:    t.AssignedBy,
		TaskType:      string(t.TaskType),
		GroupID:       t.GroupID,
		Assignees:     assignees,
		AssigneeNames: t.AssigneeNames,
		Comments:      comments,
		CreatedAt:     t.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:     t.UpdatedAt.UTC().Format(timeLayout),
		CompletedAt:   formatTime(t.CompletedAt),
	}
}

// ToResponse converts a Comment to a CommentResponse DTO
func (c *Comment) ToResponse() *CommentResponse {
	return &CommentResponse{
		ID:         c.ID,
		Text:       c.Text,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		CreatedAt:  c.CreatedAt.UTC().Format(timeLayout),
	}
}
