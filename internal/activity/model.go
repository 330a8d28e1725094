package activity

import "time"

// Action identifies what an activity entry records
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionComment      Action = "comment"
	ActionCreateUser   Action = "create-user"
	ActionDeleteUser   Action = "delete-user"
	ActionRegisterUser Action = "register-user"
	ActionCreateGroup  Action = "create-group"
	ActionUpdateGroup  Action = "update-group"
	ActionDeleteGroup  Action = "delete-group"
	ActionAddMember    Action = "add-member"
	ActionRemoveMember Action = "remove-member"
	ActionSetUserGroup Action = "set-user-group"
)

// Entry is one append-only audit log record. SubjectID is a task, user or
// group id depending on Action; Meta is a snapshot of the relevant fields.
type Entry struct {
	ID        string         `json:"id"`
	Action    Action         `json:"action"`
	ActorID   string         `json:"actor_id"`
	SubjectID string         `json:"subject_id"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}

// EntryResponse represents an activity entry in API responses
type EntryResponse struct {
	ID        string         `json:"id"`
	Action    Action         `json:"action"`
	ActorID   string         `json:"actor_id"`
	SubjectID string         `json:"subject_id"`
	Meta      map[string]any `json:"meta"`
	CreatedAt string         `json:"created_at"`
}

// ToResponse converts an Entry to an EntryResponse DTO
func (e *Entry) ToResponse() *EntryResponse {
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	return &EntryResponse{
		ID:        e.ID,
		Action:    e.Action,
		ActorID:   e.ActorID,
		SubjectID: e.SubjectID,
		Meta:      meta,
		CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
