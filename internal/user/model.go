package user

import (
	"time"

	"github.com/fkhayef/teamtasks/internal/session"
)

// Status tracks whether a user has completed registration
type Status string

const (
	StatusActive  Status = "active"
	StatusInvited Status = "invited"
)

// User represents a user in the system
type User struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Role      session.Role `json:"role"`
	Status    Status       `json:"status"`
	GroupID   *string      `json:"group_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Viewer converts the user to a session viewer
func (u *User) Viewer() session.Viewer {
	return session.Viewer{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role,
		GroupID: u.GroupID,
	}
}
