package user

import (
	"net/url"

	"github.com/fkhayef/teamtasks/internal/session"
)

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	ID    string       `json:"id,omitempty"`
	Name  string       `json:"name" validate:"required,min=1,max=100"`
	Email string       `json:"email" validate:"required,email"`
	Role  session.Role `json:"role"`
}

// UpdateUserRequest represents the request body for updating a user
type UpdateUserRequest struct {
	Name *string       `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Role *session.Role `json:"role,omitempty"`
}

// CompleteRegistrationRequest carries the uid and email of a registration
// link, plus an optional new display name
type CompleteRegistrationRequest struct {
	UserID string  `json:"uid" validate:"required"`
	Email  string  `json:"email" validate:"required,email"`
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

// SetGroupRequest assigns a user to a group; a null group_id clears it
type SetGroupRequest struct {
	GroupID *string `json:"group_id"`
}

// UserResponse represents the response for a single user
type UserResponse struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Email            string       `json:"email"`
	Role             session.Role `json:"role"`
	Status           Status       `json:"status"`
	GroupID          *string      `json:"group_id,omitempty"`
	CreatedAt        string       `json:"created_at"`
	RegistrationLink string       `json:"registration_link,omitempty"`
}

// ToResponse converts a User model to a UserResponse DTO
func (u *User) ToResponse() *UserResponse {
	resp := &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		GroupID:   u.GroupID,
		CreatedAt: u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if u.Status == StatusInvited {
		resp.RegistrationLink = "/register?uid=" + url.QueryEscape(u.ID) + "&email=" + url.QueryEscape(u.Email)
	}
	return resp
}
