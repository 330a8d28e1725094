// Package session carries the authenticated viewer through request handling.
package session

import "context"

// Role is a user's authorization level
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Viewer is the authenticated user evaluating or mutating data
type Viewer struct {
	ID      string
	Name    string
	Email   string
	Role    Role
	GroupID *string
}

// IsAdmin reports whether the viewer has the admin role
func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}

type contextKey struct{}

// WithViewer returns a copy of ctx carrying v
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// FromContext extracts the viewer set by the auth middleware
func FromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(contextKey{}).(Viewer)
	return v, ok
}
