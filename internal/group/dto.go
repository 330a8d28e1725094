package group

// CreateGroupRequest represents the request to create a new group
type CreateGroupRequest struct {
	Name    string   `json:"name" validate:"required,min=1,max=100"`
	Members []string `json:"members" validate:"min=2"`
}

// UpdateGroupRequest represents the request to update a group. Members
// replaces the whole member list.
type UpdateGroupRequest struct {
	Name    *string   `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Members *[]string `json:"members,omitempty"`
}

// AddMemberRequest represents the request to add a member to a group
type AddMemberRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// GroupResponse represents the response for a group
type GroupResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedAt string   `json:"created_at"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse() *GroupResponse {
	members := g.Members
	if members == nil {
		members = []string{}
	}
	return &GroupResponse{
		ID:        g.ID,
		Name:      g.Name,
		Members:   members,
		CreatedAt: g.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
