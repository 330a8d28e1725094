package membership

// GroupPolicy governs tasks assigned to the members of a named group
type GroupPolicy struct {
	setPolicy
}

// Type returns the task type identifier
func (p *GroupPolicy) Type() TaskType {
	return TaskTypeGroup
}

// Validate requires at least two assignees
func (p *GroupPolicy) Validate(assignees []string) error {
	return p.validate(TaskTypeGroup, assignees)
}

// Remove drops memberID unless that would leave fewer than two assignees
func (p *GroupPolicy) Remove(assignees []string, memberID string) ([]string, error) {
	return p.remove(TaskTypeGroup, assignees, memberID)
}
