package membership

// CustomPolicy governs tasks with an ad hoc assignee set not tied to a group
type CustomPolicy struct {
	setPolicy
}

// Type returns the task type identifier
func (p *CustomPolicy) Type() TaskType {
	return TaskTypeCustom
}

// Validate requires at least one assignee
func (p *CustomPolicy) Validate(assignees []string) error {
	return p.validate(TaskTypeCustom, assignees)
}

// Remove drops memberID unless that would leave the task unassigned
func (p *CustomPolicy) Remove(assignees []string, memberID string) ([]string, error) {
	return p.remove(TaskTypeCustom, assignees, memberID)
}
