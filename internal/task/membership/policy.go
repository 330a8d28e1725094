package membership

import (
	"errors"
	"fmt"
)

// TaskType defines how a task's assignee set is formed
type TaskType string

const (
	TaskTypeIndividual TaskType = "individual"
	TaskTypeGroup      TaskType = "group"
	TaskTypeCustom     TaskType = "custom"
)

// Valid reports whether t is one of the known task types
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeIndividual, TaskTypeGroup, TaskTypeCustom:
		return true
	}
	return false
}

// Policy is the interface that all membership policies must implement
type Policy interface {
	// Type returns the task type this policy governs
	Type() TaskType

	// MinMembers is the smallest assignee set the task type allows
	MinMembers() int

	// Validate checks a complete assignee set, e.g. on task creation
	Validate(assignees []string) error

	// Add returns assignees with candidateID appended. Adding a present id is a no-op.
	Add(assignees []string, candidateID string) ([]string, error)

	// Remove returns assignees without memberID. Removing an absent id is a no-op.
	Remove(assignees []string, memberID string) ([]string, error)
}

// Factory creates membership policies based on the task type
type Factory struct{}

// NewFactory creates a new factory instance
func NewFactory() *Factory {
	return &Factory{}
}

// Create returns the policy for the given task type
func (f *Factory) Create(taskType TaskType) (Policy, error) {
	switch taskType {
	case TaskTypeIndividual:
		return &IndividualPolicy{}, nil
	case TaskTypeGroup:
		return &GroupPolicy{setPolicy{min: 2}}, nil
	case TaskTypeCustom:
		return &CustomPolicy{setPolicy{min: 1}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
}

var (
	ErrInvalidOperation   = errors.New("membership cannot be edited on an individual task")
	ErrInvariantViolation = errors.New("change would leave the task below its minimum number of assignees")
	ErrUnknownTaskType    = errors.New("unknown task type")
	ErrEmptyMemberID      = errors.New("member id is required")
)

// contains reports whether id is in ids
func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// clone copies ids so callers never share backing arrays
func clone(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
