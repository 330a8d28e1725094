package membership

import "fmt"

// setPolicy is the shared add/remove logic for types with an ad hoc minimum
type setPolicy struct {
	min int
}

func (p setPolicy) MinMembers() int {
	return p.min
}

func (p setPolicy) validate(taskType TaskType, assignees []string) error {
	if len(assignees) < p.min {
		return fmt.Errorf("%w: %s task needs at least %d assignees, got %d", ErrInvariantViolation, taskType, p.min, len(assignees))
	}
	return nil
}

func (p setPolicy) Add(assignees []string, candidateID string) ([]string, error) {
	if candidateID == "" {
		return nil, ErrEmptyMemberID
	}
	out := clone(assignees)
	if contains(out, candidateID) {
		return out, nil
	}
	return append(out, candidateID), nil
}

func (p setPolicy) remove(taskType TaskType, assignees []string, memberID string) ([]string, error) {
	if !contains(assignees, memberID) {
		return clone(assignees), nil
	}
	if len(assignees)-1 < p.min {
		return nil, fmt.Errorf("%w: %s task needs at least %d assignees", ErrInvariantViolation, taskType, p.min)
	}

	out := make([]string, 0, len(assignees)-1)
	for _, id := range assignees {
		if id != memberID {
			out = append(out, id)
		}
	}
	return out, nil
}
