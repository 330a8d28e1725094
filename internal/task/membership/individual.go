package membership

import "fmt"

// IndividualPolicy governs tasks with exactly one assignee. Membership is fixed.
type IndividualPolicy struct{}

// Type returns the task type identifier
func (p *IndividualPolicy) Type() TaskType {
	return TaskTypeIndividual
}

// MinMembers returns the required assignee count
func (p *IndividualPolicy) MinMembers() int {
	return 1
}

// Validate requires exactly one assignee
func (p *IndividualPolicy) Validate(assignees []string) error {
	if len(assignees) != 1 {
		return fmt.Errorf("%w: individual task needs exactly 1 assignee, got %d", ErrInvariantViolation, len(assignees))
	}
	return nil
}

// Add always fails; reassigning an individual task goes through a task update
func (p *IndividualPolicy) Add(assignees []string, candidateID string) ([]string, error) {
	return nil, ErrInvalidOperation
}

// Remove always fails
func (p *IndividualPolicy) Remove(assignees []string, memberID string) ([]string, error) {
	return nil, ErrInvalidOperation
}
