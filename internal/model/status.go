package model

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusNew      Status = "new"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ErrInvalidTransition is returned when a status change is not allowed by a Lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// Lifecycle describes a review workflow: a record starts in Initial and may move
// once to one of Terminal. Terminal states are final.
type Lifecycle struct {
	Name     string
	Initial  Status
	Terminal []Status
}

var (
	WithdrawalLifecycle = Lifecycle{
		Name:     "withdrawal",
		Initial:  StatusNew,
		Terminal: []Status{StatusApproved, StatusRejected},
	}
	SubmissionLifecycle = Lifecycle{
		Name:     "task submission",
		Initial:  StatusPending,
		Terminal: []Status{StatusApproved, StatusRejected},
	}
)

func (l Lifecycle) IsTerminal(s Status) bool {
	for _, t := range l.Terminal {
		if t == s {
			return true
		}
	}
	return false
}

// Validate is the single transition check shared by both workflows.
func (l Lifecycle) Validate(from, to Status) error {
	if from == l.Initial && l.IsTerminal(to) {
		return nil
	}
	return &TransitionError{Workflow: l.Name, From: from, To: to}
}

// TransitionError carries the rejected transition; it matches ErrInvalidTransition.
type TransitionError struct {
	Workflow string
	From     Status
	To       Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %q to %q", e.Workflow, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
