package domain

import "fmt"

// OperationType identifies the lifecycle action an operation performs
type OperationType string

const (
	OperationTypeProvision   OperationType = "provision"
	OperationTypeUpdate      OperationType = "update"
	OperationTypeDeprovision OperationType = "deprovision"
)

// OperationState represents the progress of an operation
type OperationState string

const (
	OperationStateInProgress OperationState = "in_progress"
	OperationStateSucceeded  OperationState = "succeeded"
	OperationStateFailed     OperationState = "failed"
)

// Valid reports whether s is one of the known operation states.
func (s OperationState) Valid() bool {
	switch s {
	case OperationStateInProgress, OperationStateSucceeded, OperationStateFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further progress is expected.
func (s OperationState) IsTerminal() bool {
	return s == OperationStateSucceeded || s == OperationStateFailed
}

// Operation describes one lifecycle action on a service.
// It is a value: two operations are the same only if every field matches.
type Operation struct {
	ID      string         `json:"id,omitempty"`
	Type    OperationType  `json:"type"`
	State   OperationState `json:"state"`
	Message string         `json:"message,omitempty"`
}

// NewOperation starts a new in-progress operation of the given type.
func NewOperation(opType OperationType) Operation {
	return Operation{
		Type:  opType,
		State: OperationStateInProgress,
	}
}

// IsInProgress returns true if the operation has not reached a terminal state
func (o Operation) IsInProgress() bool {
	return o.State == OperationStateInProgress
}

// IsSuccessfulDeprovision returns true for the only combination that removes a service record.
func (o Operation) IsSuccessfulDeprovision() bool {
	return o.Type == OperationTypeDeprovision && o.State == OperationStateSucceeded
}

// Apply copies the state and message of a broker result onto the operation.
func (o *Operation) Apply(result OperationResult) {
	o.State = result.State
	o.Message = result.Message
}

// Equal compares two operations field by field.
func (o Operation) Equal(other Operation) bool {
	return o == other
}

func (o Operation) String() string {
	if o.Message == "" {
		return fmt.Sprintf("%s/%s", o.Type, o.State)
	}
	return fmt.Sprintf("%s/%s (%s)", o.Type, o.State, o.Message)
}

// SameOperation compares two optional operations. Two nil operations are equal.
func SameOperation(a, b *Operation) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// OperationResult is what the broker reports for a started or polled operation
type OperationResult struct {
	State   OperationState `json:"state"`
	Message string         `json:"message,omitempty"`
}

// Validate rejects results carrying a state outside the known set.
func (r OperationResult) Validate() error {
	if !r.State.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, r.State)
	}
	return nil
}
