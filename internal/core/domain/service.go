package domain

import (
	"maps"
	"time"
)

// Service is an externally provisioned resource and its lifecycle history.
// ID is empty until the service has been stored.
type Service struct {
	ID            string            `json:"id,omitempty"`
	Name          string            `json:"name,omitempty"`
	PlanID        string            `json:"plan_id,omitempty"`
	Parameters    map[string]string `json:"parameters,omitempty"`
	LastOperation *Operation        `json:"last_operation,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Service) Clone() *Service {
	if s == nil {
		return nil
	}
	c := *s
	if s.Parameters != nil {
		c.Parameters = maps.Clone(s.Parameters)
	}
	if s.LastOperation != nil {
		op := *s.LastOperation
		c.LastOperation = &op
	}
	return &c
}

// HasOperationInProgress returns true if the current operation is still running
func (s *Service) HasOperationInProgress() bool {
	return s.LastOperation != nil && s.LastOperation.IsInProgress()
}

// ProvisionRequest carries the caller supplied fields of a new service
type ProvisionRequest struct {
	Name       string            `json:"name"`
	PlanID     string            `json:"plan_id"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// NewService builds an unsaved service from a provision request.
func NewService(req ProvisionRequest) *Service {
	return &Service{
		Name:       req.Name,
		PlanID:     req.PlanID,
		Parameters: maps.Clone(req.Parameters),
	}
}
