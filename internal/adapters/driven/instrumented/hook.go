// Package instrumented wraps driven ports so every call passes through a hook.
// Production wiring uses the hooks for metrics and debug logging; tests use
// them to record call order and to pause a caller at a precise point.
package instrumented

import (
	"context"
	"time"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

type Phase int

const (
	Before Phase = iota
	After
)

func (p Phase) String() string {
	if p == Before {
		return "before"
	}
	return "after"
}

// Call describes one invocation of a wrapped port method.
type Call struct {
	Method    string
	ServiceID string
	Phase     Phase
	Err       error
	Duration  time.Duration // set on After only
}

// Hook observes a call. Hooks run on the caller's goroutine and may block.
type Hook func(ctx context.Context, call Call)

// Chain runs hooks in order. Nil hooks are skipped.
func Chain(hooks ...Hook) Hook {
	return func(ctx context.Context, call Call) {
		for _, h := range hooks {
			if h != nil {
				h(ctx, call)
			}
		}
	}
}

type tracer struct {
	hook Hook
}

func (t tracer) trace(ctx context.Context, method, serviceID string) func(err error) {
	if t.hook == nil {
		return func(error) {}
	}
	start := time.Now()
	t.hook(ctx, Call{Method: method, ServiceID: serviceID, Phase: Before})
	return func(err error) {
		t.hook(ctx, Call{
			Method:    method,
			ServiceID: serviceID,
			Phase:     After,
			Err:       err,
			Duration:  time.Since(start),
		})
	}
}

func serviceID(service *domain.Service) string {
	if service == nil {
		return ""
	}
	return service.ID
}
