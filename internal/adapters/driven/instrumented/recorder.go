package instrumented

import (
	"context"
	"fmt"
	"sync"
)

// Recorder keeps an ordered log of calls. Its Hook method can be chained
// with other hooks.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Hook(_ context.Context, call Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Trace renders completed calls as "Method:serviceID[:error]" strings.
func (r *Recorder) Trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		if c.Phase != After {
			continue
		}
		entry := c.Method
		if c.ServiceID != "" {
			entry += ":" + c.ServiceID
		}
		if c.Err != nil {
			entry += fmt.Sprintf(":%v", c.Err)
		}
		out = append(out, entry)
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Breakpoint pauses the first caller that reaches a matching call until
// Release is invoked. Later matching calls pass straight through.
type Breakpoint struct {
	match   func(Call) bool
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func NewBreakpoint(match func(Call) bool) *Breakpoint {
	return &Breakpoint{
		match:   match,
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
}

// At matches a method and phase.
func At(method string, phase Phase) func(Call) bool {
	return func(c Call) bool {
		return c.Method == method && c.Phase == phase
	}
}

func (b *Breakpoint) Hook(ctx context.Context, call Call) {
	if !b.match(call) {
		return
	}
	hit := false
	b.once.Do(func() { hit = true })
	if !hit {
		return
	}
	close(b.reached)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
}

// Reached is closed when a caller is paused at the breakpoint.
func (b *Breakpoint) Reached() <-chan struct{} {
	return b.reached
}

func (b *Breakpoint) Release() {
	close(b.release)
}
