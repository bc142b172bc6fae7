package tracing

import (
	"sync"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/types"
)

// StrategyKind selects the rules a trace follows.
type StrategyKind = ir.Strategy

// Context is one active tracing frame. A strategy supplies the
// implementation; the stack only orders frames.
type Context interface {
	// Strategy reports which rules this frame enforces.
	Strategy() StrategyKind

	// Placeholder materializes the symbolic parameter of the traced callable.
	Placeholder(name string, t types.Type) (ir.BuildingBlock, error)

	// Ingest accepts an existing node into the frame, enforcing strategy rules.
	Ingest(b ir.BuildingBlock) (ir.BuildingBlock, error)

	// Lift turns a host value returned by the callable into a node.
	Lift(v any) (ir.BuildingBlock, error)
}

// Stack orders the active tracing frames of one trace.
//
// A top-level trace owns its own Stack and nested traces push onto it, so a
// Stack is confined to the goroutine running that trace. Methods are also
// mutex-guarded.
type Stack struct {
	mu     sync.Mutex
	frames []Context
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Push makes ctx the current frame.
func (s *Stack) Push(ctx Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, ctx)
}

// Pop removes and returns the current frame.
func (s *Stack) Pop() (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, NewNoActiveContextError("pop")
	}
	top := s.frames[len(s.frames)-1]
	s.frames[len(s.frames)-1] = nil
	s.frames = s.frames[:len(s.frames)-1]
	return top, nil
}

// Current returns the innermost frame.
func (s *Stack) Current() (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, NewNoActiveContextError("current")
	}
	return s.frames[len(s.frames)-1], nil
}

// Depth returns the number of active frames.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Scoped runs fn with ctx pushed and pops it when fn returns, errors or
// panics. A panic continues to propagate after the pop.
func (s *Stack) Scoped(ctx Context, fn func(Context) error) error {
	s.Push(ctx)
	defer func() {
		_, _ = s.Pop()
	}()
	return fn(ctx)
}
