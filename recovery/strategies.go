package recovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx context.Context, err error, location Location) Action {
	return ActionFail
}

// SkipStrategy continues past every error without recording it, rebuilding
// broken cross-reference data. It keeps no state, so one value can serve
// any number of renders.
type SkipStrategy struct{}

func NewSkipStrategy() SkipStrategy { return SkipStrategy{} }

func (SkipStrategy) OnError(ctx context.Context, err error, location Location) Action {
	if strings.HasPrefix(location.Component, "xref") {
		return ActionFix
	}
	return ActionSkip
}

// LenientStrategy records every error and asks the caller to continue. Broken
// cross-reference data is rebuilt (ActionFix); everything else is skipped.
type LenientStrategy struct {
	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx context.Context, err error, location Location) Action {
	s.mu.Lock()
	s.errors = append(s.errors, fmt.Errorf("[%s] %s: %w", location.Component, describe(location), err))
	s.mu.Unlock()
	if strings.HasPrefix(location.Component, "xref") {
		return ActionFix
	}
	return ActionSkip
}

// Errors returns the errors recorded so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}

// ParsePolicy maps a configuration value to a strategy: "fail" or "strict"
// selects StrictStrategy, "skip" and "" select SkipStrategy and "lenient"
// selects a fresh LenientStrategy.
func ParsePolicy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "skip":
		return NewSkipStrategy(), nil
	case "lenient":
		return NewLenientStrategy(), nil
	case "fail", "strict":
		return NewStrictStrategy(), nil
	}
	return nil, fmt.Errorf("unknown recovery policy %q", name)
}

func describe(loc Location) string {
	switch {
	case loc.Field != "":
		return "field " + loc.Field
	case loc.ObjectNum > 0:
		return fmt.Sprintf("object %d %d", loc.ObjectNum, loc.ObjectGen)
	default:
		return fmt.Sprintf("offset %d", loc.ByteOffset)
	}
}
