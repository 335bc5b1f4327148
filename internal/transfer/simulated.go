package transfer

import (
	"context"
	"sync"

	"github.com/windingtree/simard/pkg/errs"
)

// Simulated is an in-process verification provider for development and
// tests. Payments are registered up front, keyed by transfer reference.
type Simulated struct {
	mu       sync.RWMutex
	payments map[string]Payment

	// Fail, when set, makes every call return an upstream error.
	Fail bool
}

// NewSimulated creates an empty simulated verifier.
func NewSimulated() *Simulated {
	return &Simulated{payments: make(map[string]Payment)}
}

// Register installs a confirmed payment for a transfer reference.
func (s *Simulated) Register(reference string, payment Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[reference] = payment
}

// Verify resolves a registered reference.
func (s *Simulated) Verify(_ context.Context, reference string) (*Payment, error) {
	if s.Fail {
		return nil, errs.Upstream("transfer verification provider unavailable", nil)
	}

	s.mu.RLock()
	payment, ok := s.payments[reference]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.Validation("transfer reference not found: %s", reference)
	}
	return &payment, nil
}
