package issuing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/pkg/errs"
)

// DefaultCardDetails mirrors the provider sandbox card.
// Format: accountNumber|expMonth|expYear|cvv|brand|cardType
const DefaultCardDetails = "4444333322221111|10|2025|737|visa|debit"

// Simulated is an in-process issuing provider for development and tests.
type Simulated struct {
	details string

	mu      sync.Mutex
	issued  map[string]bool
	revoked map[string]bool

	// FailIssue, when set, makes Issue return an upstream error.
	FailIssue bool
	// FailRevoke, when set, makes Revoke return an upstream error.
	FailRevoke bool
}

// NewSimulated creates a simulated issuing provider returning the given
// card details, or the sandbox defaults when empty.
func NewSimulated(details string) *Simulated {
	if details == "" {
		details = DefaultCardDetails
	}
	return &Simulated{
		details: details,
		issued:  make(map[string]bool),
		revoked: make(map[string]bool),
	}
}

// Issue returns the sandbox card bound to the guarantee id.
func (s *Simulated) Issue(_ context.Context, currency string, amount decimal.Decimal, _ time.Time, guaranteeID string) (*Card, error) {
	if s.FailIssue {
		return nil, errs.Upstream("card issuing provider unavailable", nil)
	}

	parts := strings.Split(s.details, "|")
	if len(parts) != 6 {
		return nil, errs.Upstream("malformed issuing provider card details", nil)
	}

	s.mu.Lock()
	s.issued[guaranteeID] = true
	s.mu.Unlock()

	log.Debug().
		Str("provider", "issuing").
		Str("guarantee_id", guaranteeID).
		Msg("issued simulated card")

	return &Card{
		AccountNumber:   parts[0],
		ExpirationMonth: parts[1],
		ExpirationYear:  parts[2],
		CVV:             parts[3],
		Brand:           parts[4],
		CardType:        parts[5],
		Amount:          amount,
		Currency:        currency,
		GuaranteeID:     guaranteeID,
	}, nil
}

// Revoke records the revocation for the guarantee id.
func (s *Simulated) Revoke(_ context.Context, guaranteeID string) error {
	if s.FailRevoke {
		return errs.Upstream("card issuing provider unavailable", nil)
	}

	s.mu.Lock()
	s.revoked[guaranteeID] = true
	s.mu.Unlock()
	return nil
}

// Revoked reports whether a revocation was recorded for the guarantee id.
func (s *Simulated) Revoked(guaranteeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[guaranteeID]
}
