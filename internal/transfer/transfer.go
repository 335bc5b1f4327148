// Package transfer integrates the external funds-transfer verification
// provider, which confirms on-chain or bank deposits from an opaque
// transfer reference. Each reference is consumed at most once by the
// ledger; replays resolve to the existing settlement.
package transfer

import (
	"context"

	"github.com/shopspring/decimal"
)

// Payment is a provider-confirmed value movement.
type Payment struct {
	Payer    string
	Payee    string
	Amount   decimal.Decimal
	Currency string
}

// Verifier resolves an external transfer reference to its confirmed
// payment details.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*Payment, error)
}
