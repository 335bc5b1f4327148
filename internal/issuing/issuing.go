// Package issuing integrates the external virtual-card issuing provider.
// Cards are ephemeral credentials bound one-to-one to a guarantee id;
// the ledger never persists them.
package issuing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Card holds issued card credentials.
type Card struct {
	AccountNumber   string
	CVV             string
	ExpirationMonth string
	ExpirationYear  string
	Brand           string
	CardType        string
	Amount          decimal.Decimal
	Currency        string
	GuaranteeID     string
}

// Provider issues and revokes single-use virtual cards. The guarantee id
// is the sole correlation key between the ledger and the provider.
type Provider interface {
	Issue(ctx context.Context, currency string, amount decimal.Decimal, expiration time.Time, guaranteeID string) (*Card, error)
	Revoke(ctx context.Context, guaranteeID string) error
}
