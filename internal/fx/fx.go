// Package fx integrates the external currency-conversion pricing
// provider. The ledger only consumes pricing locks; the actual transfer
// of funds between provider balances is out of scope.
package fx

import (
	"context"

	"github.com/shopspring/decimal"
)

// Pricing is a provider-confirmed conversion lock: both amounts, the
// applied rate and the provider's own reference.
type Pricing struct {
	SourceAmount decimal.Decimal
	TargetAmount decimal.Decimal
	Rate         decimal.Decimal
	Reference    string
}

// Provider prices a conversion between two currencies. Exactly one of
// sourceAmount and targetAmount is non-zero; the provider fills in the
// counterpart.
type Provider interface {
	Price(ctx context.Context, sourceCurrency, targetCurrency string, sourceAmount, targetAmount decimal.Decimal) (*Pricing, error)
}
