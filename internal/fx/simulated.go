package fx

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/internal/currency"
	"github.com/windingtree/simard/pkg/errs"
)

// Simulated is an in-process pricing provider used in development and
// tests. Rates are fixed per currency pair; unknown pairs are rejected
// the way the real provider rejects unsupported routes.
type Simulated struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal

	// Fail, when set, makes every call return an upstream error.
	Fail bool
}

// NewSimulated creates a simulated provider with the given pair rates,
// keyed as "EUR/USD".
func NewSimulated(rates map[string]decimal.Decimal) *Simulated {
	if rates == nil {
		rates = make(map[string]decimal.Decimal)
	}
	return &Simulated{rates: rates}
}

// SetRate registers or replaces the rate for a currency pair.
func (s *Simulated) SetRate(sourceCurrency, targetCurrency string, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[sourceCurrency+"/"+targetCurrency] = rate
}

// Price fills in the counterpart amount at the registered pair rate.
func (s *Simulated) Price(_ context.Context, sourceCurrency, targetCurrency string, sourceAmount, targetAmount decimal.Decimal) (*Pricing, error) {
	if s.Fail {
		return nil, errs.Upstream("pricing provider unavailable", nil)
	}

	s.mu.RLock()
	rate, ok := s.rates[sourceCurrency+"/"+targetCurrency]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.Upstream(fmt.Sprintf("unsupported currency route %s/%s", sourceCurrency, targetCurrency), nil)
	}

	pricing := &Pricing{
		Rate:      rate,
		Reference: "sim-" + uuid.New().String(),
	}
	if !sourceAmount.IsZero() {
		pricing.SourceAmount = sourceAmount
		pricing.TargetAmount = roundFor(sourceAmount.Div(rate), targetCurrency)
	} else {
		pricing.TargetAmount = targetAmount
		pricing.SourceAmount = roundFor(targetAmount.Mul(rate), sourceCurrency)
	}
	return pricing, nil
}

// roundFor rounds a computed counterpart to the currency's exponent, so
// zero- and three-decimal currencies get valid amounts too.
func roundFor(amount decimal.Decimal, code string) decimal.Decimal {
	exp, err := currency.Exponent(code)
	if err != nil {
		exp = 2
	}
	return amount.Round(exp)
}
