package ledger

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/internal/metrics"
	"github.com/windingtree/simard/internal/settlement"
	"github.com/windingtree/simard/internal/types"
	"github.com/windingtree/simard/pkg/errs"
)

// SwapResult lists the settlements recorded for the executed quotes.
type SwapResult struct {
	SourceSettlements []string
	TargetSettlements []string
}

// Swap exchanges balances between currencies using previously created
// quotes. All quotes are validated first: for every currency with a net
// outflow across the whole batch, org's available balance must cover the
// net amount before any quote is executed. Each quote then settles as a
// debit of the source amount to the platform organization and a credit
// of the target amount back to org.
//
// Execution is per quote with no rollback of already-executed legs: a
// failure partway through leaves earlier quotes used and settled and
// later quotes untouched.
func (o *Orchestrator) Swap(org, agent string, quoteIDs []string) (*SwapResult, error) {
	logger := log.With().
		Str("service", "ledger").
		Str("org_id", org).
		Int("quotes", len(quoteIDs)).
		Logger()

	if len(quoteIDs) == 0 {
		return nil, errs.Validation("no quotes to process")
	}

	// Resolve every quote and accumulate the net flow per currency:
	// source currencies lose the source amount, target currencies gain
	// the target amount.
	quotes := make([]*types.Quote, 0, len(quoteIDs))
	required := make(map[string]decimal.Decimal)
	for _, quoteID := range quoteIDs {
		quoteRecord, err := o.quotes.GetForOrg(org, quoteID)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quoteRecord)

		required[quoteRecord.SourceCurrency] = required[quoteRecord.SourceCurrency].Add(quoteRecord.SourceAmount)
		required[quoteRecord.TargetCurrency] = required[quoteRecord.TargetCurrency].Sub(quoteRecord.TargetAmount)
	}

	// Check every net debit against the available balance before any
	// quote is executed or any settlement is created.
	for currencyCode, net := range required {
		if !net.IsPositive() {
			continue
		}
		available, err := o.balances.Available(org, currencyCode)
		if err != nil {
			return nil, fmt.Errorf("failed to compute available balance: %w", err)
		}
		if available.LessThan(net) {
			logger.Warn().
				Str("currency", currencyCode).
				Str("required", net.String()).
				Str("available", available.String()).
				Msg("swap rejected, insufficient balance")
			return nil, errs.InsufficientBalance("insufficient balance to swap currencies: %s", currencyCode)
		}
	}

	result := &SwapResult{}
	for _, quoteRecord := range quotes {
		// Execute first: a used quote aborts before its settlements.
		if err := o.quotes.Execute(quoteRecord.QuoteID); err != nil {
			return nil, err
		}
		metrics.QuotesExecuted.Inc()

		debit, err := o.swapSettlement(org, o.platformOrg, agent, quoteRecord.SourceAmount, quoteRecord.SourceCurrency, quoteRecord.QuoteID)
		if err != nil {
			return nil, err
		}
		result.SourceSettlements = append(result.SourceSettlements, debit.SettlementID)

		credit, err := o.swapSettlement(o.platformOrg, org, agent, quoteRecord.TargetAmount, quoteRecord.TargetCurrency, quoteRecord.QuoteID)
		if err != nil {
			return nil, err
		}
		result.TargetSettlements = append(result.TargetSettlements, credit.SettlementID)
	}

	logger.Info().
		Int("settlement_pairs", len(result.SourceSettlements)).
		Msg("swap completed")
	return result, nil
}

func (o *Orchestrator) swapSettlement(initiator, beneficiary, agent string, amount decimal.Decimal, currencyCode, quoteID string) (*types.Settlement, error) {
	record, err := o.settlements.CreateFromQuote(initiator, beneficiary, amount, currencyCode, agent, quoteID)
	if err != nil {
		return nil, err
	}
	metrics.SettlementsCreated.WithLabelValues(settlement.SourceQuote).Inc()
	return record, nil
}
