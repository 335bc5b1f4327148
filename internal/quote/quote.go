// Package quote manages single-use currency-conversion pricing locks.
// A quote is created with exactly one caller-supplied amount, priced by
// the external FX provider, and consumed at most once. Executed quotes
// are kept as the audit trail of the conversion.
package quote

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/internal/currency"
	"github.com/windingtree/simard/internal/fx"
	"github.com/windingtree/simard/internal/types"
	"github.com/windingtree/simard/pkg/errs"
	"gorm.io/gorm"
)

// Service creates, prices and executes quotes.
type Service struct {
	db       *Database
	provider fx.Provider
}

// NewService creates a new quote service with the given database
// connection and FX pricing provider.
func NewService(gormDB *gorm.DB, provider fx.Provider) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		provider: provider,
	}
}

// Create builds a quote from exactly one caller-supplied amount, obtains
// the counterpart amount and rate from the pricing provider, and
// persists the priced quote. Unpriced quotes are never persisted.
func (s *Service) Create(ctx context.Context, org, agent, sourceCurrency, targetCurrency string, sourceAmount, targetAmount decimal.Decimal) (*types.Quote, error) {
	logger := log.With().
		Str("service", "quote").
		Str("org_id", org).
		Str("source_currency", sourceCurrency).
		Str("target_currency", targetCurrency).
		Logger()

	sourceCurrency, err := currency.Parse(sourceCurrency)
	if err != nil {
		return nil, err
	}
	targetCurrency, err = currency.Parse(targetCurrency)
	if err != nil {
		return nil, err
	}

	if sourceAmount.IsZero() && targetAmount.IsZero() {
		return nil, errs.Validation("quote requires a source or target amount")
	}
	if !sourceAmount.IsZero() && !targetAmount.IsZero() {
		return nil, errs.Validation("source and target amounts can not be set simultaneously")
	}
	if !sourceAmount.IsZero() {
		exp, _ := currency.Exponent(sourceCurrency)
		if _, err := currency.ValidateAmount(sourceAmount, exp); err != nil {
			return nil, err
		}
	}
	if !targetAmount.IsZero() {
		exp, _ := currency.Exponent(targetCurrency)
		if _, err := currency.ValidateAmount(targetAmount, exp); err != nil {
			return nil, err
		}
	}

	record := &types.Quote{
		QuoteID:        uuid.New().String(),
		OrgID:          org,
		Agent:          agent,
		SourceCurrency: sourceCurrency,
		TargetCurrency: targetCurrency,
		SourceAmount:   sourceAmount,
		TargetAmount:   targetAmount,
	}

	if err := s.price(ctx, record); err != nil {
		logger.Error().Err(err).Msg("quote pricing failed")
		return nil, err
	}

	if err := s.db.CreateQuote(record); err != nil {
		return nil, fmt.Errorf("failed to store quote: %w", err)
	}

	logger.Info().
		Str("quote_id", record.QuoteID).
		Str("source_amount", record.SourceAmount.String()).
		Str("target_amount", record.TargetAmount.String()).
		Str("rate", record.Rate.String()).
		Msg("quote created")

	return record, nil
}

// price fills in the counterpart amount, the rate and the provider
// reference. A quote is priced at most once; the amounts become
// immutable afterwards.
func (s *Service) price(ctx context.Context, record *types.Quote) error {
	if record.Priced() {
		return errs.AlreadyUsed("quote has already been priced")
	}

	pricing, err := s.provider.Price(ctx, record.SourceCurrency, record.TargetCurrency, record.SourceAmount, record.TargetAmount)
	if err != nil {
		return err
	}
	if pricing.Reference == "" || pricing.Rate.IsZero() {
		return errs.Upstream("pricing provider returned an incomplete quote", nil)
	}

	record.SourceAmount = pricing.SourceAmount
	record.TargetAmount = pricing.TargetAmount
	record.Rate = pricing.Rate
	record.ProviderReference = pricing.Reference
	return nil
}

// Execute marks a quote as used. The transition is terminal: a used
// quote can never be executed again.
func (s *Service) Execute(quoteID string) error {
	record, err := s.FromStorage(quoteID)
	if err != nil {
		return err
	}
	if !record.Priced() {
		return errs.Validation("quote has not been priced")
	}
	if record.IsUsed {
		return errs.AlreadyUsed("quote has already been used for an exchange")
	}

	flipped, err := s.db.MarkUsed(quoteID)
	if err != nil {
		return fmt.Errorf("failed to mark quote used: %w", err)
	}
	if !flipped {
		return errs.AlreadyUsed("quote has already been used for an exchange")
	}

	log.Info().
		Str("service", "quote").
		Str("quote_id", quoteID).
		Msg("quote executed")
	return nil
}

// FromStorage retrieves a quote by id.
func (s *Service) FromStorage(quoteID string) (*types.Quote, error) {
	record, err := s.db.GetQuote(quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("quote not found")
		}
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}
	return record, nil
}

// GetForOrg retrieves a quote and checks its ownership.
func (s *Service) GetForOrg(org, quoteID string) (*types.Quote, error) {
	record, err := s.FromStorage(quoteID)
	if err != nil {
		return nil, err
	}
	if record.OrgID != org {
		return nil, errs.Authorization("quote is owned by another organization")
	}
	return record, nil
}
