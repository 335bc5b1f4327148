// Package settlement records completed value movements. Settlements are
// append-only: once stored they are the durable evidence of a movement
// and are never mutated or deleted.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/internal/currency"
	"github.com/windingtree/simard/internal/transfer"
	"github.com/windingtree/simard/internal/types"
	"github.com/windingtree/simard/pkg/errs"
	"gorm.io/gorm"
)

// Source tags recorded on settlements.
const (
	SourceGuarantee = "guarantee"
	SourceQuote     = "quote"
	SourceTransfer  = "transfer"
	SourceFaucet    = "faucet"
)

// Service creates and retrieves settlement records.
type Service struct {
	db       *Database
	verifier transfer.Verifier
}

// NewService creates a new settlement service with the given database
// connection and transfer verification provider.
func NewService(gormDB *gorm.DB, verifier transfer.Verifier) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		verifier: verifier,
	}
}

// Create persists an immutable settlement record between two
// organizations.
func (s *Service) Create(initiator, beneficiary string, amount decimal.Decimal, currencyCode, agent, source string) (*types.Settlement, error) {
	if initiator == "" || beneficiary == "" {
		return nil, errs.Validation("settlement requires both an initiator and a beneficiary")
	}

	exp, err := currency.Exponent(currencyCode)
	if err != nil {
		return nil, err
	}
	if _, err := currency.ValidateAmount(amount, exp); err != nil {
		return nil, err
	}

	record := &types.Settlement{
		SettlementID: uuid.New().String(),
		Initiator:    initiator,
		Beneficiary:  beneficiary,
		Amount:       amount,
		Currency:     currencyCode,
		Agent:        agent,
		Source:       source,
	}

	if err := s.db.CreateSettlement(record); err != nil {
		return nil, fmt.Errorf("failed to create settlement record: %w", err)
	}

	log.Info().
		Str("service", "settlement").
		Str("settlement_id", record.SettlementID).
		Str("initiator", initiator).
		Str("beneficiary", beneficiary).
		Str("amount", amount.String()).
		Str("currency", currencyCode).
		Msg("settlement recorded")

	return record, nil
}

// CreateFromQuote persists one leg of a currency swap, tagged with the
// quote that priced it.
func (s *Service) CreateFromQuote(initiator, beneficiary string, amount decimal.Decimal, currencyCode, agent, quoteID string) (*types.Settlement, error) {
	if initiator == "" || beneficiary == "" {
		return nil, errs.Validation("settlement requires both an initiator and a beneficiary")
	}
	exp, err := currency.Exponent(currencyCode)
	if err != nil {
		return nil, err
	}
	if _, err := currency.ValidateAmount(amount, exp); err != nil {
		return nil, err
	}

	record := &types.Settlement{
		SettlementID: uuid.New().String(),
		Initiator:    initiator,
		Beneficiary:  beneficiary,
		Amount:       amount,
		Currency:     currencyCode,
		Agent:        agent,
		Source:       SourceQuote,
		QuoteID:      quoteID,
	}
	if err := s.db.CreateSettlement(record); err != nil {
		return nil, fmt.Errorf("failed to create settlement record: %w", err)
	}
	return record, nil
}

// NewFromGuarantee builds the settlement record converting a guarantee
// claim into a movement. The amount defaults to the full guaranteed
// amount and can never exceed it. The record is not persisted: the
// caller stores it inside the same transaction that flips the claimed
// flag.
func NewFromGuarantee(guarantee *types.Guarantee, agent string, amount decimal.Decimal) (*types.Settlement, error) {
	if amount.IsZero() {
		amount = guarantee.Amount
	} else if amount.GreaterThan(guarantee.Amount) {
		return nil, errs.Validation("can not settle an amount higher than guaranteed")
	} else if !amount.IsPositive() {
		return nil, errs.Validation("amount must be strictly positive, got %s", amount)
	}

	return &types.Settlement{
		SettlementID: uuid.New().String(),
		Initiator:    guarantee.Initiator,
		Beneficiary:  guarantee.Beneficiary,
		Amount:       amount,
		Currency:     guarantee.Currency,
		Agent:        agent,
		Source:       SourceGuarantee,
		GuaranteeID:  guarantee.GuaranteeID,
	}, nil
}

// FromTransfer settles a provider-confirmed deposit. The operation is
// idempotent on the external transfer reference: replaying a confirmed
// transfer returns the settlement already recorded for it.
//
// When a quote is supplied, the verified payment must match the quote's
// source side exactly and the settlement is recorded in the quote's
// target currency.
func (s *Service) FromTransfer(ctx context.Context, org, agent, reference string, quote *types.Quote) (*types.Settlement, error) {
	logger := log.With().
		Str("service", "settlement").
		Str("transfer_reference", reference).
		Logger()

	if reference == "" {
		return nil, errs.Validation("transfer reference is required")
	}

	existing, err := s.db.GetByTransferReference(reference)
	if err != nil {
		return nil, fmt.Errorf("failed to look up transfer reference: %w", err)
	}
	if existing != nil {
		logger.Info().
			Str("settlement_id", existing.SettlementID).
			Msg("transfer already settled, returning existing record")
		return existing, nil
	}

	payment, err := s.verifier.Verify(ctx, reference)
	if err != nil {
		logger.Error().Err(err).Msg("transfer verification failed")
		return nil, err
	}

	amount := payment.Amount
	currencyCode := payment.Currency
	quoteID := ""

	if quote != nil {
		if quote.SourceCurrency != currencyCode {
			return nil, errs.Validation("quote source currency must be %s for this deposit", currencyCode)
		}
		if !quote.SourceAmount.Equal(amount) {
			return nil, errs.Validation("deposit amount does not match quote source amount (%s|%s)", amount, quote.SourceAmount)
		}
		amount = quote.TargetAmount
		currencyCode = quote.TargetCurrency
		quoteID = quote.QuoteID
	}

	record := &types.Settlement{
		SettlementID:      uuid.New().String(),
		Initiator:         payment.Payer,
		Beneficiary:       payment.Payee,
		Amount:            amount,
		Currency:          currencyCode,
		Agent:             agent,
		Source:            SourceTransfer,
		TransferReference: reference,
		QuoteID:           quoteID,
	}
	if record.Initiator == "" {
		record.Initiator = org
	}
	if record.Beneficiary == "" {
		record.Beneficiary = org
	}

	if err := s.db.CreateSettlement(record); err != nil {
		// A concurrent replay may have won the unique-index race.
		if winner, lookupErr := s.db.GetByTransferReference(reference); lookupErr == nil && winner != nil {
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create settlement record: %w", err)
	}

	logger.Info().
		Str("settlement_id", record.SettlementID).
		Str("beneficiary", record.Beneficiary).
		Str("amount", record.Amount.String()).
		Str("currency", record.Currency).
		Msg("transfer deposit settled")

	return record, nil
}

// FromStorage retrieves a settlement by id.
func (s *Service) FromStorage(settlementID string) (*types.Settlement, error) {
	record, err := s.db.GetSettlement(settlementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("settlement not found")
		}
		return nil, fmt.Errorf("failed to fetch settlement: %w", err)
	}
	return record, nil
}

// ListForOrg returns every settlement naming org as a party, newest
// first.
func (s *Service) ListForOrg(org string) ([]types.Settlement, error) {
	return s.db.GetOrgSettlements(org)
}
