// Package guarantee manages time-boxed balance reservations. A guarantee
// reduces the initiator's available balance until the beneficiary claims
// it into a settlement or a party cancels it.
package guarantee

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/internal/balance"
	"github.com/windingtree/simard/internal/currency"
	"github.com/windingtree/simard/internal/settlement"
	"github.com/windingtree/simard/internal/types"
	"github.com/windingtree/simard/pkg/errs"
	"gorm.io/gorm"
)

// Service creates, claims and cancels guarantees.
type Service struct {
	db       *Database
	balances *balance.Service
	locks    *balanceLocks
}

// NewService creates a new guarantee service with the given database
// connection and balance projection.
func NewService(gormDB *gorm.DB, balances *balance.Service) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		balances: balances,
		locks:    newBalanceLocks(),
	}
}

// Create reserves amount from the initiator's balance in favor of the
// beneficiary. The available-balance check is the single gate against
// over-commitment, so the check and the insert run under the
// (initiator, currency) lock.
func (s *Service) Create(initiator, agent, beneficiary string, amount decimal.Decimal, currencyCode string, expiration time.Time) (*types.Guarantee, error) {
	logger := log.With().
		Str("service", "guarantee").
		Str("initiator", initiator).
		Str("beneficiary", beneficiary).
		Str("currency", currencyCode).
		Logger()

	if initiator == "" || beneficiary == "" {
		return nil, errs.Validation("guarantee requires both an initiator and a beneficiary")
	}
	if initiator == beneficiary {
		return nil, errs.Validation("can not create a guarantee for the same organization")
	}

	currencyCode, err := currency.Parse(currencyCode)
	if err != nil {
		return nil, err
	}
	exp, _ := currency.Exponent(currencyCode)
	if _, err := currency.ValidateAmount(amount, exp); err != nil {
		return nil, err
	}
	if !expiration.After(time.Now()) {
		return nil, errs.Validation("guarantee expiration must be in the future")
	}

	lock := s.locks.get(initiator, currencyCode)
	lock.Lock()
	defer lock.Unlock()

	available, err := s.balances.Available(initiator, currencyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to compute available balance: %w", err)
	}
	if available.LessThan(amount) {
		logger.Warn().
			Str("available", available.String()).
			Str("amount", amount.String()).
			Msg("guarantee rejected, insufficient balance")
		return nil, errs.InsufficientBalance("insufficient balance to create guarantee")
	}

	record := &types.Guarantee{
		GuaranteeID: uuid.New().String(),
		Initiator:   initiator,
		Beneficiary: beneficiary,
		Amount:      amount,
		Currency:    currencyCode,
		Agent:       agent,
		Expiration:  expiration,
		Claimed:     false,
	}
	if err := s.db.CreateGuarantee(record); err != nil {
		return nil, fmt.Errorf("failed to store guarantee: %w", err)
	}

	logger.Info().
		Str("guarantee_id", record.GuaranteeID).
		Str("amount", amount.String()).
		Time("expiration", expiration).
		Msg("guarantee created")

	return record, nil
}

// Claim converts a guarantee into a settlement. Only the beneficiary may
// claim, at most once; the claimed transition and the settlement insert
// are one atomic transaction. A zero amount claims the full guaranteed
// amount.
func (s *Service) Claim(claimingOrg, agent, guaranteeID string, amount decimal.Decimal) (*types.Settlement, error) {
	logger := log.With().
		Str("service", "guarantee").
		Str("guarantee_id", guaranteeID).
		Str("claiming_org", claimingOrg).
		Logger()

	record, err := s.GetForParty(claimingOrg, guaranteeID)
	if err != nil {
		return nil, err
	}
	if claimingOrg != record.Beneficiary {
		return nil, errs.Authorization("the guarantee can only be claimed by the receiving party")
	}
	if record.Claimed {
		return nil, errs.AlreadyUsed("the guarantee has already been claimed")
	}

	settlementRecord, err := settlement.NewFromGuarantee(record, agent, amount)
	if err != nil {
		return nil, err
	}

	flipped, err := s.db.ClaimGuarantee(guaranteeID, settlementRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to claim guarantee: %w", err)
	}
	if !flipped {
		// A concurrent claim won the conditional update.
		return nil, errs.AlreadyUsed("the guarantee has already been claimed")
	}

	logger.Info().
		Str("settlement_id", settlementRecord.SettlementID).
		Str("amount", settlementRecord.Amount.String()).
		Msg("guarantee claimed")

	return settlementRecord, nil
}

// Cancel removes a guarantee. The beneficiary may cancel any time before
// the claim; the initiator only once the guarantee has expired. Claimed
// guarantees can not be canceled.
func (s *Service) Cancel(org, guaranteeID string) error {
	record, err := s.GetForParty(org, guaranteeID)
	if err != nil {
		return err
	}
	if record.Claimed {
		return errs.AlreadyUsed("a claimed guarantee can not be canceled")
	}
	if org == record.Initiator && time.Now().Before(record.Expiration) {
		return errs.Expiration("guarantee can not be canceled before it expires")
	}

	deleted, err := s.db.DeleteUnclaimedGuarantee(guaranteeID)
	if err != nil {
		return fmt.Errorf("failed to cancel guarantee: %w", err)
	}
	if !deleted {
		// A claim committed between the read above and the delete.
		return errs.AlreadyUsed("a claimed guarantee can not be canceled")
	}

	log.Info().
		Str("service", "guarantee").
		Str("guarantee_id", guaranteeID).
		Str("canceled_by", org).
		Msg("guarantee canceled")
	return nil
}

// FromStorage retrieves a guarantee by id.
func (s *Service) FromStorage(guaranteeID string) (*types.Guarantee, error) {
	record, err := s.db.GetGuarantee(guaranteeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("guarantee not found")
		}
		return nil, fmt.Errorf("failed to fetch guarantee: %w", err)
	}
	return record, nil
}

// GetForParty retrieves a guarantee and checks the caller is one of its
// parties.
func (s *Service) GetForParty(org, guaranteeID string) (*types.Guarantee, error) {
	record, err := s.FromStorage(guaranteeID)
	if err != nil {
		return nil, err
	}
	if record.Initiator != org && record.Beneficiary != org {
		return nil, errs.Authorization("guarantee can only be retrieved by the parties involved")
	}
	return record, nil
}
