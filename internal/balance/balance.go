// Package balance computes per-organization, per-currency balance
// projections. Balances are never stored: every figure is derived on
// demand from persisted settlements and guarantees through grouped-sum
// aggregation.
package balance

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service exposes read-only balance queries. It has no side effects.
type Service struct {
	db *Database
}

// NewService creates a new balance service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Snapshot is the full projection for one (organization, currency) pair.
type Snapshot struct {
	OrgID     string
	Currency  string
	Total     decimal.Decimal
	Reserved  decimal.Decimal
	Claimable decimal.Decimal
	Available decimal.Decimal
}

// Credit returns the total amount settled towards the organization.
func (s *Service) Credit(org, currency string) (decimal.Decimal, error) {
	return s.db.SumSettlements(org, currency, RoleBeneficiary)
}

// Debit returns the total amount settled from the organization.
func (s *Service) Debit(org, currency string) (decimal.Decimal, error) {
	return s.db.SumSettlements(org, currency, RoleInitiator)
}

// Total returns credit minus debit.
func (s *Service) Total(org, currency string) (decimal.Decimal, error) {
	credit, err := s.Credit(org, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate credits: %w", err)
	}
	debit, err := s.Debit(org, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate debits: %w", err)
	}
	return credit.Sub(debit), nil
}

// Reserved returns the sum of the organization's own unclaimed guarantees.
func (s *Service) Reserved(org, currency string) (decimal.Decimal, error) {
	return s.db.SumUnclaimedGuarantees(org, currency, RoleInitiator)
}

// Claimable returns the sum of unclaimed guarantees in the organization's
// favor.
func (s *Service) Claimable(org, currency string) (decimal.Decimal, error) {
	return s.db.SumUnclaimedGuarantees(org, currency, RoleBeneficiary)
}

// Available returns total minus reserved. It is the single figure gating
// guarantee creation.
func (s *Service) Available(org, currency string) (decimal.Decimal, error) {
	total, err := s.Total(org, currency)
	if err != nil {
		return decimal.Zero, err
	}
	reserved, err := s.Reserved(org, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate reservations: %w", err)
	}
	return total.Sub(reserved), nil
}

// GuaranteeClaimed returns the amount already settled against a guarantee.
func (s *Service) GuaranteeClaimed(org, currency, guaranteeID string) (decimal.Decimal, error) {
	return s.db.SumGuaranteeSettlements(org, currency, guaranteeID)
}

// Get computes the full projection for one (organization, currency) pair.
func (s *Service) Get(org, currency string) (*Snapshot, error) {
	total, err := s.Total(org, currency)
	if err != nil {
		return nil, err
	}
	reserved, err := s.Reserved(org, currency)
	if err != nil {
		return nil, err
	}
	claimable, err := s.Claimable(org, currency)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		OrgID:     org,
		Currency:  currency,
		Total:     total,
		Reserved:  reserved,
		Claimable: claimable,
		Available: total.Sub(reserved),
	}, nil
}

// RetrieveAll computes a projection for every currency in which the
// organization has received at least one settlement.
func (s *Service) RetrieveAll(org string) ([]*Snapshot, error) {
	currencies, err := s.db.CreditedCurrencies(org)
	if err != nil {
		return nil, fmt.Errorf("failed to list credited currencies: %w", err)
	}

	snapshots := make([]*Snapshot, 0, len(currencies))
	for _, currency := range currencies {
		snapshot, err := s.Get(org, currency)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}
