package balance

import (
	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/internal/types"
	"gorm.io/gorm"
)

// Role selects which party column an aggregation filters on.
type Role string

const (
	RoleInitiator   Role = "initiator"
	RoleBeneficiary Role = "beneficiary"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// sum adds up the plucked amounts in decimal arithmetic. SQLite's SUM()
// coerces operands to REAL, so grouped sums must never run in SQL.
func sum(amounts []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, amounts...)
}

// SumSettlements returns the grouped sum of settlement amounts for one
// organization role in one currency. Returns zero when nothing matches.
func (d *Database) SumSettlements(org string, currency string, role Role) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := d.db.Model(&types.Settlement{}).
		Where(string(role)+" = ?", org).
		Where("currency = ?", currency).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return sum(amounts), nil
}

// SumUnclaimedGuarantees returns the grouped sum of unclaimed guarantee
// amounts for one organization role in one currency.
func (d *Database) SumUnclaimedGuarantees(org string, currency string, role Role) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := d.db.Model(&types.Guarantee{}).
		Where(string(role)+" = ?", org).
		Where("currency = ?", currency).
		Where("claimed = ?", false).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return sum(amounts), nil
}

// SumGuaranteeSettlements returns the amount already settled against a
// guarantee towards one beneficiary in one currency.
func (d *Database) SumGuaranteeSettlements(org string, currency string, guaranteeID string) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := d.db.Model(&types.Settlement{}).
		Where("beneficiary = ?", org).
		Where("currency = ?", currency).
		Where("guarantee_id = ?", guaranteeID).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return sum(amounts), nil
}

// CreditedCurrencies lists each currency for which at least one
// settlement names org as beneficiary.
func (d *Database) CreditedCurrencies(org string) ([]string, error) {
	var currencies []string
	err := d.db.Model(&types.Settlement{}).
		Distinct("currency").
		Where("beneficiary = ?", org).
		Pluck("currency", &currencies).Error
	if err != nil {
		return nil, err
	}
	return currencies, nil
}
