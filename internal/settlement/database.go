package settlement

import (
	"errors"

	"github.com/windingtree/simard/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateSettlement(settlement *types.Settlement) error {
	return d.db.Create(settlement).Error
}

func (d *Database) GetSettlement(settlementID string) (*types.Settlement, error) {
	var settlement types.Settlement
	if err := d.db.Where("settlement_id = ?", settlementID).First(&settlement).Error; err != nil {
		return nil, err
	}
	return &settlement, nil
}

// GetByTransferReference finds the settlement recorded for an external
// transfer reference, or nil when the reference has not been consumed.
func (d *Database) GetByTransferReference(reference string) (*types.Settlement, error) {
	var settlement types.Settlement
	err := d.db.Where("transfer_reference = ?", reference).First(&settlement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (d *Database) GetOrgSettlements(org string) ([]types.Settlement, error) {
	var settlements []types.Settlement
	err := d.db.
		Where("initiator = ? OR beneficiary = ?", org, org).
		Order("created_at DESC").
		Find(&settlements).Error
	if err != nil {
		return nil, err
	}
	return settlements, nil
}
