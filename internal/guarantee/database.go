package guarantee

import (
	"time"

	"github.com/windingtree/simard/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateGuarantee(guarantee *types.Guarantee) error {
	return d.db.Create(guarantee).Error
}

func (d *Database) GetGuarantee(guaranteeID string) (*types.Guarantee, error) {
	var guarantee types.Guarantee
	if err := d.db.Where("guarantee_id = ?", guaranteeID).First(&guarantee).Error; err != nil {
		return nil, err
	}
	return &guarantee, nil
}

// ClaimGuarantee flips the claimed flag and stores the resulting
// settlement in one transaction. The flag update is guarded on the
// current value, so concurrent claims race on a single atomic
// conditional write; the loser sees claimed=false and no settlement is
// recorded for it.
func (d *Database) ClaimGuarantee(guaranteeID string, settlement *types.Settlement) (bool, error) {
	claimed := false
	err := d.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&types.Guarantee{}).
			Where("guarantee_id = ?", guaranteeID).
			Where("claimed = ?", false).
			Update("claimed", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		claimed = true
		return tx.Create(settlement).Error
	})
	return claimed, err
}

// DeleteUnclaimedGuarantee removes a guarantee unless it has been
// claimed. The delete is guarded on the claimed flag so a cancel racing
// a claim can never remove a claimed guarantee; the caller sees
// deleted=false when the claim won.
func (d *Database) DeleteUnclaimedGuarantee(guaranteeID string) (bool, error) {
	result := d.db.Where("guarantee_id = ?", guaranteeID).
		Where("claimed = ?", false).
		Delete(&types.Guarantee{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountExpiredUnclaimed counts guarantees past their expiration that
// were never claimed or canceled.
func (d *Database) CountExpiredUnclaimed(now time.Time) (int64, error) {
	var count int64
	err := d.db.Model(&types.Guarantee{}).
		Where("claimed = ?", false).
		Where("expiration < ?", now).
		Count(&count).Error
	return count, err
}
