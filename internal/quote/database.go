package quote

import (
	"github.com/windingtree/simard/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateQuote(quote *types.Quote) error {
	return d.db.Create(quote).Error
}

func (d *Database) GetQuote(quoteID string) (*types.Quote, error) {
	var quote types.Quote
	if err := d.db.Where("quote_id = ?", quoteID).First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

// MarkUsed flips is_used for an unused quote. The guard on the current
// value makes the transition a single atomic conditional update; a
// concurrent execution loses the race and sees zero rows affected.
func (d *Database) MarkUsed(quoteID string) (bool, error) {
	result := d.db.Model(&types.Quote{}).
		Where("quote_id = ?", quoteID).
		Where("is_used = ?", false).
		Update("is_used", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (d *Database) GetOrgQuotes(org string) ([]types.Quote, error) {
	var quotes []types.Quote
	if err := d.db.Where("org_id = ?", org).Order("created_at DESC").Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}
