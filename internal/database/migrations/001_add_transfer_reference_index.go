package migrations

import (
	"gorm.io/gorm"
)

// AddTransferReferenceIndex enforces replay idempotency for
// provider-verified deposits: at most one settlement per external
// transfer reference.
func AddTransferReferenceIndex(db *gorm.DB) error {
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_settlements_transfer_reference
		 ON settlements(transfer_reference)
		 WHERE transfer_reference != '' AND deleted_at IS NULL`,
	).Error
}
