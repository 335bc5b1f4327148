package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Settlement is the append-only record of one completed value movement
// between two organizations. Once created it is never semantically
// mutated.
//
// Monetary columns use TEXT affinity. A NUMERIC column would coerce the
// decimal's string value to a binary REAL and lose exactness.
type Settlement struct {
	gorm.Model        `json:"-"`
	SettlementID      string          `gorm:"uniqueIndex" json:"settlement_id"`
	Initiator         string          `gorm:"index" json:"initiator"`
	Beneficiary       string          `gorm:"index" json:"beneficiary"`
	Amount            decimal.Decimal `gorm:"type:text" json:"amount"`
	Currency          string          `gorm:"index" json:"currency"`
	Agent             string          `json:"agent"`
	Source            string          `json:"source,omitempty"`            // guarantee, quote, transfer, faucet
	GuaranteeID       string          `gorm:"index" json:"guarantee_id,omitempty"`
	TransferReference string          `gorm:"index" json:"transfer_reference,omitempty"`
	QuoteID           string          `json:"quote_id,omitempty"`
}

// Guarantee reserves part of the initiator's balance in favor of the
// beneficiary until it is claimed or canceled.
type Guarantee struct {
	gorm.Model  `json:"-"`
	GuaranteeID string          `gorm:"uniqueIndex" json:"guarantee_id"`
	Initiator   string          `gorm:"index" json:"initiator"`
	Beneficiary string          `gorm:"index" json:"beneficiary"`
	Amount      decimal.Decimal `gorm:"type:text" json:"amount"`
	Currency    string          `gorm:"index" json:"currency"`
	Agent       string          `json:"agent"`
	Expiration  time.Time       `json:"expiration"`
	Claimed     bool            `gorm:"default:false" json:"claimed"`
}

// Quote is a single-use currency-conversion pricing lock. Exactly one of
// the two amounts is caller-supplied; the counterpart, the rate and the
// provider reference are filled by the FX provider and fixed thereafter.
type Quote struct {
	gorm.Model        `json:"-"`
	QuoteID           string          `gorm:"uniqueIndex" json:"quote_id"`
	OrgID             string          `gorm:"index" json:"org_id"`
	Agent             string          `json:"agent"`
	SourceCurrency    string          `json:"source_currency"`
	TargetCurrency    string          `json:"target_currency"`
	SourceAmount      decimal.Decimal `gorm:"type:text" json:"source_amount"`
	TargetAmount      decimal.Decimal `gorm:"type:text" json:"target_amount"`
	Rate              decimal.Decimal `gorm:"type:text" json:"rate"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	IsUsed            bool            `gorm:"default:false" json:"is_used"`
}

// Priced reports whether the FX provider has filled in the quote.
func (q *Quote) Priced() bool {
	return q.ProviderReference != ""
}
