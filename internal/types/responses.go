package types

import "time"

// BalanceResponse is the computed per-currency balance projection.
type BalanceResponse struct {
	OrgID     string `json:"org_id"`
	Currency  string `json:"currency"`
	Total     string `json:"total"`
	Reserved  string `json:"reserved"`
	Claimable string `json:"claimable"`
	Available string `json:"available"`
}

// GuaranteeResponse mirrors a stored guarantee for callers.
type GuaranteeResponse struct {
	GuaranteeID string    `json:"guarantee_id"`
	Initiator   string    `json:"initiator"`
	Beneficiary string    `json:"beneficiary"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Expiration  time.Time `json:"expiration"`
	Claimed     bool      `json:"claimed"`
}

// QuoteResponse mirrors a priced quote for callers.
type QuoteResponse struct {
	QuoteID        string `json:"quote_id"`
	SourceCurrency string `json:"source_currency"`
	TargetCurrency string `json:"target_currency"`
	SourceAmount   string `json:"source_amount"`
	TargetAmount   string `json:"target_amount"`
	Rate           string `json:"rate"`
	IsUsed         bool   `json:"is_used"`
}

// CardResponse carries virtual card credentials. It is returned once at
// issuance and never persisted.
type CardResponse struct {
	AccountNumber   string `json:"account_number"`
	CVV             string `json:"cvv"`
	ExpirationMonth string `json:"expiration_month"`
	ExpirationYear  string `json:"expiration_year"`
	Brand           string `json:"brand"`
	CardType        string `json:"card_type"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	GuaranteeID     string `json:"guarantee_id"`
}

// SwapResponse lists the settlements created by a balance swap.
type SwapResponse struct {
	SourceSettlements []string `json:"source_settlements"`
	TargetSettlements []string `json:"target_settlements"`
}
