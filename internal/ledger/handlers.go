package ledger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/internal/balance"
	"github.com/windingtree/simard/internal/currency"
	"github.com/windingtree/simard/internal/issuing"
	"github.com/windingtree/simard/internal/types"
	"github.com/windingtree/simard/pkg/middleware"
	"github.com/windingtree/simard/pkg/response"
)

// GinHandlers contains HTTP handlers for ledger endpoints
type GinHandlers struct {
	orchestrator *Orchestrator
}

// NewGinHandlers creates a new set of HTTP handlers for ledger endpoints
func NewGinHandlers(orchestrator *Orchestrator) *GinHandlers {
	return &GinHandlers{
		orchestrator: orchestrator,
	}
}

func identity(c *gin.Context) (string, string, bool) {
	org := c.GetString(middleware.ContextOrgID)
	agent := c.GetString(middleware.ContextAgent)
	if org == "" || agent == "" {
		response.Unauthorized(c, "Missing identity claims")
		return "", "", false
	}
	return org, agent, true
}

func parseExpiration(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, raw)
}

func (h *GinHandlers) GetBalancesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, _, ok := identity(c)
		if !ok {
			return
		}

		snapshots, err := h.orchestrator.GetBalances(org)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		payload := make([]types.BalanceResponse, 0, len(snapshots))
		for _, snapshot := range snapshots {
			payload = append(payload, toBalanceResponse(snapshot))
		}
		response.Success(c, payload)
	}
}

func (h *GinHandlers) GetBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, _, ok := identity(c)
		if !ok {
			return
		}

		snapshot, err := h.orchestrator.GetBalance(org, c.Param("currency"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, toBalanceResponse(snapshot))
	}
}

// SimulateDepositHandler credits the caller's balance from the test
// faucet.
func (h *GinHandlers) SimulateDepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, agent, ok := identity(c)
		if !ok {
			return
		}

		var request struct {
			Currency string `json:"currency" binding:"required"`
			Amount   string `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		amount, err := currency.ParseAmount(request.Amount, request.Currency)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		record, err := h.orchestrator.AddDeposit(org, agent, request.Currency, amount, "")
		response.Handle(c, record, err)
	}
}

// TransferDepositHandler settles a provider-verified external transfer.
func (h *GinHandlers) TransferDepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, agent, ok := identity(c)
		if !ok {
			return
		}

		var request struct {
			Reference string `json:"reference" binding:"required"`
			QuoteID   string `json:"quote_id"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		record, err := h.orchestrator.AddTransferDeposit(c.Request.Context(), org, agent, request.Reference, request.QuoteID)
		response.Handle(c, record, err)
	}
}

func (h *GinHandlers) WithdrawHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, agent, ok := identity(c)
		if !ok {
			return
		}

		var request struct {
			Currency string `json:"currency" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		record, err := h.orchestrator.Withdraw(org, agent, request.Currency)
		response.Handle(c, record, err)
	}
}

func (h *GinHandlers) SwapHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, agent, ok := identity(c)
		if !ok {
			return
		}

		var request struct {
			Quotes []string `json:"quotes" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.orchestrator.Swap(org, agent, request.Quotes)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, types.SwapResponse{
			SourceSettlements: result.SourceSettlements,
			TargetSettlements: result.TargetSettlements,
		})
	}
}

func (h *GinHandlers) CreateGuaranteeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, agent, ok := identity(c)
		if !ok {
			return
		}

		var request struct {
			Beneficiary string `json:"beneficiary" binding:"required"`
			Currency    string `json:"currency" binding:"required"`
			Amount      string `json:"amount" binding:"required"`
			Expiration  string `json:"expiration" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		amount, err := currency.ParseAmount(request.Amount, request.Currency)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		expiration, err := parseExpiration(request.Expiration)
		if err != nil {
			response.BadRequest(c, "expiration must be an RFC 3339 timestamp")
			return
		}

		record, err := h.orchestrator.AddGuarantee(org, agent, request.Beneficiary, amount, request.Currency, expiration)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, toGuaranteeResponse(record))
	}
}

func (h *GinHandlers) GetGuaranteeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, _, ok := identity(c)
		if !ok {
			return
		}

		record, err := h.orchestrator.GetGuarantee(org, c.Param("guarantee_id"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, toGuaranteeResponse(record))
	}
}

func (h *GinHandlers) ClaimGuaranteeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, agent, ok := identity(c)
		if !ok {
			return
		}

		record, err := h.orchestrator.ClaimGuarantee(org, agent, c.Param("guarantee_id"))
		response.Handle(c, record, err)
	}
}

func (h *GinHandlers) CancelGuaranteeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, _, ok := identity(c)
		if !ok {
			return
		}

		if err := h.orchestrator.CancelGuarantee(org, c.Param("guarantee_id")); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "guarantee canceled"})
	}
}

func (h *GinHandlers) ClaimWithCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, agent, ok := identity(c)
		if !ok {
			return
		}

		var request struct {
			Expiration string `json:"expiration" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		expiration, err := parseExpiration(request.Expiration)
		if err != nil {
			response.BadRequest(c, "expiration must be an RFC 3339 timestamp")
			return
		}

		card, settlementRecord, err := h.orchestrator.ClaimWithCard(c.Request.Context(), org, agent, c.Param("guarantee_id"), expiration)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{
			"card":          toCardResponse(card),
			"settlement_id": settlementRecord.SettlementID,
		})
	}
}

func (h *GinHandlers) CreateQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, agent, ok := identity(c)
		if !ok {
			return
		}

		var request struct {
			SourceCurrency string `json:"source_currency" binding:"required"`
			TargetCurrency string `json:"target_currency" binding:"required"`
			SourceAmount   string `json:"source_amount"`
			TargetAmount   string `json:"target_amount"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		sourceAmount := decimal.Zero
		targetAmount := decimal.Zero
		var err error
		if request.SourceAmount != "" {
			sourceAmount, err = currency.ParseAmount(request.SourceAmount, request.SourceCurrency)
			if err != nil {
				response.Handle(c, nil, err)
				return
			}
		}
		if request.TargetAmount != "" {
			targetAmount, err = currency.ParseAmount(request.TargetAmount, request.TargetCurrency)
			if err != nil {
				response.Handle(c, nil, err)
				return
			}
		}

		record, err := h.orchestrator.CreateQuote(c.Request.Context(), org, agent, request.SourceCurrency, request.TargetCurrency, sourceAmount, targetAmount)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, toQuoteResponse(record))
	}
}

func (h *GinHandlers) GetQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, _, ok := identity(c)
		if !ok {
			return
		}

		record, err := h.orchestrator.GetQuote(org, c.Param("quote_id"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, toQuoteResponse(record))
	}
}

func (h *GinHandlers) CreateCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, agent, ok := identity(c)
		if !ok {
			return
		}

		var request struct {
			Currency   string `json:"currency" binding:"required"`
			Amount     string `json:"amount" binding:"required"`
			Expiration string `json:"expiration" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		amount, err := currency.ParseAmount(request.Amount, request.Currency)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		expiration, err := parseExpiration(request.Expiration)
		if err != nil {
			response.BadRequest(c, "expiration must be an RFC 3339 timestamp")
			return
		}

		card, err := h.orchestrator.GenerateCard(c.Request.Context(), org, agent, request.Currency, amount, expiration)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, toCardResponse(card))
	}
}

func (h *GinHandlers) CancelCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, agent, ok := identity(c)
		if !ok {
			return
		}

		if err := h.orchestrator.CancelCard(c.Request.Context(), org, agent, c.Param("guarantee_id")); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "card canceled"})
	}
}

func formatAmount(amount decimal.Decimal, currencyCode string) string {
	formatted, err := currency.Format(amount, currencyCode)
	if err != nil {
		return amount.String()
	}
	return formatted
}

func toBalanceResponse(snapshot *balance.Snapshot) types.BalanceResponse {
	return types.BalanceResponse{
		OrgID:     snapshot.OrgID,
		Currency:  snapshot.Currency,
		Total:     formatAmount(snapshot.Total, snapshot.Currency),
		Reserved:  formatAmount(snapshot.Reserved, snapshot.Currency),
		Claimable: formatAmount(snapshot.Claimable, snapshot.Currency),
		Available: formatAmount(snapshot.Available, snapshot.Currency),
	}
}

func toGuaranteeResponse(record *types.Guarantee) types.GuaranteeResponse {
	return types.GuaranteeResponse{
		GuaranteeID: record.GuaranteeID,
		Initiator:   record.Initiator,
		Beneficiary: record.Beneficiary,
		Amount:      formatAmount(record.Amount, record.Currency),
		Currency:    record.Currency,
		Expiration:  record.Expiration,
		Claimed:     record.Claimed,
	}
}

func toQuoteResponse(record *types.Quote) types.QuoteResponse {
	return types.QuoteResponse{
		QuoteID:        record.QuoteID,
		SourceCurrency: record.SourceCurrency,
		TargetCurrency: record.TargetCurrency,
		SourceAmount:   formatAmount(record.SourceAmount, record.SourceCurrency),
		TargetAmount:   formatAmount(record.TargetAmount, record.TargetCurrency),
		Rate:           record.Rate.String(),
		IsUsed:         record.IsUsed,
	}
}

func toCardResponse(card *issuing.Card) types.CardResponse {
	return types.CardResponse{
		AccountNumber:   card.AccountNumber,
		CVV:             card.CVV,
		ExpirationMonth: card.ExpirationMonth,
		ExpirationYear:  card.ExpirationYear,
		Brand:           card.Brand,
		CardType:        card.CardType,
		Amount:          formatAmount(card.Amount, card.Currency),
		Currency:        card.Currency,
		GuaranteeID:     card.GuaranteeID,
	}
}
