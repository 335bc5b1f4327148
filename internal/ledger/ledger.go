// Package ledger coordinates the cross-entity workflows of the payments
// ledger: deposits, guarantee issuance and claims, virtual card
// issuance with compensating cancellation, and multi-quote currency
// swaps. It is the only component the HTTP layer invokes directly.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/internal/balance"
	"github.com/windingtree/simard/internal/config"
	"github.com/windingtree/simard/internal/currency"
	"github.com/windingtree/simard/internal/guarantee"
	"github.com/windingtree/simard/internal/issuing"
	"github.com/windingtree/simard/internal/metrics"
	"github.com/windingtree/simard/internal/quote"
	"github.com/windingtree/simard/internal/settlement"
	"github.com/windingtree/simard/internal/types"
	"github.com/windingtree/simard/pkg/errs"
)

// WithdrawalBeneficiary names the counterparty recorded on withdrawal
// settlements until automatic bank transfers are wired in.
const WithdrawalBeneficiary = "bank-transfer"

// Orchestrator composes the ledger services and the external providers.
type Orchestrator struct {
	balances    *balance.Service
	guarantees  *guarantee.Service
	settlements *settlement.Service
	quotes      *quote.Service
	issuer      issuing.Provider

	platformOrg string
	cardOrg     string
	cardAllowed func(org string) bool
}

// NewOrchestrator wires the ledger services and providers together.
func NewOrchestrator(
	balances *balance.Service,
	guarantees *guarantee.Service,
	settlements *settlement.Service,
	quotes *quote.Service,
	issuer issuing.Provider,
	cfg *config.Config,
) *Orchestrator {
	return &Orchestrator{
		balances:    balances,
		guarantees:  guarantees,
		settlements: settlements,
		quotes:      quotes,
		issuer:      issuer,
		platformOrg: cfg.Platform.OrgID,
		cardOrg:     cfg.Platform.CardOrgID,
		cardAllowed: cfg.CardAllowed,
	}
}

// AddDeposit records a settlement crediting org. It backs the test
// faucet and manually confirmed bank deposits.
func (o *Orchestrator) AddDeposit(org, agent, currencyCode string, amount decimal.Decimal, source string) (*types.Settlement, error) {
	if source == "" {
		source = settlement.SourceFaucet
	}
	record, err := o.settlements.Create(source, org, amount, currencyCode, agent, source)
	if err != nil {
		return nil, err
	}
	metrics.SettlementsCreated.WithLabelValues(source).Inc()
	return record, nil
}

// AddTransferDeposit settles a provider-verified external transfer,
// idempotently on its reference. An optional unused quote converts the
// deposit into the quote's target currency; the quote is executed once
// the settlement is stored.
func (o *Orchestrator) AddTransferDeposit(ctx context.Context, org, agent, reference, quoteID string) (*types.Settlement, error) {
	var quoteRecord *types.Quote
	if quoteID != "" {
		var err error
		quoteRecord, err = o.quotes.GetForOrg(org, quoteID)
		if err != nil {
			return nil, err
		}
		if quoteRecord.IsUsed {
			return nil, errs.AlreadyUsed("quote has already been used for an exchange")
		}
	}

	record, err := o.settlements.FromTransfer(ctx, org, agent, reference, quoteRecord)
	if err != nil {
		return nil, err
	}

	if quoteRecord != nil && record.QuoteID == quoteRecord.QuoteID {
		if err := o.quotes.Execute(quoteRecord.QuoteID); err != nil {
			return nil, err
		}
		metrics.QuotesExecuted.Inc()
	}

	metrics.SettlementsCreated.WithLabelValues(settlement.SourceTransfer).Inc()
	return record, nil
}

// AddGuarantee reserves balance from org towards the beneficiary. The
// balance check inside guarantee creation is the single gate against
// over-commitment.
func (o *Orchestrator) AddGuarantee(org, agent, beneficiary string, amount decimal.Decimal, currencyCode string, expiration time.Time) (*types.Guarantee, error) {
	record, err := o.guarantees.Create(org, agent, beneficiary, amount, currencyCode, expiration)
	if err != nil {
		return nil, err
	}
	metrics.GuaranteesCreated.Inc()
	return record, nil
}

// GetGuarantee retrieves a guarantee for one of its parties.
func (o *Orchestrator) GetGuarantee(org, guaranteeID string) (*types.Guarantee, error) {
	return o.guarantees.GetForParty(org, guaranteeID)
}

// ClaimGuarantee converts a guarantee into a settlement for its
// beneficiary.
func (o *Orchestrator) ClaimGuarantee(org, agent, guaranteeID string) (*types.Settlement, error) {
	record, err := o.guarantees.Claim(org, agent, guaranteeID, decimal.Zero)
	if err != nil {
		return nil, err
	}
	metrics.GuaranteesClaimed.Inc()
	metrics.SettlementsCreated.WithLabelValues(settlement.SourceGuarantee).Inc()
	return record, nil
}

// CancelGuarantee removes a guarantee under the party cancellation
// rules.
func (o *Orchestrator) CancelGuarantee(org, guaranteeID string) error {
	if err := o.guarantees.Cancel(org, guaranteeID); err != nil {
		return err
	}
	metrics.GuaranteesCanceled.Inc()
	return nil
}

// GenerateCard issues a virtual card funded by a fresh guarantee from
// org to the card settlement organization. When issuance fails for any
// reason the guarantee is canceled as compensation; skipping the
// rollback would leave org's balance reserved for a card that does not
// exist.
func (o *Orchestrator) GenerateCard(ctx context.Context, org, agent, currencyCode string, amount decimal.Decimal, expiration time.Time) (*issuing.Card, error) {
	logger := log.With().
		Str("service", "ledger").
		Str("org_id", org).
		Str("currency", currencyCode).
		Logger()

	if !o.cardAllowed(org) {
		return nil, errs.Authorization("virtual card functionality is restricted")
	}

	guaranteeRecord, err := o.AddGuarantee(org, agent, o.cardOrg, amount, currencyCode, expiration)
	if err != nil {
		return nil, err
	}

	card, err := o.issuer.Issue(ctx, currencyCode, amount, expiration, guaranteeRecord.GuaranteeID)
	if err != nil {
		logger.Error().Err(err).
			Str("guarantee_id", guaranteeRecord.GuaranteeID).
			Msg("card issuance failed, canceling backing guarantee")
		metrics.UpstreamFailures.WithLabelValues("issuing").Inc()

		// Compensating cancellation: the card org is the beneficiary and
		// may cancel at any time.
		if cancelErr := o.CancelGuarantee(o.cardOrg, guaranteeRecord.GuaranteeID); cancelErr != nil {
			logger.Error().Err(cancelErr).
				Str("guarantee_id", guaranteeRecord.GuaranteeID).
				Msg("compensating guarantee cancellation failed")
		} else {
			metrics.CompensatingCancellations.Inc()
		}
		return nil, err
	}

	metrics.CardsIssued.Inc()
	logger.Info().
		Str("guarantee_id", guaranteeRecord.GuaranteeID).
		Msg("virtual card issued")
	return card, nil
}

// CancelCard revokes a virtual card and cancels its backing guarantee.
// A guarantee that is missing or belongs to another organization maps to
// a not-found error so callers can not probe for other orgs' cards.
func (o *Orchestrator) CancelCard(ctx context.Context, org, agent, guaranteeID string) error {
	guaranteeRecord, err := o.guarantees.GetForParty(org, guaranteeID)
	if err != nil {
		return errs.NotFound("card not found")
	}

	if err := o.issuer.Revoke(ctx, guaranteeRecord.GuaranteeID); err != nil {
		// The guarantee cancellation must still proceed; an orphaned
		// provider-side card spends nothing without its guarantee.
		log.Error().Err(err).
			Str("service", "ledger").
			Str("guarantee_id", guaranteeID).
			Msg("card revocation failed, canceling guarantee anyway")
		metrics.UpstreamFailures.WithLabelValues("issuing").Inc()
	}

	return o.CancelGuarantee(o.cardOrg, guaranteeRecord.GuaranteeID)
}

// ClaimWithCard claims a guarantee and immediately issues a virtual card
// to the claiming organization for the settled amount and currency. The
// two steps are a fixed sequence: a card issuance failure does not roll
// back the claim.
func (o *Orchestrator) ClaimWithCard(ctx context.Context, org, agent, guaranteeID string, cardExpiration time.Time) (*issuing.Card, *types.Settlement, error) {
	if !o.cardAllowed(org) {
		return nil, nil, errs.Authorization("virtual card functionality is restricted")
	}
	// The card expiration is validated before the claim so a malformed
	// request can not consume the guarantee.
	if !cardExpiration.After(time.Now()) {
		return nil, nil, errs.Validation("card expiration must be in the future")
	}

	settlementRecord, err := o.ClaimGuarantee(org, agent, guaranteeID)
	if err != nil {
		return nil, nil, err
	}

	card, err := o.GenerateCard(ctx, org, agent, settlementRecord.Currency, settlementRecord.Amount, cardExpiration)
	if err != nil {
		return nil, settlementRecord, err
	}
	return card, settlementRecord, nil
}

// Withdraw settles the organization's full available balance in one
// currency out to its configured bank recipient.
func (o *Orchestrator) Withdraw(org, agent, currencyCode string) (*types.Settlement, error) {
	available, err := o.balances.Available(org, currencyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to compute available balance: %w", err)
	}
	if !available.IsPositive() {
		return nil, errs.InsufficientBalance("no available balance to withdraw")
	}

	record, err := o.settlements.Create(org, WithdrawalBeneficiary, available, currencyCode, agent, "withdrawal")
	if err != nil {
		return nil, err
	}
	metrics.SettlementsCreated.WithLabelValues("withdrawal").Inc()
	return record, nil
}

// CreateQuote obtains a priced single-use conversion lock for org.
func (o *Orchestrator) CreateQuote(ctx context.Context, org, agent, sourceCurrency, targetCurrency string, sourceAmount, targetAmount decimal.Decimal) (*types.Quote, error) {
	return o.quotes.Create(ctx, org, agent, sourceCurrency, targetCurrency, sourceAmount, targetAmount)
}

// GetQuote retrieves a quote owned by org.
func (o *Orchestrator) GetQuote(org, quoteID string) (*types.Quote, error) {
	return o.quotes.GetForOrg(org, quoteID)
}

// GetBalance computes the projection for one (org, currency) pair.
func (o *Orchestrator) GetBalance(org, currencyCode string) (*balance.Snapshot, error) {
	currencyCode, err := currency.Parse(currencyCode)
	if err != nil {
		return nil, err
	}
	return o.balances.Get(org, currencyCode)
}

// GetBalances computes projections for every currency credited to org.
func (o *Orchestrator) GetBalances(org string) ([]*balance.Snapshot, error) {
	return o.balances.RetrieveAll(org)
}
