package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windingtree/simard/internal/database"
	"github.com/windingtree/simard/internal/transfer"
	"github.com/windingtree/simard/internal/types"
	"github.com/windingtree/simard/pkg/errs"
)

const (
	orgA = "org-a"
	orgB = "org-b"
)

func newTestService(t *testing.T) (*Service, *transfer.Simulated) {
	t.Helper()
	db, err := database.NewTestDatabase()
	require.NoError(t, err)
	verifier := transfer.NewSimulated()
	return NewService(db, verifier), verifier
}

func TestCreate(t *testing.T) {
	service, _ := newTestService(t)

	record, err := service.Create(orgA, orgB, decimal.RequireFromString("100.00"), "EUR", "agent-key", SourceFaucet)
	require.NoError(t, err)
	assert.NotEmpty(t, record.SettlementID)
	assert.Equal(t, orgA, record.Initiator)
	assert.Equal(t, orgB, record.Beneficiary)
	assert.Equal(t, SourceFaucet, record.Source)

	stored, err := service.FromStorage(record.SettlementID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(record.Amount))
}

func TestCreate_Validation(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Create("", orgB, decimal.New(1, 0), "EUR", "agent-key", SourceFaucet)
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = service.Create(orgA, orgB, decimal.RequireFromString("-5"), "EUR", "agent-key", SourceFaucet)
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = service.Create(orgA, orgB, decimal.New(1, 0), "XXX", "agent-key", SourceFaucet)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestFromStorage_NotFound(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.FromStorage(uuid.New().String())
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestNewFromGuarantee(t *testing.T) {
	t.Parallel()

	record := &types.Guarantee{
		GuaranteeID: uuid.New().String(),
		Initiator:   orgA,
		Beneficiary: orgB,
		Amount:      decimal.RequireFromString("250.00"),
		Currency:    "EUR",
		Expiration:  time.Now().Add(time.Hour),
	}

	t.Run("zero amount settles the full guarantee", func(t *testing.T) {
		settlement, err := NewFromGuarantee(record, "agent-key", decimal.Zero)
		require.NoError(t, err)
		assert.True(t, settlement.Amount.Equal(record.Amount))
		assert.Equal(t, record.GuaranteeID, settlement.GuaranteeID)
		assert.Equal(t, SourceGuarantee, settlement.Source)
		assert.Equal(t, orgA, settlement.Initiator)
		assert.Equal(t, orgB, settlement.Beneficiary)
	})

	t.Run("partial amount", func(t *testing.T) {
		settlement, err := NewFromGuarantee(record, "agent-key", decimal.RequireFromString("100.00"))
		require.NoError(t, err)
		assert.True(t, settlement.Amount.Equal(decimal.RequireFromString("100.00")))
	})

	t.Run("amount above the guarantee is rejected", func(t *testing.T) {
		_, err := NewFromGuarantee(record, "agent-key", decimal.RequireFromString("250.01"))
		assert.True(t, errs.Is(err, errs.KindValidation))
	})

	t.Run("negative amount is rejected", func(t *testing.T) {
		_, err := NewFromGuarantee(record, "agent-key", decimal.RequireFromString("-1"))
		assert.True(t, errs.Is(err, errs.KindValidation))
	})
}

func TestFromTransfer(t *testing.T) {
	service, verifier := newTestService(t)

	verifier.Register("ref-1", transfer.Payment{
		Payer:    "external-payer",
		Payee:    orgA,
		Amount:   decimal.RequireFromString("300.00"),
		Currency: "EUR",
	})

	record, err := service.FromTransfer(context.Background(), orgA, "agent-key", "ref-1", nil)
	require.NoError(t, err)
	assert.Equal(t, orgA, record.Beneficiary)
	assert.Equal(t, "external-payer", record.Initiator)
	assert.Equal(t, SourceTransfer, record.Source)
	assert.Equal(t, "ref-1", record.TransferReference)
	assert.True(t, record.Amount.Equal(decimal.RequireFromString("300.00")))
}

// TestFromTransfer_IdempotentReplay checks that settling the same
// transfer reference twice returns the original settlement instead of
// crediting the deposit again.
func TestFromTransfer_IdempotentReplay(t *testing.T) {
	service, verifier := newTestService(t)

	verifier.Register("ref-2", transfer.Payment{
		Payee:    orgA,
		Amount:   decimal.RequireFromString("150.00"),
		Currency: "EUR",
	})

	first, err := service.FromTransfer(context.Background(), orgA, "agent-key", "ref-2", nil)
	require.NoError(t, err)

	second, err := service.FromTransfer(context.Background(), orgA, "agent-key", "ref-2", nil)
	require.NoError(t, err)
	assert.Equal(t, first.SettlementID, second.SettlementID)

	settlements, err := service.ListForOrg(orgA)
	require.NoError(t, err)
	assert.Len(t, settlements, 1)
}

func TestFromTransfer_UnknownReference(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.FromTransfer(context.Background(), orgA, "agent-key", "ref-missing", nil)
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = service.FromTransfer(context.Background(), orgA, "agent-key", "", nil)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestFromTransfer_WithQuote(t *testing.T) {
	service, verifier := newTestService(t)

	verifier.Register("ref-3", transfer.Payment{
		Payee:    orgA,
		Amount:   decimal.RequireFromString("100.00"),
		Currency: "EUR",
	})

	quote := &types.Quote{
		QuoteID:           uuid.New().String(),
		OrgID:             orgA,
		SourceCurrency:    "EUR",
		TargetCurrency:    "USD",
		SourceAmount:      decimal.RequireFromString("100.00"),
		TargetAmount:      decimal.RequireFromString("108.70"),
		Rate:              decimal.RequireFromString("0.92"),
		ProviderReference: "tw-1",
	}

	record, err := service.FromTransfer(context.Background(), orgA, "agent-key", "ref-3", quote)
	require.NoError(t, err)
	assert.Equal(t, "USD", record.Currency)
	assert.True(t, record.Amount.Equal(quote.TargetAmount))
	assert.Equal(t, quote.QuoteID, record.QuoteID)
}

func TestFromTransfer_QuoteMismatch(t *testing.T) {
	service, verifier := newTestService(t)

	verifier.Register("ref-4", transfer.Payment{
		Payee:    orgA,
		Amount:   decimal.RequireFromString("100.00"),
		Currency: "EUR",
	})

	wrongCurrency := &types.Quote{
		QuoteID:        uuid.New().String(),
		OrgID:          orgA,
		SourceCurrency: "GBP",
		TargetCurrency: "USD",
		SourceAmount:   decimal.RequireFromString("100.00"),
		TargetAmount:   decimal.RequireFromString("120.00"),
	}
	_, err := service.FromTransfer(context.Background(), orgA, "agent-key", "ref-4", wrongCurrency)
	assert.True(t, errs.Is(err, errs.KindValidation))

	wrongAmount := &types.Quote{
		QuoteID:        uuid.New().String(),
		OrgID:          orgA,
		SourceCurrency: "EUR",
		TargetCurrency: "USD",
		SourceAmount:   decimal.RequireFromString("99.00"),
		TargetAmount:   decimal.RequireFromString("107.00"),
	}
	_, err = service.FromTransfer(context.Background(), orgA, "agent-key", "ref-4", wrongAmount)
	assert.True(t, errs.Is(err, errs.KindValidation))

	// Nothing was settled for the reference.
	settlements, err := service.ListForOrg(orgA)
	require.NoError(t, err)
	assert.Empty(t, settlements)
}
