package guarantee

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windingtree/simard/internal/balance"
	"github.com/windingtree/simard/internal/database"
	"github.com/windingtree/simard/internal/settlement"
	"github.com/windingtree/simard/internal/transfer"
	"github.com/windingtree/simard/pkg/errs"
)

const (
	orgA  = "org-a"
	orgB  = "org-b"
	agent = "agent-key"
)

type fixture struct {
	guarantees  *Service
	balances    *balance.Service
	settlements *settlement.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewTestDatabase()
	require.NoError(t, err)

	balances := balance.NewService(db)
	return &fixture{
		guarantees:  NewService(db, balances),
		balances:    balances,
		settlements: settlement.NewService(db, transfer.NewSimulated()),
	}
}

// fund credits org through a faucet settlement.
func (f *fixture) fund(t *testing.T, org, amount, currency string) {
	t.Helper()
	_, err := f.settlements.Create("faucet", org, decimal.RequireFromString(amount), currency, agent, settlement.SourceFaucet)
	require.NoError(t, err)
}

func (f *fixture) available(t *testing.T, org, currency string) decimal.Decimal {
	t.Helper()
	available, err := f.balances.Available(org, currency)
	require.NoError(t, err)
	return available
}

func TestCreate_ReservesBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, record.GuaranteeID)
	assert.False(t, record.Claimed)

	assert.True(t, f.available(t, orgA, "EUR").Equal(decimal.RequireFromString("600.00")))

	claimable, err := f.balances.Claimable(orgB, "EUR")
	require.NoError(t, err)
	assert.True(t, claimable.Equal(decimal.RequireFromString("400.00")))
}

func TestCreate_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "100.00", "EUR")

	_, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("100.01"), "EUR", time.Now().Add(time.Hour))
	assert.True(t, errs.Is(err, errs.KindInsufficientBalance))

	// Reservations count against subsequent guarantees.
	_, err = f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("80.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("30.00"), "EUR", time.Now().Add(time.Hour))
	assert.True(t, errs.Is(err, errs.KindInsufficientBalance))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "100.00", "EUR")

	_, err := f.guarantees.Create(orgA, agent, orgA, decimal.New(1, 0), "EUR", time.Now().Add(time.Hour))
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = f.guarantees.Create(orgA, agent, "", decimal.New(1, 0), "EUR", time.Now().Add(time.Hour))
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = f.guarantees.Create(orgA, agent, orgB, decimal.New(1, 0), "EUR", time.Now().Add(-time.Minute))
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = f.guarantees.Create(orgA, agent, orgB, decimal.New(1, 0), "eur", time.Now().Add(time.Hour))
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestClaim_MovesBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)

	settlementRecord, err := f.guarantees.Claim(orgB, agent, record.GuaranteeID, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, settlementRecord.Amount.Equal(decimal.RequireFromString("400.00")))
	assert.Equal(t, record.GuaranteeID, settlementRecord.GuaranteeID)

	stored, err := f.guarantees.FromStorage(record.GuaranteeID)
	require.NoError(t, err)
	assert.True(t, stored.Claimed)

	// The reservation is released and the value has moved.
	assert.True(t, f.available(t, orgA, "EUR").Equal(decimal.RequireFromString("600.00")))
	assert.True(t, f.available(t, orgB, "EUR").Equal(decimal.RequireFromString("400.00")))
}

func TestClaim_PartialAmount(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)

	settlementRecord, err := f.guarantees.Claim(orgB, agent, record.GuaranteeID, decimal.RequireFromString("150.00"))
	require.NoError(t, err)
	assert.True(t, settlementRecord.Amount.Equal(decimal.RequireFromString("150.00")))

	// The whole guarantee is consumed regardless of the claimed amount.
	assert.True(t, f.available(t, orgA, "EUR").Equal(decimal.RequireFromString("850.00")))
}

func TestClaim_OnlyBeneficiary(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = f.guarantees.Claim(orgA, agent, record.GuaranteeID, decimal.Zero)
	assert.True(t, errs.Is(err, errs.KindAuthorization))

	_, err = f.guarantees.Claim("org-c", agent, record.GuaranteeID, decimal.Zero)
	assert.True(t, errs.Is(err, errs.KindAuthorization))
}

func TestClaim_AtMostOnce(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = f.guarantees.Claim(orgB, agent, record.GuaranteeID, decimal.Zero)
	require.NoError(t, err)

	_, err = f.guarantees.Claim(orgB, agent, record.GuaranteeID, decimal.Zero)
	assert.True(t, errs.Is(err, errs.KindAlreadyUsed))

	// Only one settlement was recorded against the guarantee.
	claimed, err := f.balances.GuaranteeClaimed(orgB, "EUR", record.GuaranteeID)
	require.NoError(t, err)
	assert.True(t, claimed.Equal(decimal.RequireFromString("400.00")))
}

func TestClaim_AboveGuaranteedAmount(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = f.guarantees.Claim(orgB, agent, record.GuaranteeID, decimal.RequireFromString("400.01"))
	assert.True(t, errs.Is(err, errs.KindValidation))

	// The failed claim did not consume the guarantee.
	stored, err := f.guarantees.FromStorage(record.GuaranteeID)
	require.NoError(t, err)
	assert.False(t, stored.Claimed)
}

func TestCancel_BeneficiaryAnyTime(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, f.guarantees.Cancel(orgB, record.GuaranteeID))

	_, err = f.guarantees.FromStorage(record.GuaranteeID)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	// The reservation is released.
	assert.True(t, f.available(t, orgA, "EUR").Equal(decimal.RequireFromString("1000.00")))
}

func TestCancel_InitiatorOnlyAfterExpiration(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(100*time.Millisecond))
	require.NoError(t, err)

	err = f.guarantees.Cancel(orgA, record.GuaranteeID)
	assert.True(t, errs.Is(err, errs.KindExpiration))

	time.Sleep(150 * time.Millisecond)

	require.NoError(t, f.guarantees.Cancel(orgA, record.GuaranteeID))
}

func TestCancel_ClaimedGuarantee(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = f.guarantees.Claim(orgB, agent, record.GuaranteeID, decimal.Zero)
	require.NoError(t, err)

	err = f.guarantees.Cancel(orgB, record.GuaranteeID)
	assert.True(t, errs.Is(err, errs.KindAlreadyUsed))
}

func TestCancel_ClaimWinsRace(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)

	// A claim that commits after the cancel path has read the guarantee
	// must turn the conditional delete into a no-op.
	settlementRecord, err := settlement.NewFromGuarantee(record, agent, decimal.Zero)
	require.NoError(t, err)
	flipped, err := f.guarantees.db.ClaimGuarantee(record.GuaranteeID, settlementRecord)
	require.NoError(t, err)
	require.True(t, flipped)

	deleted, err := f.guarantees.db.DeleteUnclaimedGuarantee(record.GuaranteeID)
	require.NoError(t, err)
	assert.False(t, deleted)

	stored, err := f.guarantees.FromStorage(record.GuaranteeID)
	require.NoError(t, err)
	assert.True(t, stored.Claimed)
}

func TestGetForParty(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "1000.00", "EUR")

	record, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("400.00"), "EUR", time.Now().Add(time.Hour))
	require.NoError(t, err)

	for _, org := range []string{orgA, orgB} {
		got, err := f.guarantees.GetForParty(org, record.GuaranteeID)
		require.NoError(t, err)
		assert.Equal(t, record.GuaranteeID, got.GuaranteeID)
	}

	_, err = f.guarantees.GetForParty("org-c", record.GuaranteeID)
	assert.True(t, errs.Is(err, errs.KindAuthorization))

	_, err = f.guarantees.GetForParty(orgA, uuid.New().String())
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

// TestCreate_ConcurrentGuarantees exercises the per-(org, currency) lock:
// two concurrent guarantees that each fit the balance individually but
// not together must not both succeed.
func TestCreate_ConcurrentGuarantees(t *testing.T) {
	f := newFixture(t)
	f.fund(t, orgA, "100.00", "EUR")

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.guarantees.Create(orgA, agent, orgB, decimal.RequireFromString("60.00"), "EUR", time.Now().Add(time.Hour))
			results <- err
		}()
	}

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			assert.True(t, errs.Is(err, errs.KindInsufficientBalance))
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	assert.False(t, f.available(t, orgA, "EUR").IsNegative())
}
