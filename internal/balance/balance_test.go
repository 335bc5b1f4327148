package balance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windingtree/simard/internal/database"
	"github.com/windingtree/simard/internal/types"
	"gorm.io/gorm"
)

const (
	orgA = "org-a"
	orgB = "org-b"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.NewTestDatabase()
	require.NoError(t, err)
	return NewService(db), db
}

func seedSettlement(t *testing.T, db *gorm.DB, initiator, beneficiary, amount, currency string) {
	t.Helper()
	require.NoError(t, db.Create(&types.Settlement{
		SettlementID: uuid.New().String(),
		Initiator:    initiator,
		Beneficiary:  beneficiary,
		Amount:       decimal.RequireFromString(amount),
		Currency:     currency,
	}).Error)
}

func seedGuarantee(t *testing.T, db *gorm.DB, initiator, beneficiary, amount, currency string, claimed bool) {
	t.Helper()
	require.NoError(t, db.Create(&types.Guarantee{
		GuaranteeID: uuid.New().String(),
		Initiator:   initiator,
		Beneficiary: beneficiary,
		Amount:      decimal.RequireFromString(amount),
		Currency:    currency,
		Expiration:  time.Now().Add(time.Hour),
		Claimed:     claimed,
	}).Error)
}

func TestTotal_CreditsMinusDebits(t *testing.T) {
	service, db := newTestService(t)

	seedSettlement(t, db, "faucet", orgA, "5000.00", "EUR")
	seedSettlement(t, db, orgA, orgB, "1500.00", "EUR")
	seedSettlement(t, db, orgA, orgB, "500.00", "EUR")

	total, err := service.Total(orgA, "EUR")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("3000.00")), "got %s", total)

	total, err = service.Total(orgB, "EUR")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("2000.00")), "got %s", total)
}

func TestTotal_ExactDecimalAggregation(t *testing.T) {
	service, db := newTestService(t)

	// Repeated cent amounts must sum exactly. A float aggregation would
	// produce 0.30000000000000004 here.
	for i := 0; i < 3; i++ {
		seedSettlement(t, db, "faucet", orgA, "0.10", "EUR")
	}

	total, err := service.Total(orgA, "EUR")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("0.30")), "got %s", total)
	assert.Equal(t, int32(-2), total.Exponent())
}

func TestTotal_EmptyLedgerIsZero(t *testing.T) {
	service, _ := newTestService(t)

	total, err := service.Total(orgA, "EUR")
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestReservedAndClaimable_UnclaimedGuaranteesOnly(t *testing.T) {
	service, db := newTestService(t)

	seedSettlement(t, db, "faucet", orgA, "1000.00", "EUR")
	seedGuarantee(t, db, orgA, orgB, "300.00", "EUR", false)
	seedGuarantee(t, db, orgA, orgB, "200.00", "EUR", false)
	// Claimed guarantees no longer reserve anything.
	seedGuarantee(t, db, orgA, orgB, "400.00", "EUR", true)

	reserved, err := service.Reserved(orgA, "EUR")
	require.NoError(t, err)
	assert.True(t, reserved.Equal(decimal.RequireFromString("500.00")), "got %s", reserved)

	claimable, err := service.Claimable(orgB, "EUR")
	require.NoError(t, err)
	assert.True(t, claimable.Equal(decimal.RequireFromString("500.00")), "got %s", claimable)

	available, err := service.Available(orgA, "EUR")
	require.NoError(t, err)
	assert.True(t, available.Equal(decimal.RequireFromString("500.00")), "got %s", available)
}

func TestAvailable_PerCurrencyIsolation(t *testing.T) {
	service, db := newTestService(t)

	seedSettlement(t, db, "faucet", orgA, "1000.00", "EUR")
	seedSettlement(t, db, "faucet", orgA, "800.00", "USD")
	seedGuarantee(t, db, orgA, orgB, "1000.00", "EUR", false)

	available, err := service.Available(orgA, "EUR")
	require.NoError(t, err)
	assert.True(t, available.IsZero())

	available, err = service.Available(orgA, "USD")
	require.NoError(t, err)
	assert.True(t, available.Equal(decimal.RequireFromString("800.00")), "got %s", available)
}

// TestGet_ValueConservation checks that a settlement between two
// organizations moves value without creating or destroying it.
func TestGet_ValueConservation(t *testing.T) {
	service, db := newTestService(t)

	seedSettlement(t, db, "faucet", orgA, "5000.00", "EUR")

	before, err := service.Total(orgA, "EUR")
	require.NoError(t, err)

	seedSettlement(t, db, orgA, orgB, "2500.00", "EUR")

	afterA, err := service.Total(orgA, "EUR")
	require.NoError(t, err)
	afterB, err := service.Total(orgB, "EUR")
	require.NoError(t, err)

	assert.True(t, afterA.Add(afterB).Equal(before))
}

func TestRetrieveAll_OneSnapshotPerCreditedCurrency(t *testing.T) {
	service, db := newTestService(t)

	seedSettlement(t, db, "faucet", orgA, "1000.00", "EUR")
	seedSettlement(t, db, "faucet", orgA, "200.00", "USD")
	seedSettlement(t, db, "faucet", orgB, "300.00", "GBP")

	snapshots, err := service.RetrieveAll(orgA)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	currencies := map[string]bool{}
	for _, snapshot := range snapshots {
		currencies[snapshot.Currency] = true
		assert.Equal(t, orgA, snapshot.OrgID)
	}
	assert.True(t, currencies["EUR"])
	assert.True(t, currencies["USD"])
}
