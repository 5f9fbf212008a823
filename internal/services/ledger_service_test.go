package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruralpay/payments-engine/internal/models"
)

func TestTransactionLedger_Record(t *testing.T) {
	ledger := NewTransactionLedger()
	entry := models.LedgerEntry{
		TxID:     1,
		ClientID: 2,
		Kind:     models.EntryDeposit,
		Amount:   decimal.RequireFromString("1.5"),
	}

	t.Run("new entry", func(t *testing.T) {
		assert.NoError(t, ledger.Record(entry))
		assert.True(t, ledger.Contains(1))
		assert.Equal(t, 1, ledger.Len())
	})

	t.Run("duplicate id leaves ledger unchanged", func(t *testing.T) {
		dup := entry
		dup.ClientID = 9
		dup.Amount = decimal.RequireFromString("100")

		err := ledger.Record(dup)
		assert.ErrorIs(t, err, ErrDuplicateTransaction)
		assert.Equal(t, 1, ledger.Len())
		assert.Equal(t, models.ClientID(2), ledger.Lookup(1).ClientID)
		assert.True(t, ledger.Lookup(1).Amount.Equal(decimal.RequireFromString("1.5")))
	})
}

func TestTransactionLedger_Lookup(t *testing.T) {
	ledger := NewTransactionLedger()
	require.NoError(t, ledger.Record(models.LedgerEntry{TxID: 7, ClientID: 1, Kind: models.EntryWithdrawal}))

	t.Run("unknown id", func(t *testing.T) {
		assert.Nil(t, ledger.Lookup(8))
		assert.False(t, ledger.Contains(8))
	})

	t.Run("state changes are visible on later lookups", func(t *testing.T) {
		entry := ledger.Lookup(7)
		require.NotNil(t, entry)
		assert.Equal(t, models.DisputeNormal, entry.State)

		entry.State = models.DisputeDisputed
		assert.Equal(t, models.DisputeDisputed, ledger.Lookup(7).State)
	})

	t.Run("caller copy is not aliased", func(t *testing.T) {
		entry := models.LedgerEntry{TxID: 9, ClientID: 1}
		require.NoError(t, ledger.Record(entry))
		entry.State = models.DisputeChargedBack
		assert.Equal(t, models.DisputeNormal, ledger.Lookup(9).State)
	})
}
