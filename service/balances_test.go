package service

import (
	"context"
	"testing"

	"order-matching-core/models"
	"order-matching-core/staticerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletProcessor_RejectsNegativeBalance(t *testing.T) {
	persistence := &stubPersistence{}
	holder := NewBalancesHolder(persistence, NewSettingsCache(nil, nil))
	holder.SetBalance("c1", "USD", models.Balance{Balance: dec("10")})

	processor := holder.CreateWalletProcessor()
	err := processor.PreProcess([]models.WalletOperation{{
		ClientId: "c1",
		AssetId:  "USD",
		Amount:   dec("-20"),
	}}, false)
	assert.ErrorIs(t, err, staticerr.ErrorNegativeBalance)

	// The same delta is accepted when invalid balances are allowed.
	processor = holder.CreateWalletProcessor()
	assert.NoError(t, processor.PreProcess([]models.WalletOperation{{
		ClientId: "c1",
		AssetId:  "USD",
		Amount:   dec("-20"),
	}}, true))
}

func TestWalletProcessor_ApplyBeforePersistCommitsNothing(t *testing.T) {
	persistence := &stubPersistence{}
	holder := NewBalancesHolder(persistence, NewSettingsCache(nil, nil))
	holder.SetBalance("c1", "USD", models.Balance{Balance: dec("100")})

	processor := holder.CreateWalletProcessor()
	require.NoError(t, processor.PreProcess([]models.WalletOperation{{
		ClientId: "c1",
		AssetId:  "USD",
		Amount:   dec("-50"),
	}}, false))

	assert.Nil(t, processor.Apply())
	assert.Equal(t, "100", holder.GetBalance("c1", "USD").Balance.String())
}

func TestWalletProcessor_PersistThenApplyCollapsesUpdates(t *testing.T) {
	persistence := &stubPersistence{}
	holder := NewBalancesHolder(persistence, NewSettingsCache(nil, nil))
	holder.SetBalance("c1", "USD", models.Balance{Balance: dec("100"), Reserved: dec("30")})

	processor := holder.CreateWalletProcessor()
	require.NoError(t, processor.PreProcess([]models.WalletOperation{
		{ClientId: "c1", AssetId: "USD", ReservedAmount: dec("-30")},
		{ClientId: "c1", AssetId: "USD", ReservedAmount: dec("50")},
	}, false))

	require.True(t, processor.PersistBalances(context.Background(), &models.ProcessedMessage{MessageId: "m1"}, &models.OrderBooksDiff{}, 7))
	require.Len(t, persistence.commits, 1)
	assert.Equal(t, int64(7), persistence.commits[0].sequenceNumber)

	updates := processor.Apply()
	require.Len(t, updates, 1)
	assert.Equal(t, "30", updates[0].OldReserved.String())
	assert.Equal(t, "50", updates[0].NewReserved.String())
	assert.Equal(t, "50", holder.GetBalance("c1", "USD").Reserved.String())
}

func TestBalancesHolder_AvailableBalanceIncludesReleasable(t *testing.T) {
	holder := NewBalancesHolder(&stubPersistence{}, NewSettingsCache(nil, nil))
	holder.SetBalance("c1", "USD", models.Balance{Balance: dec("180"), Reserved: dec("100")})

	assert.Equal(t, "80", holder.GetAvailableBalance("c1", "USD", dec("0")).String())
	assert.Equal(t, "180", holder.GetAvailableBalance("c1", "USD", dec("100")).String())
}
