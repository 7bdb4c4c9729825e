package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignalFlexibleNumbers(t *testing.T) {
	sig, err := ParseSignal([]byte(`{
		"symbol": " MES1! ",
		"price": "5000.25",
		"quantity": 2,
		"data": "Long",
		"type": "5",
		"trailPrice": 4123.3,
		"partial_close": {"target_rr": "1.5", "size": 2},
		"full_close": {"target_rr": 3},
		"multiple_accounts": [
			{"account_id": "7", "quantity_multiplier": "1.5"},
			{"account_id": 8}
		]
	}`), DefaultPolicy)
	require.NoError(t, err)

	assert.Equal(t, "MES1!", sig.Symbol)
	assert.Equal(t, ActionOpen, sig.Action)
	require.NotNil(t, sig.Price)
	assert.Equal(t, 5000.25, *sig.Price)
	require.NotNil(t, sig.Quantity)
	assert.Equal(t, 2.0, *sig.Quantity)
	require.NotNil(t, sig.Direction)
	assert.Equal(t, "Long", *sig.Direction)
	assert.Equal(t, OrderTypeTrailingStop, sig.OrderType)
	assert.True(t, sig.OrderType.IsTrailing())
	require.NotNil(t, sig.TrailPrice)
	assert.Equal(t, 4123.3, *sig.TrailPrice)

	require.NotNil(t, sig.PartialCloseRR)
	assert.Equal(t, 1.5, *sig.PartialCloseRR)
	require.NotNil(t, sig.PartialCloseSize)
	assert.Equal(t, 2, *sig.PartialCloseSize)
	require.NotNil(t, sig.FullCloseRR)
	assert.Equal(t, 3.0, *sig.FullCloseRR)

	assert.Equal(t, []AccountTarget{
		{AccountID: 7, QuantityMultiplier: 1.5},
		{AccountID: 8, QuantityMultiplier: 1},
	}, sig.Accounts)
}

func TestParseSignalDefaults(t *testing.T) {
	sig, err := ParseSignal([]byte(`{"symbol":"MNQ1!","price":null,"quantity":""}`), DefaultPolicy)
	require.NoError(t, err)

	assert.Equal(t, ActionOpen, sig.Action)
	assert.Nil(t, sig.Price)
	assert.Nil(t, sig.Quantity)
	assert.Nil(t, sig.Direction)
	assert.Equal(t, OrderTypeMarket, sig.OrderType)
	assert.Empty(t, sig.Accounts)

	assert.Equal(t, [5]float64{1, 2, 3, 4, 5}, DefaultPolicy.RiskRewards(sig))
}

func TestParseSignalActions(t *testing.T) {
	cases := map[string]Action{
		`{"symbol":"A","action":"close"}`:           ActionClose,
		`{"symbol":"A","action":" Partial_Close "}`: ActionPartialClose,
		`{"symbol":"A","action":"open"}`:            ActionOpen,
		`{"symbol":"A","action":"flip"}`:            ActionOpen,
		`{"symbol":"A"}`:                            ActionOpen,
	}
	for body, want := range cases {
		sig, err := ParseSignal([]byte(body), DefaultPolicy)
		require.NoError(t, err, body)
		assert.Equal(t, want, sig.Action, body)
	}
}

func TestParseSignalMissingSymbolIsNotAnError(t *testing.T) {
	sig, err := ParseSignal([]byte(`{"action":"close","accountId":7}`), DefaultPolicy)
	require.NoError(t, err)
	assert.Empty(t, sig.Symbol)

	id, ok := sig.CloseAccount()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestParseSignalRejectsMalformed(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"symbol":"A","price":"abc"}`,
		`{"symbol":"A","multiple_accounts":[{"quantity_multiplier":2}]}`,
	} {
		_, err := ParseSignal([]byte(body), DefaultPolicy)
		require.Error(t, err, body)
		assert.True(t, IsKind(err, KindValidation), body)
	}
}

func TestCloseAccount(t *testing.T) {
	top := int64(3)
	sig := TradeSignal{AccountID: &top, Accounts: []AccountTarget{{AccountID: 9}}}
	id, ok := sig.CloseAccount()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	sig.AccountID = nil
	id, _ = sig.CloseAccount()
	assert.Equal(t, int64(9), id)

	_, ok = TradeSignal{}.CloseAccount()
	assert.False(t, ok)
}

func TestIsLong(t *testing.T) {
	assert.True(t, IsLong("long"))
	assert.True(t, IsLong("GO LONG"))
	assert.False(t, IsLong("short"))
	assert.False(t, IsLong(""))
	assert.Equal(t, SideShort, SideFromDirection("sell"))
}
