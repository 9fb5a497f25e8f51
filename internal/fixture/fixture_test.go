package fixture

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
)

const sample = `{
  "version": 1,
  "rebates": [
    {"id": "rebate1", "incentive": "fixed_cash_amount", "amount": "100"},
    {"id": "rebate2", "incentive": "fixed_rate_rebate", "percentage": 0.1, "note": "ten percent"}
  ],
  "products": [
    {"id": "product1", "price": "0", "supportedIncentives": ["fixed_cash_amount"]},
    {"id": "product2", "price": 200, "uom": "kg", "supportedIncentives": ["fixed_rate_rebate", "amount_per_uom"]}
  ]
}`

func TestDecode(t *testing.T) {
	fx, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, fx.Rebates, 2)
	assert.Equal(t, "rebate1", fx.Rebates[0].ID)
	assert.Equal(t, incentive.FixedCashAmount, fx.Rebates[0].Incentive)
	assert.True(t, decimal.NewFromInt(100).Equal(fx.Rebates[0].Amount))
	assert.Equal(t, incentive.FixedRateRebate, fx.Rebates[1].Incentive)
	assert.True(t, decimal.RequireFromString("0.1").Equal(fx.Rebates[1].Percentage))

	require.Len(t, fx.Products, 2)
	assert.Equal(t, "product2", fx.Products[1].ID)
	assert.Equal(t, "kg", fx.Products[1].UOM)
	assert.True(t, decimal.NewFromInt(200).Equal(fx.Products[1].Price))
	assert.True(t, fx.Products[1].Supports(incentive.FixedRateRebate))
	assert.True(t, fx.Products[1].Supports(incentive.AmountPerUom))
	assert.False(t, fx.Products[1].Supports(incentive.FixedCashAmount))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "duplicate rebate",
			input:   `{"rebates":[{"id":"r1","incentive":"amount_per_uom"},{"id":"r1","incentive":"amount_per_uom"}]}`,
			wantMsg: `duplicate rebate id "r1"`,
		},
		{
			name:    "duplicate product",
			input:   `{"products":[{"id":"p1"},{"id":"p1"}]}`,
			wantMsg: `duplicate product id "p1"`,
		},
		{
			name:    "unknown incentive",
			input:   `{"rebates":[{"id":"r1","incentive":"loyalty"}]}`,
			wantMsg: "unknown incentive type",
		},
		{
			name:    "missing id",
			input:   `{"products":[{"price":"1"}]}`,
			wantMsg: "id is required",
		},
		{
			name:    "bad amount",
			input:   `{"rebates":[{"id":"r1","amount":"ten"}]}`,
			wantMsg: `field "amount"`,
		},
		{
			name:    "not an object",
			input:   `[]`,
			wantMsg: "decode fixture",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("testdata/does-not-exist.json")
	require.Error(t, err)
}
