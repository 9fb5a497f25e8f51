package money

import (
	"strings"
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: `10`, want: "10"},
		{name: "fraction", input: `0.125`, want: "0.125"},
		{name: "string number", input: `"19.99"`, want: "19.99"},
		{name: "negative", input: `-3`, want: "-3"},
		{name: "exponent", input: `1e2`, want: "100"},
		{name: "not a number", input: `"abc"`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
		{name: "exponent at bound", input: `1e18`, want: "1000000000000000000"},
		{name: "huge exponent", input: `"1e50000000"`, wantErr: true},
		{name: "huge negative exponent", input: `1e-50000000`, wantErr: true},
		{name: "too many digits", input: `"` + strings.Repeat("9", 39) + `"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJSON(jx.DecodeStr(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestDecodeJSON_OutOfRange(t *testing.T) {
	_, err := DecodeJSON(jx.DecodeStr(`"1e50000000"`))
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestEncodeJSON(t *testing.T) {
	var e jx.Encoder
	EncodeJSON(&e, decimal.RequireFromString("6.246875"))
	assert.Equal(t, `"6.246875"`, e.String())
}
