package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{name: "valid code", code: "EUR"},
		{name: "valid zero-exponent code", code: "JPY"},
		{name: "lowercase code", code: "eur", wantErr: true},
		{name: "too short", code: "EU", wantErr: true},
		{name: "unknown code", code: "XXX", wantErr: true},
		{name: "empty code", code: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.code)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, got)
		})
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		code    string
		wantErr bool
	}{
		{name: "two decimal places", raw: "100.50", code: "EUR"},
		{name: "integer amount", raw: "100", code: "EUR"},
		{name: "excess precision", raw: "100.505", code: "EUR", wantErr: true},
		{name: "zero amount", raw: "0", code: "EUR", wantErr: true},
		{name: "negative amount", raw: "-5.00", code: "EUR", wantErr: true},
		{name: "not a decimal", raw: "ten", code: "EUR", wantErr: true},
		{name: "fraction on zero-exponent currency", raw: "100.5", code: "JPY", wantErr: true},
		{name: "integer on zero-exponent currency", raw: "100", code: "JPY"},
		{name: "three decimals on three-exponent currency", raw: "1.234", code: "BHD"},
		{name: "unknown currency", raw: "100.00", code: "XXX", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.raw, tt.code)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.raw)))
		})
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	got, err := Format(decimal.RequireFromString("100.5"), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "100.50", got)

	got, err = Format(decimal.RequireFromString("100"), "JPY")
	require.NoError(t, err)
	assert.Equal(t, "100", got)

	// Provider-supplied rates can carry excess precision.
	got, err = Format(decimal.RequireFromString("456.6789"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "456.68", got)

	_, err = Format(decimal.New(1, 0), "XXX")
	assert.Error(t, err)
}

func TestExponent(t *testing.T) {
	t.Parallel()

	exp, err := Exponent("KWD")
	require.NoError(t, err)
	assert.Equal(t, int32(3), exp)

	_, err = Exponent("BTC")
	assert.Error(t, err)
}
