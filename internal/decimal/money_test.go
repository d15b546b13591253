package decimal_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/sefaz-bridge/internal/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"dot separator", "1500.00", "1500"},
		{"with whitespace", "  250.5 ", "250.5"},
		{"brazilian notation", "1.234,56", "1234.56"},
		{"currency prefix", "R$ 99,90", "99.9"},
		{"integer", "42", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.ParseAmount(tt.input)
			require.NoError(t, err)
			assert.True(t, d.Equal(dec.RequireFromString(tt.expected)), "got %s", d.String())
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	_, err := decimal.ParseAmount("")
	require.Error(t, err)

	_, err = decimal.ParseAmount("abc")
	require.Error(t, err)
}

func TestRound2(t *testing.T) {
	d := decimal.Round2(dec.RequireFromString("10.555"))
	assert.True(t, d.Equal(dec.RequireFromString("10.56")))
}

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0", "R$ 0,00"},
		{"99.9", "R$ 99,90"},
		{"1234.56", "R$ 1.234,56"},
		{"1234567.8", "R$ 1.234.567,80"},
		{"-500", "-R$ 500,00"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, decimal.FormatBRL(dec.RequireFromString(tt.input)))
		})
	}
}

func TestIsPositive(t *testing.T) {
	assert.True(t, decimal.IsPositive(dec.NewFromInt(1)))
	assert.False(t, decimal.IsPositive(dec.Zero))
	assert.False(t, decimal.IsPositive(dec.NewFromInt(-1)))
}
