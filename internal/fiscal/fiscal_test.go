package fiscal_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/sefaz-bridge/internal/fiscal"
	"github.com/rezonia/sefaz-bridge/internal/model"
)

func TestFormatTaxID(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		formatted string
		digits    string
		kind      model.TaxIDKind
	}{
		{"bare CNPJ", "12345678000199", "12.345.678/0001-99", "12345678000199", model.TaxIDCNPJ},
		{"punctuated CNPJ", "12.345.678/0001-99", "12.345.678/0001-99", "12345678000199", model.TaxIDCNPJ},
		{"bare CPF", "12345678901", "123.456.789-01", "12345678901", model.TaxIDCPF},
		{"punctuated CPF", " 123.456.789-01 ", "123.456.789-01", "12345678901", model.TaxIDCPF},
		{"too short", "1234", "", "1234", model.TaxIDUnknown},
		{"foreign id", "AB-99887766", "", "99887766", model.TaxIDUnknown},
		{"empty", "", "", "", model.TaxIDUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := fiscal.FormatTaxID(tt.raw)
			assert.Equal(t, tt.formatted, id.Formatted)
			assert.Equal(t, tt.digits, id.Digits)
			assert.Equal(t, tt.kind, id.Kind)
		})
	}
}

func TestFormatTaxID_CNPJIdempotent(t *testing.T) {
	inputs := []string{"00000000000000", "12345678000199", "99999999999999", "04252011000110"}

	for _, in := range inputs {
		first := fiscal.FormatTaxID(in)
		second := fiscal.FormatTaxID(first.Formatted)
		assert.Equal(t, first.Formatted, second.Formatted, in)
		assert.Equal(t, model.TaxIDCNPJ, second.Kind)
	}
}

func TestFormatTaxID_OtherLengthsVerbatim(t *testing.T) {
	for n := 0; n <= 20; n++ {
		if n == 11 || n == 14 {
			continue
		}
		digits := strings.Repeat("7", n)

		id := fiscal.FormatTaxID(digits)
		assert.Equal(t, digits, id.Digits)
		assert.Equal(t, digits, id.String())
		assert.False(t, id.Classified())
	}
}

func TestHolderTaxID(t *testing.T) {
	id, ok := fiscal.HolderTaxID("EMPRESA EXEMPLO LTDA:12345678000199")
	require.True(t, ok)
	assert.Equal(t, "12.345.678/0001-99", id.Formatted)

	_, ok = fiscal.HolderTaxID("EMPRESA EXEMPLO LTDA")
	assert.False(t, ok)

	_, ok = fiscal.HolderTaxID("EMPRESA:123")
	assert.False(t, ok)
}

func TestAddress_Compose(t *testing.T) {
	tests := []struct {
		name     string
		addr     fiscal.Address
		expected string
	}{
		{
			name:     "street city and state",
			addr:     fiscal.Address{Street: "Rua A", City: "X", State: "Y"},
			expected: "Rua A - X/Y",
		},
		{
			name:     "street number district",
			addr:     fiscal.Address{Street: "Rua A", Number: "10", District: "Centro"},
			expected: "Rua A, 10 - Centro",
		},
		{
			name: "all fields",
			addr: fiscal.Address{
				Street: "Av. Afonso Pena", Number: "1500", Complement: "Sala 3",
				District: "Centro", City: "Belo Horizonte", State: "MG",
			},
			expected: "Av. Afonso Pena, 1500 - Sala 3 - Centro - Belo Horizonte/MG",
		},
		{
			name:     "state without city",
			addr:     fiscal.Address{Street: "Rua B", Number: "S/N", State: "SP"},
			expected: "Rua B, S/N - SP",
		},
		{
			name:     "street only",
			addr:     fiscal.Address{Street: "  Rua C  "},
			expected: "Rua C",
		},
		{
			name:     "whitespace fields are absent",
			addr:     fiscal.Address{Street: "Rua D", Number: " ", Complement: "\t", City: "Z"},
			expected: "Rua D - Z",
		},
		{
			name:     "no street",
			addr:     fiscal.Address{Number: "10", District: "Centro", City: "X", State: "Y"},
			expected: "",
		},
		{
			name:     "postal code is not composed",
			addr:     fiscal.Address{Street: "Rua E", PostalCode: "30130-000"},
			expected: "Rua E",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.addr.Compose())
		})
	}
}

func TestAddress_FormattedPostalCode(t *testing.T) {
	assert.Equal(t, "30130-000", fiscal.Address{PostalCode: "30130000"}.FormattedPostalCode())
	assert.Equal(t, "30130-000", fiscal.Address{PostalCode: "30.130-000"}.FormattedPostalCode())
	assert.Equal(t, "123", fiscal.Address{PostalCode: "123"}.FormattedPostalCode())
}

func TestStateFromKey(t *testing.T) {
	uf, ok := fiscal.StateFromKey("31240112345678000199550010000012341123456789")
	require.True(t, ok)
	assert.Equal(t, "MG", uf)

	_, ok = fiscal.StateFromKey("99240112345678000199550010000012341123456789")
	assert.False(t, ok)

	_, ok = fiscal.StateFromKey("3")
	assert.False(t, ok)
}

func TestStateTable(t *testing.T) {
	states := fiscal.States()
	require.Len(t, states, 27)

	for _, uf := range states {
		code, ok := fiscal.IBGECode(uf)
		require.True(t, ok, uf)

		back, ok := fiscal.StateFromCode(code)
		require.True(t, ok, code)
		assert.Equal(t, uf, back)
	}

	assert.True(t, fiscal.ValidState("sp"))
	assert.False(t, fiscal.ValidState("XX"))
}

func TestCleanAccessKey(t *testing.T) {
	key, err := fiscal.CleanAccessKey("3124 0112 3456 7800 0199 5500 1000 0012 3411 2345 6789")
	require.NoError(t, err)
	assert.Equal(t, model.AccessKey("31240112345678000199550010000012341123456789"), key)

	_, err = fiscal.CleanAccessKey(strings.Repeat("1", 52))
	require.Error(t, err)
	var keyErr *model.InvalidKeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, 52, keyErr.Digits)
	assert.Contains(t, keyErr.Message, "NFS-e")

	_, err = fiscal.CleanAccessKey("123")
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, 3, keyErr.Digits)
}
