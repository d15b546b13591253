// Package fiscal holds the Brazilian fiscal formatting rules used when
// extracting NF-e data: CPF/CNPJ formatting, postal address composition and
// the IBGE state-code table.
package fiscal

import (
	"strings"

	"github.com/rezonia/sefaz-bridge/internal/model"
)

const (
	cnpjLength = 14
	cpfLength  = 11
)

// Identity is a taxpayer identifier after digit stripping and classification
type Identity struct {
	Digits    string
	Formatted string
	Kind      model.TaxIDKind
}

// String returns the formatted identifier, or the bare digits when unclassified
func (i Identity) String() string {
	if i.Formatted != "" {
		return i.Formatted
	}
	return i.Digits
}

// Classified reports whether the identifier is a CPF or a CNPJ
func (i Identity) Classified() bool {
	return i.Kind == model.TaxIDCNPJ || i.Kind == model.TaxIDCPF
}

// FormatTaxID strips punctuation from raw and formats it as a CNPJ or CPF.
// Any other length is returned as bare digits with kind unknown.
func FormatTaxID(raw string) Identity {
	digits := Digits(raw)
	switch len(digits) {
	case cnpjLength:
		return Identity{
			Digits:    digits,
			Formatted: digits[:2] + "." + digits[2:5] + "." + digits[5:8] + "/" + digits[8:12] + "-" + digits[12:],
			Kind:      model.TaxIDCNPJ,
		}
	case cpfLength:
		return Identity{
			Digits:    digits,
			Formatted: digits[:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:],
			Kind:      model.TaxIDCPF,
		}
	default:
		return Identity{Digits: digits, Kind: model.TaxIDUnknown}
	}
}

// Digits returns the ASCII digits of s in order
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// HolderTaxID extracts the CNPJ/CPF from an ICP-Brasil certificate common
// name, which carries it after the last colon ("EMPRESA LTDA:12345678000199").
func HolderTaxID(commonName string) (Identity, bool) {
	idx := strings.LastIndexByte(commonName, ':')
	if idx < 0 {
		return Identity{}, false
	}
	id := FormatTaxID(commonName[idx+1:])
	return id, id.Classified()
}
