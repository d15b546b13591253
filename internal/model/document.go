package model

import (
	"github.com/shopspring/decimal"
)

// TaxIDKind classifies a Brazilian taxpayer identifier by digit count
type TaxIDKind string

const (
	TaxIDCNPJ    TaxIDKind = "CNPJ"
	TaxIDCPF     TaxIDKind = "CPF"
	TaxIDUnknown TaxIDKind = "unknown"
)

// Recipient holds the recipient (destinatário) data extracted from a document.
// Every field is optional; empty strings and a nil TotalValue mean "not present".
type Recipient struct {
	Name string `json:"name,omitempty"`

	// TaxID is the formatted CNPJ/CPF; empty unless TaxIDKind is CNPJ or CPF
	TaxID       string    `json:"tax_id,omitempty"`
	TaxIDDigits string    `json:"tax_id_digits,omitempty"`
	TaxIDKind   TaxIDKind `json:"tax_id_kind"`

	Address    string           `json:"address,omitempty"`
	PostalCode string           `json:"postal_code,omitempty"`
	TotalValue *decimal.Decimal `json:"total_value,omitempty"`
}

// AccessKeyLength is the number of digits in an NF-e access key
const AccessKeyLength = 44

// AccessKey is the 44-digit chave de acesso
type AccessKey string

// Valid reports whether the key is exactly 44 ASCII digits
func (k AccessKey) Valid() bool {
	if len(k) != AccessKeyLength {
		return false
	}
	for i := 0; i < len(k); i++ {
		if k[i] < '0' || k[i] > '9' {
			return false
		}
	}
	return true
}

// StateCode returns the two-digit IBGE code of the issuing state
func (k AccessKey) StateCode() string {
	if len(k) < 2 {
		return ""
	}
	return string(k[:2])
}

// IssuerTaxID returns the issuer CNPJ embedded at positions 7-20
func (k AccessKey) IssuerTaxID() string {
	if !k.Valid() {
		return ""
	}
	return string(k[6:20])
}

// Model returns the document model embedded at positions 21-22 (55 NF-e, 65 NFC-e)
func (k AccessKey) Model() string {
	if !k.Valid() {
		return ""
	}
	return string(k[20:22])
}

// ParsedDocument is the result of extracting a single fiscal document
type ParsedDocument struct {
	Recipient Recipient `json:"recipient"`
	AccessKey AccessKey `json:"access_key,omitempty"`
	State     string    `json:"state,omitempty"`
}

// HasAccessKey reports whether the access key was resolved
func (d *ParsedDocument) HasAccessKey() bool {
	return d.AccessKey != ""
}

// PayloadEncoding describes how a distribution payload was encoded on the wire
type PayloadEncoding string

const (
	EncodingGzipBase64  PayloadEncoding = "gzip+base64"
	EncodingPlainBase64 PayloadEncoding = "base64"
	EncodingRaw         PayloadEncoding = "raw"
)

// DecodedPayload is a distribution payload recovered as XML text
type DecodedPayload struct {
	XML      string          `json:"xml"`
	Encoding PayloadEncoding `json:"encoding"`
}
