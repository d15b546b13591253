// Package nfelib provides a public API for extracting data from Brazilian
// NF-e documents and interpreting tax authority (SEFAZ) responses.
//
// Every function works on bytes already in hand; nothing here talks to the
// network.
//
// Example usage:
//
//	doc, err := nfelib.ParseDocument(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(doc.Recipient.Name, doc.State)
package nfelib

import (
	"github.com/rezonia/sefaz-bridge/internal/authority"
	"github.com/rezonia/sefaz-bridge/internal/fiscal"
	"github.com/rezonia/sefaz-bridge/internal/model"
	xmlparser "github.com/rezonia/sefaz-bridge/internal/parser/xml"
	"github.com/rezonia/sefaz-bridge/internal/payload"
)

// Re-export core types for public API
type (
	ParsedDocument  = model.ParsedDocument
	Recipient       = model.Recipient
	AccessKey       = model.AccessKey
	TaxIDKind       = model.TaxIDKind
	AuthorityStatus = model.AuthorityStatus
	Outcome         = model.Outcome
	DecodedPayload  = model.DecodedPayload
	PayloadEncoding = model.PayloadEncoding
	ErrorKind       = model.ErrorKind
)

// Re-export tax id kinds
const (
	TaxIDCNPJ    = model.TaxIDCNPJ
	TaxIDCPF     = model.TaxIDCPF
	TaxIDUnknown = model.TaxIDUnknown
)

// Re-export payload encodings
const (
	EncodingGzipBase64  = model.EncodingGzipBase64
	EncodingPlainBase64 = model.EncodingPlainBase64
	EncodingRaw         = model.EncodingRaw
)

// Re-export outcomes
const (
	OutcomeAuthorized  = model.OutcomeAuthorized
	OutcomeLocated     = model.OutcomeLocated
	OutcomeRejected    = model.OutcomeRejected
	OutcomeUnparseable = model.OutcomeUnparseable
)

// Re-export error types
type (
	SyntaxError         = model.SyntaxError
	StructureError      = model.StructureError
	PayloadDecodeError  = model.PayloadDecodeError
	StatusNotFoundError = model.StatusNotFoundError
	InvalidKeyError     = model.InvalidKeyError
	RejectedError       = model.RejectedError
)

// ParseDocument extracts the recipient, total and access key from an NF-e at
// any envelope depth. Missing fields are left empty.
func ParseDocument(data []byte) (*ParsedDocument, error) {
	return xmlparser.ParseDocument(data)
}

// DecodeDistributionPayload recovers the XML of a docZip payload
func DecodeDistributionPayload(text string) (DecodedPayload, error) {
	return payload.Decode(text)
}

// InterpretAuthorityResponse reads the status code and reason from a status
// query or distribution response
func InterpretAuthorityResponse(body []byte) (AuthorityStatus, error) {
	return authority.Interpret(body)
}

// ResolveStateFromKey returns the issuing state abbreviation of an access key
func ResolveStateFromKey(key string) (string, bool) {
	return fiscal.StateFromKey(key)
}

// CleanAccessKey strips formatting from a typed key and checks its length
func CleanAccessKey(raw string) (AccessKey, error) {
	return fiscal.CleanAccessKey(raw)
}

// KindOf returns the error class of err, or "" if it is not a library error
func KindOf(err error) ErrorKind {
	return model.KindOf(err)
}
