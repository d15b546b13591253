package server

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/sefaz-bridge/internal/model"
)

// XMLRequest is the body of the XML extraction endpoints
type XMLRequest struct {
	XML string `json:"xml"`
}

// PayloadRequest is the body of the decode endpoint
type PayloadRequest struct {
	Payload string `json:"payload"`
}

// RecipientResponse is the flat view returned by parse-xml
type RecipientResponse struct {
	Name       string           `json:"name"`
	Address    string           `json:"address"`
	TaxID      string           `json:"tax_id"`
	TotalValue *decimal.Decimal `json:"total_value"`
}

// ExtractResponse is the response for the extract endpoints
type ExtractResponse struct {
	Success   bool                  `json:"success"`
	AccessKey string                `json:"access_key"`
	KeyFound  bool                  `json:"key_found"`
	Filename  string                `json:"filename,omitempty"`
	Document  *model.ParsedDocument `json:"document"`
	Warnings  []string              `json:"warnings,omitempty"`
}

// DecodeResponse is the response for the decode endpoint
type DecodeResponse struct {
	Encoding model.PayloadEncoding `json:"encoding"`
	XML      string                `json:"xml"`
}

// StatusResponse is the response for the interpret endpoint
type StatusResponse struct {
	Status    model.AuthorityStatus `json:"status"`
	Outcome   model.Outcome         `json:"outcome"`
	Located   bool                  `json:"located"`
	Documents int                   `json:"documents"`
	Document  *model.ParsedDocument `json:"document,omitempty"`
	Warnings  []string              `json:"warnings,omitempty"`
}

// StateResponse is the response for the state endpoint
type StateResponse struct {
	AccessKey string `json:"access_key"`
	Code      string `json:"code"`
	UF        string `json:"uf"`
}

// CertificateResponse describes the certificate in use
type CertificateResponse struct {
	Configured   bool       `json:"configured"`
	Source       string     `json:"source,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	UF           string     `json:"uf,omitempty"`
	Homologation bool       `json:"homologacao"`
	Holder       string     `json:"holder,omitempty"`
	Subject      string     `json:"subject,omitempty"`
	NotAfter     *time.Time `json:"not_after,omitempty"`
	Expired      bool       `json:"expired,omitempty"`
	Trusted      *bool      `json:"trusted,omitempty"`
	Revoked      *bool      `json:"revoked,omitempty"`
	Message      string     `json:"message,omitempty"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Kind      string                 `json:"kind,omitempty"`
	Status    *model.AuthorityStatus `json:"status,omitempty"`
	Warnings  []string               `json:"warnings,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}
