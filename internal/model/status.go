package model

// Authority status codes the bridge acts on
const (
	StatusAuthorized        = "100"
	StatusNoDocuments       = "137"
	StatusDocumentsLocated  = "138"
	StatusImproperUse       = "656"
	StatusEventRegistered   = "135"
	StatusEventLinkedToNote = "136"
)

// DefaultReason is used when a response carries a status code but no reason text
const DefaultReason = "Consulta realizada"

// AuthorityStatus is the outcome code and reason text of an authority response
type AuthorityStatus struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Outcome is the terminal state of a status-query response
type Outcome string

const (
	OutcomeReceived    Outcome = "received"
	OutcomeAuthorized  Outcome = "authorized"
	OutcomeLocated     Outcome = "located"
	OutcomeRejected    Outcome = "rejected"
	OutcomeUnparseable Outcome = "unparseable"
)

// Outcome classifies a parsed status-query status
func (s AuthorityStatus) Outcome() Outcome {
	switch s.Code {
	case "":
		return OutcomeUnparseable
	case StatusAuthorized:
		return OutcomeAuthorized
	default:
		return OutcomeRejected
	}
}

// Decodable reports whether documents carried by a response in this state
// may be decoded. Every other state is terminal.
func (o Outcome) Decodable() bool {
	return o == OutcomeAuthorized || o == OutcomeLocated
}

// DistributionOutcome classifies a distribution response: 138 with at least
// one docZip is Located, anything else follows the status-query rules
func DistributionOutcome(status AuthorityStatus, documents int) Outcome {
	if status.Code == StatusDocumentsLocated && documents > 0 {
		return OutcomeLocated
	}
	return status.Outcome()
}

// Authorized reports whether the note is authorized for use
func (s AuthorityStatus) Authorized() bool {
	return s.Code == StatusAuthorized
}

