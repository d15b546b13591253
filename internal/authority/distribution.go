package authority

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/sefaz-bridge/internal/model"
	xmlparser "github.com/rezonia/sefaz-bridge/internal/parser/xml"
	"github.com/rezonia/sefaz-bridge/internal/payload"
)

const tagDocument = "docZip"

// Schema prefixes of docZip payloads
const (
	SchemaProcessed = "procNFe"
	SchemaSummary   = "resNFe"
	SchemaEvent     = "procEventoNFe"
)

// Document is one docZip entry of a distribution response
type Document struct {
	NSU     string               `json:"nsu,omitempty"`
	Schema  string               `json:"schema,omitempty"`
	Payload model.DecodedPayload `json:"payload"`

	// Err is set when the payload could not be decoded; other entries of
	// the same response are unaffected
	Err error `json:"-"`
}

// Full reports whether the schema names a complete processed note
func (d Document) Full() bool {
	return strings.HasPrefix(d.Schema, SchemaProcessed)
}

// Distribution is an interpreted distDFeInt response
type Distribution struct {
	Status    model.AuthorityStatus `json:"status"`
	Documents []Document            `json:"documents,omitempty"`
}

// Located reports whether the response carries documents
func (d *Distribution) Located() bool {
	return d.Outcome() == model.OutcomeLocated
}

// Outcome is the terminal state of the response
func (d *Distribution) Outcome() model.Outcome {
	return model.DistributionOutcome(d.Status, len(d.Documents))
}

// ImproperUse reports the 656 rejection, usually cleared by a recipient
// manifestation
func (d *Distribution) ImproperUse() bool {
	return d.Status.Code == model.StatusImproperUse
}

// ParseDistribution interprets the status of a distribution response. Its
// documents are decoded only when the status allows it (100, or 138 with
// docZip entries); any other status is returned alone.
func ParseDistribution(body []byte) (*Distribution, error) {
	root, _ := xmlparser.ParseTree(body)

	status, err := interpret(root, body)
	if err != nil {
		return nil, err
	}

	dist := &Distribution{Status: status}
	elems := documentElements(root)
	if model.DistributionOutcome(status, len(elems)).Decodable() {
		dist.Documents = decodeDocuments(elems, payload.NewDecoder())
	}
	return dist, nil
}

func documentElements(root *etree.Element) []*etree.Element {
	if root == nil {
		return nil
	}
	return xmlparser.FindAll(root, tagDocument)
}

func decodeDocuments(elems []*etree.Element, decoder *payload.Decoder) []Document {
	var docs []Document
	for _, e := range elems {
		doc := Document{}
		doc.NSU, _ = xmlparser.Attr(e, "NSU")
		doc.Schema, _ = xmlparser.Attr(e, "schema")
		doc.Payload, doc.Err = decoder.Decode(e.Text())
		docs = append(docs, doc)
	}
	return docs
}
