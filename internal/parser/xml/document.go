package xml

import (
	"github.com/beevik/etree"

	"github.com/rezonia/sefaz-bridge/internal/decimal"
	"github.com/rezonia/sefaz-bridge/internal/fiscal"
	"github.com/rezonia/sefaz-bridge/internal/model"
)

const tagRecipient = "dest"

// Queries are evaluated against the information node (recipient, total) or
// the recipient node (its fields), never against the raw root, so issuer
// fields of the same name under emit are not picked up.
var (
	recipientQuery = Query{
		Paths:      []Path{P(TagInfo, tagRecipient)},
		Namespaces: DocumentNamespaces,
		Fallback:   []string{tagRecipient},
	}

	nameQuery = fieldQuery(tagRecipient, "xNome", "xNomeDest", "nome", "xNomeDestinatario")

	// CNPJ is checked before CPF
	taxIDQuery = fieldQuery(tagRecipient, "CNPJ", "CPF", "idEstrangeiro")

	addressQuery = Query{
		Paths:      []Path{P(tagRecipient, "enderDest"), P(tagRecipient, "ender")},
		Namespaces: DocumentNamespaces,
		Fallback:   []string{"enderDest", "ender"},
	}

	totalQuery = Query{
		Paths:      []Path{P(TagInfo, "total", "ICMSTot", "vNF")},
		Namespaces: DocumentNamespaces,
		Fallback:   []string{"vNF"},
	}
)

// fieldQuery looks for the first of names directly under parent, then
// anywhere under it
func fieldQuery(parent string, names ...string) Query {
	q := Query{Namespaces: DocumentNamespaces, Fallback: names}
	for _, n := range names {
		q.Paths = append(q.Paths, P(parent, n))
	}
	return q
}

func addressField(name string) Query {
	return Query{
		Paths:      []Path{P("enderDest", name), P("ender", name)},
		Namespaces: DocumentNamespaces,
		Fallback:   []string{name},
	}
}

// ParseDocument parses an NF-e in any envelope depth and extracts the
// recipient, total value and access key
func ParseDocument(data []byte) (*model.ParsedDocument, error) {
	root, err := ParseTree(data)
	if err != nil {
		return nil, err
	}

	doc, err := NewDocument(root)
	if err != nil {
		return nil, err
	}

	return doc.Extract(), nil
}

// Extract builds the parsed view of doc. Every field is optional.
func (d *Document) Extract() *model.ParsedDocument {
	result := &model.ParsedDocument{
		Recipient: ExtractRecipient(d),
	}

	if key, ok := ResolveAccessKey(d); ok {
		result.AccessKey = key
		if uf, ok := fiscal.StateFromKey(string(key)); ok {
			result.State = uf
		}
	}
	return result
}

// ExtractRecipient reads the dest block and the note total from doc
func ExtractRecipient(doc *Document) model.Recipient {
	r := model.Recipient{TaxIDKind: model.TaxIDUnknown}
	if doc == nil {
		return r
	}

	if total, ok := totalQuery.ResolveText(doc.Info); ok {
		if amount, err := decimal.ParseAmount(total); err == nil {
			amount = decimal.Round2(amount)
			r.TotalValue = &amount
		}
	}

	dest := recipientQuery.Resolve(doc.Info)
	if dest == nil {
		return r
	}

	if name, ok := nameQuery.ResolveText(dest); ok {
		r.Name = name
	}

	if raw, ok := taxIDQuery.ResolveText(dest); ok {
		id := fiscal.FormatTaxID(raw)
		r.TaxIDDigits = id.Digits
		r.TaxIDKind = id.Kind
		r.TaxID = id.Formatted
	}

	addr := ExtractAddress(dest)
	if addr.Street != "" {
		r.Address = addr.Compose()
	}
	r.PostalCode = addr.FormattedPostalCode()

	return r
}

// ExtractAddress reads the enderDest components of a recipient node
func ExtractAddress(dest *etree.Element) fiscal.Address {
	ender := addressQuery.Resolve(dest)
	if ender == nil {
		return fiscal.Address{}
	}

	text := func(name string) string {
		v, _ := addressField(name).ResolveText(ender)
		return v
	}

	return fiscal.Address{
		Street:     text("xLgr"),
		Number:     text("nro"),
		Complement: text("xCpl"),
		District:   text("xBairro"),
		City:       text("xMun"),
		State:      text("UF"),
		PostalCode: text("CEP"),
	}
}
