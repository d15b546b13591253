package xml

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/sefaz-bridge/internal/model"
)

const (
	// IDPrefix is prepended to the access key in the infNFe Id attribute
	IDPrefix = "NFe"

	idAttr = "Id"
	tagKey = "chNFe"
)

var keyQuery = Query{
	Paths: []Path{
		P(TagProcessed, "protNFe", "infProt", tagKey),
		P(AnyDepth, tagKey),
	},
	Namespaces: DocumentNamespaces,
	Fallback:   []string{tagKey},
}

// ResolveAccessKey recovers the 44-digit access key of doc. It tries, in
// order, the chNFe element, the Id attribute of the information node, and
// the first element anywhere with an "NFe"-prefixed Id. A missing key is
// reported as false, not as an error.
func ResolveAccessKey(doc *Document) (model.AccessKey, bool) {
	if doc == nil {
		return "", false
	}

	if e := keyQuery.ResolveFunc(doc.Root, func(e *etree.Element) bool {
		return model.AccessKey(strings.TrimSpace(e.Text())).Valid()
	}); e != nil {
		return model.AccessKey(strings.TrimSpace(e.Text())), true
	}

	if id, ok := Attr(doc.Info, idAttr); ok {
		if key := model.AccessKey(strings.TrimPrefix(strings.TrimSpace(id), IDPrefix)); key.Valid() {
			return key, true
		}
	}

	var key model.AccessKey
	walk(doc.Root, func(e *etree.Element) bool {
		id, ok := Attr(e, idAttr)
		id = strings.TrimSpace(id)
		if !ok || !strings.HasPrefix(id, IDPrefix) {
			return true
		}
		if k := model.AccessKey(strings.TrimPrefix(id, IDPrefix)); k.Valid() {
			key = k
			return false
		}
		return true
	})
	return key, key != ""
}
