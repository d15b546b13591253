package xml

import (
	"github.com/beevik/etree"

	"github.com/rezonia/sefaz-bridge/internal/model"
)

// Envelope tags around the information node
const (
	TagProcessed = "nfeProc"
	TagSigned    = "NFe"
	TagInfo      = "infNFe"
)

// infoQuery descends nfeProc > NFe > infNFe from whichever envelope the root
// is, and otherwise scans for the first infNFe anywhere in the tree
var infoQuery = Query{
	Paths: []Path{
		P(TagProcessed, TagSigned, TagInfo),
		P(TagSigned, TagInfo),
		P(TagInfo),
	},
	Namespaces: DocumentNamespaces,
	Fallback:   []string{TagInfo},
}

// Document is a fiscal document normalised to its information node.
// Info is never nil for a Document returned by NewDocument.
type Document struct {
	Root *etree.Element
	Info *etree.Element
}

// NewDocument normalises root to its information node
func NewDocument(root *etree.Element) (*Document, error) {
	info, err := Normalize(root)
	if err != nil {
		return nil, err
	}
	return &Document{Root: root, Info: info}, nil
}

// Normalize returns the infNFe node of a bare, signed or processed document
func Normalize(root *etree.Element) (*etree.Element, error) {
	if root == nil {
		return nil, model.NewStructureError(TagInfo, "empty document")
	}
	info := infoQuery.Resolve(root)
	if info == nil {
		return nil, model.NewStructureError(TagInfo, "information node not found in document")
	}
	return info, nil
}
