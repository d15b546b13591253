package xml

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/rezonia/sefaz-bridge/internal/model"
)

// XML namespaces seen in authority documents and responses
const (
	NFeNamespace    = "http://www.portalfiscal.inf.br/nfe"
	SOAP11Namespace = "http://schemas.xmlsoap.org/soap/envelope/"
	SOAP12Namespace = "http://www.w3.org/2003/05/soap-envelope"

	// NoNamespace matches elements outside any namespace
	NoNamespace = ""
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseTree parses data into an element tree and returns its root element.
// A leading BOM and surrounding whitespace are ignored; non-UTF-8 encodings
// declared in the prolog (ISO-8859-1, windows-1252) are transcoded.
func ParseTree(data []byte) (*etree.Element, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), utf8BOM)
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, model.NewSyntaxError("empty document", nil)
	}

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, model.NewSyntaxError("failed to parse XML", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, model.NewSyntaxError("no root element", nil)
	}
	return root, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "utf-8" || label == "utf8" {
		return input, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
