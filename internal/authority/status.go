// Package authority interprets SEFAZ web service responses and drives the
// status query / distribution workflow for a single access key.
package authority

import (
	"html"
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/sefaz-bridge/internal/model"
	xmlparser "github.com/rezonia/sefaz-bridge/internal/parser/xml"
)

const (
	tagStatus = "cStat"
	tagReason = "xMotivo"
)

// responseNamespaces is the priority order for status elements: SOAP 1.1,
// SOAP 1.2, the NF-e namespace, then none
var responseNamespaces = []string{
	xmlparser.SOAP11Namespace,
	xmlparser.SOAP12Namespace,
	xmlparser.NFeNamespace,
	xmlparser.NoNamespace,
}

// field is the three-tier search for one status element
type field struct {
	structural xmlparser.Query
	scan       xmlparser.Query
	pattern    *regexp.Regexp
	accept     func(*etree.Element) bool
}

var (
	statusField = newField(tagStatus, `(\d+)`, isCode)
	reasonField = newField(tagReason, `(.*?)`, hasText)
)

func newField(tag, value string, accept func(*etree.Element) bool) field {
	return field{
		structural: xmlparser.Query{
			Paths: []xmlparser.Path{
				xmlparser.P("Envelope", "Body", xmlparser.AnyDepth, xmlparser.AnyNamespace+":"+tag),
				xmlparser.P(xmlparser.AnyDepth, tag),
			},
			Namespaces: responseNamespaces,
		},
		scan: xmlparser.Query{
			Fallback: []string{tag},
			FoldCase: true,
		},
		// matches <cStat>, <ns:cStat attr=".."> and their escaped forms
		pattern: regexp.MustCompile(`(?is)(?:<|&lt;)(?:[\w.-]+:)?` + tag + `(?:\s[^>&]*)?(?:>|&gt;)\s*` +
			value + `\s*(?:<|&lt;)/(?:[\w.-]+:)?` + tag + `\s*(?:>|&gt;)`),
		accept: accept,
	}
}

// lookup runs the structural query, the case-insensitive scan and finally
// the raw text pattern. root may be nil when the body is not parseable.
func (f field) lookup(root *etree.Element, body []byte) (string, bool) {
	if root != nil {
		if e := f.structural.ResolveFunc(root, f.accept); e != nil {
			return strings.TrimSpace(e.Text()), true
		}
		if e := f.scan.ResolveFunc(root, f.accept); e != nil {
			return strings.TrimSpace(e.Text()), true
		}
	}

	for _, m := range f.pattern.FindAllSubmatch(body, -1) {
		if v := strings.TrimSpace(html.UnescapeString(string(m[1]))); v != "" {
			return v, true
		}
	}
	return "", false
}

// Interpret extracts the status code and reason from a status query or
// distribution response. A missing reason defaults to DefaultReason; a
// missing code is a StatusNotFoundError.
func Interpret(body []byte) (model.AuthorityStatus, error) {
	root, _ := xmlparser.ParseTree(body)
	return interpret(root, body)
}

func interpret(root *etree.Element, body []byte) (model.AuthorityStatus, error) {
	code, ok := statusField.lookup(root, body)
	if !ok {
		return model.AuthorityStatus{}, model.NewStatusNotFoundError("no cStat element in authority response")
	}

	reason, ok := reasonField.lookup(root, body)
	if !ok {
		reason = model.DefaultReason
	}

	return model.AuthorityStatus{Code: code, Reason: reason}, nil
}

func isCode(e *etree.Element) bool {
	text := strings.TrimSpace(e.Text())
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasText(e *etree.Element) bool {
	return strings.TrimSpace(e.Text()) != ""
}
