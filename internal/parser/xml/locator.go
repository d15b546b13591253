package xml

import (
	"strings"

	"github.com/beevik/etree"
)

// Path steps with special meaning
const (
	// AnyDepth matches zero or more levels of elements
	AnyDepth = "**"

	// AnyNamespace as a step prefix ("*:cStat") or as a Query namespace
	// disables the namespace check
	AnyNamespace = "*"
)

// DocumentNamespaces is the namespace priority for fiscal document content
var DocumentNamespaces = []string{NFeNamespace, NoNamespace}

// Path is an anchored sequence of local names. Unprefixed steps are bound
// to the namespace under test; "*:name" matches name in any namespace and
// AnyDepth skips any number of levels.
type Path []string

// P builds a Path
func P(steps ...string) Path {
	return Path(steps)
}

// LocalName strips a "prefix:" or "{uri}" qualifier from tag
func LocalName(tag string) string {
	if i := strings.LastIndexByte(tag, '}'); i >= 0 {
		tag = tag[i+1:]
	}
	if i := strings.LastIndexByte(tag, ':'); i >= 0 {
		tag = tag[i+1:]
	}
	return tag
}

// Find returns the first element in document order, starting with node
// itself, whose local name is name
func Find(node *etree.Element, name string) *etree.Element {
	var found *etree.Element
	walk(node, func(e *etree.Element) bool {
		if LocalName(e.Tag) == name {
			found = e
			return false
		}
		return true
	})
	return found
}

// FindFold is Find with a case-insensitive name comparison
func FindFold(node *etree.Element, name string) *etree.Element {
	var found *etree.Element
	walk(node, func(e *etree.Element) bool {
		if strings.EqualFold(LocalName(e.Tag), name) {
			found = e
			return false
		}
		return true
	})
	return found
}

// FindAll returns every element under node (node included) whose local name
// is name, in document order
func FindAll(node *etree.Element, name string) []*etree.Element {
	var out []*etree.Element
	walk(node, func(e *etree.Element) bool {
		if LocalName(e.Tag) == name {
			out = append(out, e)
		}
		return true
	})
	return out
}

// Query is an ordered list of structural candidates with a local-name
// fallback. Candidates are tried path by path, and for each path namespace
// by namespace; the first accepted match wins. If none is accepted the
// Fallback names are scanned for in document order regardless of namespace.
type Query struct {
	Paths      []Path
	Namespaces []string
	Fallback   []string
	FoldCase   bool
}

// Resolve returns the first element matched by q under node, or nil
func (q Query) Resolve(node *etree.Element) *etree.Element {
	return q.ResolveFunc(node, nil)
}

// ResolveText returns the trimmed text of the first matched element that
// has non-blank text
func (q Query) ResolveText(node *etree.Element) (string, bool) {
	e := q.ResolveFunc(node, hasText)
	if e == nil {
		return "", false
	}
	return strings.TrimSpace(e.Text()), true
}

// ResolveFunc is Resolve restricted to elements accepted by accept.
// A nil accept takes the first match.
func (q Query) ResolveFunc(node *etree.Element, accept func(*etree.Element) bool) *etree.Element {
	if node == nil {
		return nil
	}
	if accept == nil {
		accept = func(*etree.Element) bool { return true }
	}

	namespaces := q.Namespaces
	if len(namespaces) == 0 {
		namespaces = []string{AnyNamespace}
	}

	for _, path := range q.Paths {
		for _, ns := range namespaces {
			if found := q.matchPath(node, path, ns, accept); found != nil {
				return found
			}
		}
	}

	for _, name := range q.Fallback {
		var found *etree.Element
		walk(node, func(e *etree.Element) bool {
			if q.nameEqual(LocalName(e.Tag), name) && accept(e) {
				found = e
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// matchPath anchors path at node and returns the first accepted element
// reached by its last step
func (q Query) matchPath(node *etree.Element, path Path, ns string, accept func(*etree.Element) bool) *etree.Element {
	if len(path) == 0 {
		return nil
	}

	step, rest := path[0], path[1:]
	if step == AnyDepth {
		if len(rest) == 0 {
			return nil
		}
		var found *etree.Element
		walk(node, func(e *etree.Element) bool {
			found = q.matchPath(e, rest, ns, accept)
			return found == nil
		})
		return found
	}

	if !q.stepMatches(node, step, ns) {
		return nil
	}
	if len(rest) == 0 {
		if accept(node) {
			return node
		}
		return nil
	}
	for _, child := range node.ChildElements() {
		if found := q.matchPath(child, rest, ns, accept); found != nil {
			return found
		}
	}
	return nil
}

func (q Query) stepMatches(e *etree.Element, step, ns string) bool {
	if strings.HasPrefix(step, AnyNamespace+":") {
		step = step[len(AnyNamespace)+1:]
		ns = AnyNamespace
	}
	if !q.nameEqual(LocalName(e.Tag), step) {
		return false
	}
	return ns == AnyNamespace || e.NamespaceURI() == ns
}

func (q Query) nameEqual(a, b string) bool {
	if q.FoldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// Attr returns the value of the attribute whose local name is name,
// ignoring any prefix
func Attr(e *etree.Element, name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, a := range e.Attr {
		if a.Key == name && a.Space != "xmlns" {
			return a.Value, true
		}
	}
	return "", false
}

func hasText(e *etree.Element) bool {
	return strings.TrimSpace(e.Text()) != ""
}

// walk visits node and its descendants in document order until fn returns false
func walk(node *etree.Element, fn func(*etree.Element) bool) bool {
	if node == nil {
		return true
	}
	if !fn(node) {
		return false
	}
	for _, child := range node.ChildElements() {
		if !walk(child, fn) {
			return false
		}
	}
	return true
}
