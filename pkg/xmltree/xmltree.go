// Package xmltree loads loosely formed XML into an arena-owned element tree.
//
// Every element lives in a single slice owned by its Document and is
// addressed by a NodeID. Element and attribute names carry a fixed,
// normalized namespace prefix (see DefaultNamespaces), so lookups can use
// "xs:sequence" or "diffgr:hasChanges" no matter how the producer spelled
// its prefixes.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Namespace URIs found in STAR SOAP responses.
const (
	NSSchema   = "http://www.w3.org/2001/XMLSchema"
	NSDiffgram = "urn:schemas-microsoft-com:xml-diffgram-v1"
	NSDataSet  = "urn:schemas-microsoft-com:xml-msdata"
	NSSoap     = "http://schemas.xmlsoap.org/soap/envelope/"
)

// DefaultNamespaces maps namespace URIs to the prefixes used in lookups.
// Namespaces that are not listed lose their prefix.
var DefaultNamespaces = map[string]string{
	NSSchema:   "xs",
	NSDiffgram: "diffgr",
	NSDataSet:  "msdata",
	NSSoap:     "soap",
}

// prefixAliases resolves prefixes that were never bound to a URI, which the
// non-strict decoder leaves in Name.Space as written.
var prefixAliases = map[string]string{
	"xs":     "xs",
	"xsd":    "xs",
	"diffgr": "diffgr",
	"msdata": "msdata",
	"soap":   "soap",
}

// ErrMalformedDocument is returned when not even a partial tree can be built.
var ErrMalformedDocument = errors.New("malformed document")

// NodeID addresses an element inside its Document.
type NodeID int32

// None is the NodeID of a missing element.
const None NodeID = -1

type Attr struct {
	Name  string
	Value string
}

type node struct {
	name     string
	text     string
	attrs    []Attr
	parent   NodeID
	children []NodeID
	// pos is the index of the node in its parent's children.
	pos     int32
	damaged bool
}

// Document is an element tree. Nodes are stored in document order.
type Document struct {
	nodes     []node
	recovered error
}

// Load parses data with DefaultNamespaces.
func Load(data []byte) (*Document, error) {
	return Parse(bytes.NewReader(data), DefaultNamespaces)
}

// At most this many syntax errors are skipped before the rest of the input
// is given up.
const maxResyncs = 1000

// Parse reads an XML document from r.
//
// The loader never stops at the first syntax error. Input in a declared
// non UTF-8 charset is converted first and invalid UTF-8 is replaced with
// U+FFFD. Bytes the decoder rejects, such as a stray '<' in text, are kept as
// text of the enclosing element and decoding resumes right after them.
// Unbalanced end tags close the elements above their match and unmatched end
// tags are ignored. Elements that were open when markup had to be skipped,
// or when the input ended, are marked damaged (see Damaged).
//
// ErrMalformedDocument is returned only if no element could be read.
func Parse(r io.Reader, ns map[string]string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Join(ErrMalformedDocument, err)
	}

	p := &parser{doc: &Document{}, ns: ns}
	data = p.decodeCharset(data)
	p.run(data)

	doc := p.doc
	if len(p.errs) > 0 {
		doc.recovered = errors.Join(p.errs...)
	}
	if len(doc.nodes) == 0 {
		if doc.recovered != nil {
			return nil, errors.Join(ErrMalformedDocument, doc.recovered)
		}
		return nil, ErrMalformedDocument
	}
	return doc, nil
}

// frame is an element that is still open.
type frame struct {
	id  NodeID
	raw string
	// bindings are the namespace declarations made on the element, keyed
	// by prefix ("" for the default namespace).
	bindings map[string]string
}

type parser struct {
	doc   *Document
	ns    map[string]string
	stack []frame
	text  [][]byte
	done  bool
	errs  []error
}

// decodeCharset converts data from its declared charset and replaces
// invalid UTF-8.
func (p *parser) decodeCharset(data []byte) []byte {
	if label := declaredCharset(data); label != "" {
		r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
		if err == nil {
			var conv []byte
			if conv, err = io.ReadAll(r); err == nil {
				data = conv
			}
		}
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("charset %q: %w", label, err))
		}
	}
	if !utf8.Valid(data) {
		p.errs = append(p.errs, errors.New("invalid UTF-8 replaced"))
		if fixed, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), data); err == nil {
			data = fixed
		} else {
			data = bytes.ToValidUTF8(data, []byte("\uFFFD"))
		}
	}
	return data
}

// declaredCharset returns the encoding named by the XML declaration of data
// when it is not UTF-8.
func declaredCharset(data []byte) string {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n\uFEFF"), []byte("<?xml")) {
		return ""
	}
	var label string
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.CharsetReader = func(l string, in io.Reader) (io.Reader, error) {
		label = l
		return in, nil
	}
	for i := 0; i < 2 && label == ""; i++ {
		if _, err := dec.RawToken(); err != nil {
			break
		}
	}
	return label
}

// passthrough accepts any declared charset; the input is UTF-8 by the time
// it reaches the decoder.
func passthrough(_ string, in io.Reader) (io.Reader, error) { return in, nil }

func (p *parser) run(data []byte) {
	off, resyncs := 0, 0
	for off < len(data) && !p.done {
		dec := xml.NewDecoder(bytes.NewReader(data[off:]))
		dec.Strict = false
		dec.Entity = xml.HTMLEntity
		dec.CharsetReader = passthrough

		next, err := p.decode(dec, off)
		if err == nil {
			break
		}
		p.errs = append(p.errs, fmt.Errorf("offset %d: %w", next, err))

		// dec.InputOffset() is just past the rejected byte. Everything from
		// the start of the failed token up to there becomes text.
		errOff := off + int(dec.InputOffset())
		if errOff <= next {
			errOff = next + 1
		}
		if errOff > len(data) {
			errOff = len(data)
		}
		p.skip(data[next:errOff])
		off = errOff

		if resyncs++; resyncs >= maxResyncs {
			p.errs = append(p.errs, fmt.Errorf("giving up after %d syntax errors", resyncs))
			p.markOpen()
			break
		}
	}

	if len(p.stack) > 0 {
		if !p.done {
			p.errs = append(p.errs, fmt.Errorf("unexpected EOF: %d element(s) left open", len(p.stack)))
		}
		p.markOpen()
		for len(p.stack) > 0 {
			p.pop()
		}
	}
}

// decode feeds tokens from dec into the tree. base is the offset of dec's
// input in the whole document. On a syntax error it returns the offset
// where the failed token started.
func (p *parser) decode(dec *xml.Decoder, base int) (int, error) {
	for {
		start := base + int(dec.InputOffset())
		tok, err := dec.RawToken()
		if err == io.EOF {
			return start, nil
		}
		if err != nil {
			return start, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if p.done {
				p.errs = append(p.errs, fmt.Errorf("offset %d: content after the document element", start))
				return start, nil
			}
			p.push(t)
		case xml.EndElement:
			p.close(t.Name)
		case xml.CharData:
			p.appendText(t)
		}
	}
}

func (p *parser) push(t xml.StartElement) {
	f := frame{raw: rawName(t.Name)}
	var attrs []xml.Attr
	for _, a := range t.Attr {
		switch {
		case a.Name.Space == "xmlns":
			f.bindings = setBinding(f.bindings, a.Name.Local, a.Value)
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			f.bindings = setBinding(f.bindings, "", a.Value)
		default:
			attrs = append(attrs, a)
		}
	}

	cur := None
	if len(p.stack) > 0 {
		cur = p.stack[len(p.stack)-1].id
	}
	id := NodeID(len(p.doc.nodes))
	f.id = id
	p.stack = append(p.stack, f)

	n := node{name: p.qualify(t.Name, true), parent: cur}
	for _, a := range attrs {
		n.attrs = append(n.attrs, Attr{Name: p.qualify(a.Name, false), Value: a.Value})
	}
	if cur != None {
		n.pos = int32(len(p.doc.nodes[cur].children))
		p.doc.nodes[cur].children = append(p.doc.nodes[cur].children, id)
	}
	p.doc.nodes = append(p.doc.nodes, n)
	p.text = append(p.text, nil)
}

func setBinding(m map[string]string, prefix, uri string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[prefix] = uri
	return m
}

// close ends the innermost open element named name together with every
// element opened inside it.
func (p *parser) close(name xml.Name) {
	raw := rawName(name)
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].raw != raw {
			continue
		}
		for len(p.stack) > i {
			p.pop()
		}
		if len(p.stack) == 0 {
			p.done = true
		}
		return
	}
}

func (p *parser) pop() {
	id := p.stack[len(p.stack)-1].id
	p.doc.nodes[id].text = significant(string(p.text[id]))
	p.stack = p.stack[:len(p.stack)-1]
}

func (p *parser) appendText(b []byte) {
	if len(p.stack) == 0 {
		return
	}
	id := p.stack[len(p.stack)-1].id
	p.text[id] = append(p.text[id], b...)
}

// skip keeps bytes the decoder rejected as text. If they held markup, the
// elements open around them may be missing content.
func (p *parser) skip(b []byte) {
	if hasMarkup(b) {
		p.markOpen()
	}
	text := strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, html.UnescapeString(string(b)))
	p.appendText([]byte(text))
}

func (p *parser) markOpen() {
	for _, f := range p.stack {
		p.doc.nodes[f.id].damaged = true
	}
}

// hasMarkup reports whether b holds a '<' that starts a tag, comment or
// processing instruction.
func hasMarkup(b []byte) bool {
	for i := 0; i < len(b)-1; i++ {
		if b[i] != '<' {
			continue
		}
		c := b[i+1]
		if c == '/' || c == '!' || c == '?' || c == '_' || c == ':' ||
			('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c >= utf8.RuneSelf {
			return true
		}
	}
	return false
}

func rawName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// qualify maps the prefix of a raw name to its normalized form. Unprefixed
// element names take the default namespace; unprefixed attributes have none.
func (p *parser) qualify(n xml.Name, element bool) string {
	if n.Space == "" && !element {
		return n.Local
	}
	if uri, ok := p.lookup(n.Space); ok {
		if prefix, ok := p.ns[uri]; ok {
			return prefix + ":" + n.Local
		}
		return n.Local
	}
	if prefix, ok := prefixAliases[n.Space]; ok {
		return prefix + ":" + n.Local
	}
	return n.Local
}

// lookup resolves prefix against the open elements, innermost first.
func (p *parser) lookup(prefix string) (string, bool) {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if uri, ok := p.stack[i].bindings[prefix]; ok {
			return uri, uri != ""
		}
	}
	return "", false
}

func significant(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

// Recovered returns the decoding errors the loader recovered from, if any.
func (d *Document) Recovered() error { return d.recovered }

// Damaged reports whether markup inside the element was lost while loading,
// or the input ended before the element was closed. Its children and text
// may be incomplete.
func (d *Document) Damaged(id NodeID) bool { return d.nodes[id].damaged }

// Len returns the number of elements in the document.
func (d *Document) Len() int { return len(d.nodes) }

// Root returns the document element.
func (d *Document) Root() NodeID {
	if len(d.nodes) == 0 {
		return None
	}
	return 0
}

func (d *Document) Name(id NodeID) string { return d.nodes[id].name }

// LocalName returns the element name without its prefix.
func (d *Document) LocalName(id NodeID) string {
	name := d.nodes[id].name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Text returns the element's own character data. Whitespace-only text is
// reported as empty. All text directly inside the element is joined, also
// the text that follows a child element, so for mixed content it is more
// than the text before the first child.
func (d *Document) Text(id NodeID) string { return d.nodes[id].text }

func (d *Document) Parent(id NodeID) NodeID { return d.nodes[id].parent }

func (d *Document) Children(id NodeID) []NodeID { return d.nodes[id].children }

func (d *Document) Attrs(id NodeID) []Attr { return d.nodes[id].attrs }

// Attr returns the value of the named attribute.
func (d *Document) Attr(id NodeID, name string) (string, bool) {
	for _, a := range d.nodes[id].attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first child element with the given name.
func (d *Document) Child(id NodeID, name string) NodeID {
	for _, c := range d.nodes[id].children {
		if d.nodes[c].name == name {
			return c
		}
	}
	return None
}

// ChildText returns the text of the first child with the given name and
// whether such a child exists.
func (d *Document) ChildText(id NodeID, name string) (string, bool) {
	c := d.Child(id, name)
	if c == None {
		return "", false
	}
	return d.nodes[c].text, true
}

// Find returns every element with the given name in document order.
func (d *Document) Find(name string) []NodeID {
	return d.FindFunc(func(id NodeID) bool { return d.nodes[id].name == name })
}

// FindFirst returns the first element with the given name in document order.
func (d *Document) FindFirst(name string) NodeID {
	for i := range d.nodes {
		if d.nodes[i].name == name {
			return NodeID(i)
		}
	}
	return None
}

// FindFunc returns every element matching keep in document order.
func (d *Document) FindFunc(keep func(NodeID) bool) []NodeID {
	var out []NodeID
	for i := range d.nodes {
		if keep(NodeID(i)) {
			out = append(out, NodeID(i))
		}
	}
	return out
}

// Contains reports whether id is anc or one of its descendants.
func (d *Document) Contains(anc, id NodeID) bool {
	for ; id != None; id = d.nodes[id].parent {
		if id == anc {
			return true
		}
	}
	return false
}

// Path returns the slash separated names from the root to id.
func (d *Document) Path(id NodeID) string {
	var parts []string
	for ; id != None; id = d.nodes[id].parent {
		parts = append(parts, d.nodes[id].name)
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	return b.String()
}

// Without returns a copy of the document with the subtrees rooted at the
// given elements removed. The receiver is left untouched. Removing the root
// yields an empty document.
func (d *Document) Without(drop []NodeID) *Document {
	if len(drop) == 0 {
		return d.clone()
	}
	dropped := make(map[NodeID]bool, len(drop))
	for _, id := range drop {
		dropped[id] = true
	}

	out := &Document{recovered: d.recovered}
	remap := make([]NodeID, len(d.nodes))
	for i := range d.nodes {
		old := &d.nodes[i]
		if dropped[NodeID(i)] || (old.parent != None && remap[old.parent] == None) {
			remap[i] = None
			continue
		}
		id := NodeID(len(out.nodes))
		remap[i] = id
		n := node{
			name:    old.name,
			text:    old.text,
			attrs:   old.attrs,
			parent:  None,
			damaged: old.damaged,
		}
		if old.parent != None {
			n.parent = remap[old.parent]
			n.pos = int32(len(out.nodes[n.parent].children))
			out.nodes[n.parent].children = append(out.nodes[n.parent].children, id)
		}
		out.nodes = append(out.nodes, n)
	}
	return out
}

func (d *Document) clone() *Document {
	out := &Document{nodes: make([]node, len(d.nodes)), recovered: d.recovered}
	copy(out.nodes, d.nodes)
	for i := range out.nodes {
		out.nodes[i].children = append([]NodeID(nil), d.nodes[i].children...)
	}
	return out
}
