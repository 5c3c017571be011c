package xmltree

import (
	"slices"
	"strings"

	"github.com/antchfx/xpath"
)

// Select evaluates expr against the document and returns the matching
// elements in document order. Attribute and text results are ignored.
func (d *Document) Select(expr *xpath.Expr) []NodeID {
	var out []NodeID
	it := expr.Select(d.Navigator())
	for it.MoveNext() {
		n, ok := it.Current().(*Navigator)
		if !ok || n.NodeType() != xpath.ElementNode {
			continue
		}
		out = append(out, n.cur)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SelectFirst returns the first element matching expr, or None.
func (d *Document) SelectFirst(expr *xpath.Expr) NodeID {
	if ids := d.Select(expr); len(ids) > 0 {
		return ids[0]
	}
	return None
}

// Navigator walks a Document for github.com/antchfx/xpath. The document
// node sits above the root element and an element's own text, when it has
// any, is exposed as its first child.
type Navigator struct {
	doc  *Document
	cur  NodeID // None is the document node
	attr int    // index into the attributes of cur, or -1
	text bool   // on the text child of cur
}

// Navigator returns a navigator positioned on the document node.
func (d *Document) Navigator() *Navigator {
	return &Navigator{doc: d, cur: None, attr: -1}
}

// Node returns the element the navigator is on, or owns the current
// attribute or text. It is None on the document node.
func (n *Navigator) Node() NodeID { return n.cur }

func (n *Navigator) NodeType() xpath.NodeType {
	switch {
	case n.cur == None:
		return xpath.RootNode
	case n.attr >= 0:
		return xpath.AttributeNode
	case n.text:
		return xpath.TextNode
	}
	return xpath.ElementNode
}

func (n *Navigator) name() string {
	switch {
	case n.cur == None || n.text:
		return ""
	case n.attr >= 0:
		return n.doc.nodes[n.cur].attrs[n.attr].Name
	}
	return n.doc.nodes[n.cur].name
}

func (n *Navigator) LocalName() string {
	name := n.name()
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func (n *Navigator) Prefix() string {
	name := n.name()
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return ""
}

// Value returns the string value of the current node: the attribute value,
// the text, or the text of every element below.
func (n *Navigator) Value() string {
	switch {
	case n.cur == None:
		if root := n.doc.Root(); root != None {
			return n.doc.stringValue(root)
		}
		return ""
	case n.attr >= 0:
		return n.doc.nodes[n.cur].attrs[n.attr].Value
	case n.text:
		return n.doc.nodes[n.cur].text
	}
	return n.doc.stringValue(n.cur)
}

func (d *Document) stringValue(id NodeID) string {
	if len(d.nodes[id].children) == 0 {
		return d.nodes[id].text
	}
	var b strings.Builder
	var walk func(NodeID)
	walk = func(id NodeID) {
		b.WriteString(d.nodes[id].text)
		for _, c := range d.nodes[id].children {
			walk(c)
		}
	}
	walk(id)
	return b.String()
}

func (n *Navigator) Copy() xpath.NodeNavigator {
	c := *n
	return &c
}

func (n *Navigator) MoveToRoot() {
	n.cur, n.attr, n.text = None, -1, false
}

func (n *Navigator) MoveToParent() bool {
	switch {
	case n.attr >= 0:
		n.attr = -1
	case n.text:
		n.text = false
	case n.cur != None:
		n.cur = n.doc.nodes[n.cur].parent
	default:
		return false
	}
	return true
}

func (n *Navigator) MoveToNextAttribute() bool {
	if n.cur == None || n.text || n.attr >= len(n.doc.nodes[n.cur].attrs)-1 {
		return false
	}
	n.attr++
	return true
}

func (n *Navigator) MoveToChild() bool {
	if n.attr >= 0 || n.text {
		return false
	}
	if n.cur == None {
		root := n.doc.Root()
		if root == None {
			return false
		}
		n.cur = root
		return true
	}
	if n.doc.nodes[n.cur].text != "" {
		n.text = true
		return true
	}
	if children := n.doc.nodes[n.cur].children; len(children) > 0 {
		n.cur = children[0]
		return true
	}
	return false
}

func (n *Navigator) MoveToFirst() bool {
	if n.attr >= 0 || n.text || n.cur == None {
		return false
	}
	parent := n.doc.nodes[n.cur].parent
	if parent == None {
		return false
	}
	if n.doc.nodes[parent].text != "" {
		n.cur, n.text = parent, true
		return true
	}
	if n.doc.nodes[n.cur].pos == 0 {
		return false
	}
	n.cur = n.doc.nodes[parent].children[0]
	return true
}

func (n *Navigator) MoveToNext() bool {
	if n.attr >= 0 || n.cur == None {
		return false
	}
	if n.text {
		if children := n.doc.nodes[n.cur].children; len(children) > 0 {
			n.cur, n.text = children[0], false
			return true
		}
		return false
	}
	parent := n.doc.nodes[n.cur].parent
	if parent == None {
		return false
	}
	siblings := n.doc.nodes[parent].children
	next := int(n.doc.nodes[n.cur].pos) + 1
	if next >= len(siblings) {
		return false
	}
	n.cur = siblings[next]
	return true
}

func (n *Navigator) MoveToPrevious() bool {
	if n.attr >= 0 || n.text || n.cur == None {
		return false
	}
	parent := n.doc.nodes[n.cur].parent
	if parent == None {
		return false
	}
	if pos := n.doc.nodes[n.cur].pos; pos > 0 {
		n.cur = n.doc.nodes[parent].children[pos-1]
		return true
	}
	if n.doc.nodes[parent].text != "" {
		n.cur, n.text = parent, true
		return true
	}
	return false
}

func (n *Navigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*Navigator)
	if !ok || o.doc != n.doc {
		return false
	}
	*n = *o
	return true
}
