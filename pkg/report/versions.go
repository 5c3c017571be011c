package report

import (
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xpath"
	"github.com/starlight-qa/starlight/pkg/xmltree"
)

// Column names in the schema that look like versions but are not.
var reservedColumns = map[string]bool{
	"mtp": true,
	"PTN": true,
	"sdf": true,
}

var sequencePath = xpath.MustCompile("//xs:sequence")

// DetectVersions returns the binary version columns declared by the first
// schema sequence of doc, in document order. A version column has a three
// character name.
func DetectVersions(doc *xmltree.Document) []string {
	var out []string
	for _, el := range schemaColumns(doc) {
		name, _ := doc.Attr(el, "name")
		if utf8.RuneCountInString(name) != 3 || reservedColumns[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}

func schemaColumns(doc *xmltree.Document) []xmltree.NodeID {
	seq := doc.SelectFirst(sequencePath)
	if seq == xmltree.None {
		return nil
	}
	var out []xmltree.NodeID
	for _, el := range doc.Children(seq) {
		if doc.Name(el) != "xs:element" {
			continue
		}
		if _, ok := doc.Attr(el, "name"); ok {
			out = append(out, el)
		}
	}
	return out
}

// columnType returns the declared XML Schema type of column without its
// prefix, or "" when the column is not declared.
func columnType(doc *xmltree.Document, column string) string {
	for _, el := range schemaColumns(doc) {
		if name, _ := doc.Attr(el, "name"); name != column {
			continue
		}
		typ, _ := doc.Attr(el, "type")
		if i := strings.IndexByte(typ, ':'); i >= 0 {
			typ = typ[i+1:]
		}
		return typ
	}
	return ""
}

var numericTypes = map[string]bool{
	"byte": true, "short": true, "int": true, "integer": true, "long": true,
	"unsignedByte": true, "unsignedShort": true, "unsignedInt": true, "unsignedLong": true,
	"nonNegativeInteger": true, "positiveInteger": true,
	"decimal": true, "float": true, "double": true,
}
