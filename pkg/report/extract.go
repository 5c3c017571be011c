package report

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/antchfx/xpath"
	"github.com/samber/lo"
	"github.com/starlight-qa/starlight/pkg/xmltree"
)

const changedRows = "//*[@diffgr:hasChanges='modified']"

var changedPath = xpath.MustCompile(changedRows)

// ExtractRows returns the changed rows of doc in document order. With
// onlyBlank set, rows whose current version column is present but blank are
// left out; rows without the column, or with a result in it, stay. Rows the
// loader could not read completely are never returned.
func ExtractRows(doc *xmltree.Document, onlyBlank bool, current string) []xmltree.NodeID {
	expr := changedPath
	if onlyBlank {
		expr = onlyBlankPath(current)
	}
	return lo.Reject(doc.Select(expr), func(row xmltree.NodeID, _ int) bool {
		return doc.Damaged(row)
	})
}

// onlyBlankPath selects the changed rows that lack the current column or
// have text in it.
func onlyBlankPath(current string) *xpath.Expr {
	col := current
	if !plainName(current) {
		// No element can be named with both quote characters.
		if strings.Contains(current, "'") && strings.Contains(current, `"`) {
			return changedPath
		}
		quote := "'"
		if strings.Contains(current, quote) {
			quote = `"`
		}
		col = "*[name()=" + quote + current + quote + "]"
	}
	return xpath.MustCompile(fmt.Sprintf("%s[not(%s) or %s!='']", changedRows, col, col))
}

// plainName reports whether s can be written as an XPath name test as is.
func plainName(s string) bool {
	if s == "" || reservedNames[s] {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

var reservedNames = map[string]bool{
	"and": true, "or": true, "div": true, "mod": true,
	"node": true, "text": true, "comment": true,
}

// buildTestCase flattens one row. Version columns fill the result fields,
// allow-listed columns with text are copied, everything else is ignored.
func buildTestCase(doc *xmltree.Document, row xmltree.NodeID, current, previous string) TestCase {
	var tc TestCase
	for _, col := range doc.Children(row) {
		name, text := doc.Name(col), doc.Text(col)
		if text == "" {
			continue
		}
		switch name {
		case current:
			tc.set(FieldLastVersionResult, text)
		case previous:
			tc.set(FieldPreviousVersionResult, text)
		}
		if f, ok := rowFields[name]; ok {
			tc.set(f, text)
		}
	}
	return tc
}
