package report

import (
	"github.com/antchfx/xpath"
	"github.com/samber/lo"
	"github.com/starlight-qa/starlight/pkg/xmltree"
)

var (
	rowPath      = xpath.MustCompile("//*[@diffgr:id]")
	categoryPath = xpath.MustCompile("//CategoryName")
)

// Prune returns a copy of doc without the rows whose category allow does not
// admit. A row is an element carrying a diffgram id, or any element holding
// a CategoryName child. doc itself is not modified.
func Prune(doc *xmltree.Document, allow AllowList) *xmltree.Document {
	if allow.Unrestricted() {
		return doc.Without(nil)
	}

	rows := doc.Select(rowPath)
	for _, cat := range doc.Select(categoryPath) {
		if parent := doc.Parent(cat); parent != xmltree.None {
			rows = append(rows, parent)
		}
	}

	drop := lo.Filter(lo.Uniq(rows), func(row xmltree.NodeID, _ int) bool {
		category, _ := doc.ChildText(row, "CategoryName")
		return !allow.Allows(category)
	})
	return doc.Without(drop)
}

// Categories returns the distinct category names used by the rows of doc,
// in order of first appearance.
func Categories(doc *xmltree.Document) []string {
	return lo.Uniq(lo.FilterMap(doc.Select(categoryPath), func(id xmltree.NodeID, _ int) (string, bool) {
		text := doc.Text(id)
		return text, text != ""
	}))
}
