package report

import (
	"testing"

	"github.com/starlight-qa/starlight/pkg/xmltree"
	"github.com/stretchr/testify/require"
)

func loadDoc(t *testing.T) *xmltree.Document {
	t.Helper()
	doc, err := xmltree.Load(loadFixture(t))
	require.NoError(t, err)
	return doc
}

func TestPruneKeepsOnlyAllowed(t *testing.T) {
	doc := loadDoc(t)
	for _, allow := range [][]string{{"Voice"}, {"Data", "Messaging"}, {"Nope"}} {
		pruned := Prune(doc, Allow(allow...))
		for _, cat := range Categories(pruned) {
			require.Contains(t, allow, cat)
		}
	}
	require.Equal(t, []string{"Voice", "Data", "Messaging"}, Categories(doc), "source document must not change")
}

func TestPruneUnrestricted(t *testing.T) {
	doc := loadDoc(t)
	pruned := Prune(doc, Allow())
	require.Equal(t, doc.Len(), pruned.Len())
	require.Equal(t, Categories(doc), Categories(pruned))
}

func TestPruneIdempotent(t *testing.T) {
	doc := loadDoc(t)
	allow := Allow("Data")
	once := Prune(doc, allow)
	twice := Prune(once, allow)
	require.Equal(t, once.Len(), twice.Len())
	require.Len(t, once.Select(rowPath), 2)
}

func TestPruneDropsRowsWithoutCategory(t *testing.T) {
	doc, err := xmltree.Load([]byte(`<NewDataSet xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1">
<Table diffgr:id="Table1"><CategoryName>Voice</CategoryName></Table>
<Table diffgr:id="Table2"><CategoryName></CategoryName></Table>
<Table diffgr:id="Table3"><TestCaseName>orphan</TestCaseName></Table>
</NewDataSet>`))
	require.NoError(t, err)

	require.Len(t, Prune(doc, Allow("Voice")).Select(rowPath), 1)
	require.Len(t, Prune(doc, Unrestricted()).Select(rowPath), 3)
}

func TestDetectVersions(t *testing.T) {
	require.Equal(t, []string{"A01", "A02", "A03"}, DetectVersions(loadDoc(t)))

	doc, err := xmltree.Load([]byte(`<root><a>no schema</a></root>`))
	require.NoError(t, err)
	require.Empty(t, DetectVersions(doc))
}

func TestExtractRowsOnlyBlank(t *testing.T) {
	doc := loadDoc(t)
	require.Len(t, ExtractRows(doc, false, "A03"), 5)
	rows := ExtractRows(doc, true, "A03")
	got := make([]string, 0, len(rows))
	for _, r := range rows {
		name, _ := doc.ChildText(r, "TestCaseName")
		got = append(got, name)
	}
	require.Equal(t, []string{"Call hold", "Call waiting", "Browse", "Emergency SMS"}, got)
}

func TestOnlyBlankNeverWidens(t *testing.T) {
	raw := loadFixture(t)
	for _, p := range []Priority{PriorityNone, P0, P1, P2} {
		for _, tc911 := range []bool{false, true} {
			base := Filters{Priority: p, TC911: tc911}
			all, err := New(Snapshot{}).Build("d", raw, base)
			require.NoError(t, err)
			base.OnlyBlank = true
			blank, err := New(Snapshot{}).Build("d", raw, base)
			require.NoError(t, err)
			require.Subset(t, names(all.TestCases), names(blank.TestCases))
		}
	}
}

func TestExtractRowsOnlyBlankColumnNames(t *testing.T) {
	doc, err := xmltree.Load([]byte(`<NewDataSet xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1">
<Table diffgr:hasChanges="modified"><TestCaseName>blank</TestCaseName><v-1></v-1><div></div></Table>
<Table diffgr:hasChanges="modified"><TestCaseName>set</TestCaseName><v-1>Pass</v-1><div>Pass</div></Table>
<Table diffgr:hasChanges="modified"><TestCaseName>missing</TestCaseName></Table>
</NewDataSet>`))
	require.NoError(t, err)

	for _, current := range []string{"v-1", "div", "1ab"} {
		rows := ExtractRows(doc, true, current)
		got := make([]string, 0, len(rows))
		for _, r := range rows {
			name, _ := doc.ChildText(r, "TestCaseName")
			got = append(got, name)
		}
		if current == "1ab" {
			require.Equal(t, []string{"blank", "set", "missing"}, got, current)
			continue
		}
		require.Equal(t, []string{"set", "missing"}, got, current)
	}
}
