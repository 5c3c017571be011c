package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/report.xml")
	require.NoError(t, err)
	return raw
}

func names(tcs []TestCase) []string {
	out := make([]string, 0, len(tcs))
	for i := range tcs {
		out = append(out, tcs[i].Name())
	}
	return out
}

func TestBuildFullReport(t *testing.T) {
	res, err := New(Snapshot{}).Build("dev1", loadFixture(t), Filters{Priority: PriorityNone})
	require.NoError(t, err)

	require.Equal(t, []string{"A01", "A02", "A03"}, res.Versions)
	require.Equal(t, "A03", res.CurrentVersion)
	require.Equal(t, "A02", res.PreviousVersion)
	require.Equal(t, []string{"Browse", "SMS", "Call waiting", "Call hold"}, names(res.TestCases))
	require.Equal(t, 4, res.Total)
	require.NotEmpty(t, res.RunID)

	byName := map[string]TestCase{}
	for _, tc := range res.TestCases {
		byName[tc.Name()] = tc
	}
	hold := byName["Call hold"]
	require.Equal(t, MissingComment, hold.Issue)
	require.Equal(t, "1", hold.DisplayID)
	require.Equal(t, "Fail", hold.LastVersionResult())
	require.Equal(t, "Pass", hold.Value(FieldPreviousVersionResult))

	browse := byName["Browse"]
	require.Equal(t, MissingDefectType, browse.Issue)
	require.Equal(t, "3", browse.DisplayID)
	require.False(t, browse.Has(FieldPreviousVersionResult))

	sms := byName["SMS"]
	require.Equal(t, NoIssue, sms.Issue)
	require.False(t, sms.Has(FieldLastVersionResult), "blank version cell must not set a result")
	require.True(t, sms.Has(FieldUSKUv2))
}

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name     string
		snapshot Snapshot
		filters  Filters
		want     []string
	}{
		{
			name:    "priority P0",
			filters: Filters{Priority: P0},
			want:    []string{"SMS", "Call waiting"},
		},
		{
			name:    "priority P1",
			filters: Filters{Priority: P1},
			want:    []string{"SMS", "Call waiting", "Call hold"},
		},
		{
			name:    "only blank",
			filters: Filters{Priority: PriorityNone, OnlyBlank: true},
			want:    []string{"Browse", "Call hold"},
		},
		{
			name:    "variant",
			filters: Filters{Priority: PriorityNone, Variant: "usku_v2"},
			want:    []string{"SMS"},
		},
		{
			name:    "unknown variant",
			filters: Filters{Priority: PriorityNone, Variant: "no_such_field"},
			want:    []string{},
		},
		{
			name:    "tc911 shown",
			filters: Filters{Priority: PriorityNone, TC911: true},
			want:    []string{"Browse", "SMS", "Emergency SMS", "Call waiting", "Call hold"},
		},
		{
			name:    "explicit categories",
			filters: Filters{Priority: PriorityNone, Categories: []string{"Data"}},
			want:    []string{"Browse"},
		},
		{
			name:     "snapshot categories",
			snapshot: NewSnapshot([]Category{{ID: 1, Title: "Voice"}}),
			filters:  Filters{Priority: PriorityNone},
			want:     []string{"Call waiting", "Call hold"},
		},
		{
			name:     "empty list overrides snapshot",
			snapshot: NewSnapshot([]Category{{ID: 1, Title: "Voice"}}),
			filters:  Filters{Priority: PriorityNone, Categories: []string{}},
			want:     []string{"Browse", "SMS", "Call waiting", "Call hold"},
		},
		{
			name:    "empty snapshot prunes nothing",
			filters: Filters{Priority: PriorityNone},
			want:    []string{"Browse", "SMS", "Call waiting", "Call hold"},
		},
	}
	raw := loadFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(tt.snapshot).Build("dev1", raw, tt.filters)
			require.NoError(t, err)
			require.Equal(t, tt.want, names(res.TestCases))
			require.Equal(t, len(tt.want), res.Total)
		})
	}
}

func TestBuildRequiresPriority(t *testing.T) {
	_, err := New(Snapshot{}).Build("dev1", loadFixture(t), Filters{})
	require.ErrorIs(t, err, ErrMissingRequiredFilterKey)
}

func TestBuildMalformed(t *testing.T) {
	_, err := New(Snapshot{}).Build("dev1", []byte("definitely not xml"), Filters{Priority: PriorityNone})
	require.ErrorIs(t, err, ErrMalformedDocument)
}

func TestBuildInsufficientVersions(t *testing.T) {
	raw := []byte(`<r><xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"><xs:sequence>
<xs:element name="CategoryName" type="xs:string"/>
<xs:element name="A01" type="xs:string"/>
<xs:element name="mtp" type="xs:string"/>
</xs:sequence></xs:schema></r>`)
	_, err := New(Snapshot{}).Build("dev1", raw, Filters{Priority: PriorityNone})
	require.ErrorIs(t, err, ErrInsufficientVersionHistory)
}

type fetcherFunc func(ctx context.Context, device string) ([]byte, error)

func (f fetcherFunc) FetchReport(ctx context.Context, device string) ([]byte, error) {
	return f(ctx, device)
}

func TestRun(t *testing.T) {
	raw := loadFixture(t)

	t.Run("fetches device", func(t *testing.T) {
		var got string
		f := fetcherFunc(func(_ context.Context, device string) ([]byte, error) {
			got = device
			return raw, nil
		})
		res, err := New(Snapshot{}).Run(context.Background(), f, "dev9", Filters{Priority: P0})
		require.NoError(t, err)
		require.Equal(t, "dev9", got)
		require.Equal(t, "dev9", res.Device)
	})

	t.Run("fetch error is returned unchanged", func(t *testing.T) {
		boom := errors.New("boom")
		f := fetcherFunc(func(context.Context, string) ([]byte, error) { return nil, boom })
		_, err := New(Snapshot{}).Run(context.Background(), f, "dev1", Filters{Priority: P0})
		require.Same(t, boom, err)
	})

	t.Run("filters checked before fetching", func(t *testing.T) {
		f := fetcherFunc(func(context.Context, string) ([]byte, error) {
			t.Fatal("fetcher must not be called")
			return nil, nil
		})
		_, err := New(Snapshot{}).Run(context.Background(), f, "dev1", Filters{})
		require.ErrorIs(t, err, ErrMissingRequiredFilterKey)
	})
}

func TestResultElapsedAndJSON(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(1500 * time.Millisecond)
	}
	res, err := New(Snapshot{}, WithClock(clock)).Build("dev1", loadFixture(t), Filters{Priority: P0})
	require.NoError(t, err)
	require.Equal(t, "1.50", res.ElapsedSeconds())

	out, err := json.Marshal(res)
	require.NoError(t, err)
	doc := gjson.ParseBytes(out)
	require.Equal(t, "dev1", doc.Get("device").String())
	require.Equal(t, "A03", doc.Get("current_version").String())
	require.Equal(t, "1.50", doc.Get("elapsed_seconds").String())
	require.EqualValues(t, 2, doc.Get("total").Int())
	require.Equal(t, "SMS", doc.Get("test_cases.0.TestCaseName").String())
	require.Equal(t, "2", doc.Get("test_cases.0.displayId").String())
	require.False(t, doc.Get("test_cases.0.issue").Exists())
}

func TestResultJSONEmptyTestCases(t *testing.T) {
	out, err := json.Marshal(&Result{Device: "x"})
	require.NoError(t, err)
	require.True(t, gjson.GetBytes(out, "test_cases").IsArray())
	require.Equal(t, "0.00", gjson.GetBytes(out, "elapsed_seconds").String())
}

const threeRowReport = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body><GetReport_AVTResponse xmlns="http://tempuri.org/"><GetReport_AVTResult>
<xs:schema id="NewDataSet" xmlns="" xmlns:xs="http://www.w3.org/2001/XMLSchema"><xs:element name="Table"><xs:complexType><xs:sequence>
<xs:element name="displayorder" type="xs:int" minOccurs="0" />
<xs:element name="TestCaseName" type="xs:string" minOccurs="0" />
<xs:element name="TestDescription" type="xs:string" minOccurs="0" />
<xs:element name="A01" type="xs:string" minOccurs="0" />
<xs:element name="A02" type="xs:string" minOccurs="0" />
</xs:sequence></xs:complexType></xs:element></xs:schema>
<diffgr:diffgram xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1"><NewDataSet xmlns="">
<Table diffgr:id="Table1" diffgr:hasChanges="modified"><displayorder>1</displayorder><TestCaseName>one</TestCaseName><TestDescription>plain</TestDescription><A02>Pass</A02></Table>
<Table diffgr:id="Table2" diffgr:hasChanges="modified"><displayorder>2</displayorder><TestCaseName>two</TestCaseName>%s<A02>Pass</A02></Table>
<Table diffgr:id="Table3" diffgr:hasChanges="modified"><displayorder>3</displayorder><TestCaseName>three</TestCaseName><TestDescription>plain</TestDescription><A02>Pass</A02></Table>
</NewDataSet></diffgr:diffgram>
</GetReport_AVTResult></GetReport_AVTResponse></soap:Body></soap:Envelope>`

func TestBuildRecoversFromMalformedRows(t *testing.T) {
	tests := []struct {
		name        string
		row2        string
		want        []string
		description string
	}{
		{
			name:        "well formed",
			row2:        "<TestDescription>ok</TestDescription>",
			want:        []string{"one", "two", "three"},
			description: "ok",
		},
		{
			name:        "stray less-than in text",
			row2:        "<TestDescription>RSSI < -100 dBm</TestDescription>",
			want:        []string{"one", "two", "three"},
			description: "RSSI < -100 dBm",
		},
		{
			name:        "invalid byte in text",
			row2:        "<TestDescription>caf\xe9</TestDescription>",
			want:        []string{"one", "two", "three"},
			description: "caf\uFFFD",
		},
		{
			name: "markup lost inside the row",
			row2: `<TestDescription note="a<b">x</TestDescription>`,
			want: []string{"one", "three"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := []byte(fmt.Sprintf(threeRowReport, tt.row2))
			res, err := New(Snapshot{}).Build("dev1", raw, Filters{Priority: PriorityNone})
			require.NoError(t, err)
			require.Equal(t, []string{"A01", "A02"}, res.Versions)
			require.ElementsMatch(t, tt.want, names(res.TestCases))
			require.Equal(t, len(tt.want), res.Total)

			for _, tc := range res.TestCases {
				if tc.Name() == "two" {
					require.Equal(t, tt.description, tc.Value(FieldTestDescription))
					require.Equal(t, "2", tc.Value(FieldDisplayOrder))
				}
			}
		})
	}
}
