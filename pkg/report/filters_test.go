package report

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCase(fields map[Field]string) TestCase {
	var tc TestCase
	for f, v := range fields {
		tc.set(f, v)
	}
	return tc
}

func TestPriorityGate(t *testing.T) {
	row := map[Field]string{FieldPriority: "P1", FieldLastVersionResult: "Pass"}
	tests := []struct {
		priority Priority
		want     bool
	}{
		{P0, false},
		{P1, true},
		{P2, true},
		{PriorityNone, true},
	}
	for _, tt := range tests {
		tc := newTestCase(row)
		require.Equal(t, tt.want, Filters{Priority: tt.priority}.admit(&tc), "priority %q", tt.priority)
	}
}

func TestIssueTagging(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[Field]string
		onlyBlank bool
		wantIssue Issue
		wantKeep  bool
	}{
		{
			name:      "fail without comment or defect type",
			fields:    map[Field]string{FieldLastVersionResult: "Fail"},
			wantIssue: MissingComment,
			wantKeep:  true,
		},
		{
			name:      "fail with comment",
			fields:    map[Field]string{FieldLastVersionResult: "Fail", FieldCustomerComments: "seen"},
			wantIssue: MissingDefectType,
			wantKeep:  true,
		},
		{
			name:      "fail fully annotated",
			fields:    map[Field]string{FieldLastVersionResult: "Fail", FieldCustomerComments: "seen", FieldMELDefectType: "HW"},
			wantIssue: NoIssue,
			wantKeep:  true,
		},
		{
			name:      "blocked without comment",
			fields:    map[Field]string{FieldLastVersionResult: "Block"},
			wantIssue: MissingComment,
			wantKeep:  true,
		},
		{
			name:      "not tested with comment",
			fields:    map[Field]string{FieldLastVersionResult: "NT", FieldCustomerComments: "later"},
			wantIssue: NoIssue,
			wantKeep:  true,
		},
		{
			name:      "case sensitive",
			fields:    map[Field]string{FieldLastVersionResult: "fail"},
			wantIssue: NoIssue,
			wantKeep:  true,
		},
		{
			name:      "only blank drops clean result",
			fields:    map[Field]string{FieldLastVersionResult: "Pass"},
			onlyBlank: true,
			wantIssue: NoIssue,
			wantKeep:  false,
		},
		{
			name:      "only blank keeps missing defect type",
			fields:    map[Field]string{FieldLastVersionResult: "Fail", FieldCustomerComments: "seen"},
			onlyBlank: true,
			wantIssue: MissingDefectType,
			wantKeep:  true,
		},
		{
			name:      "only blank keeps rows without result",
			fields:    map[Field]string{FieldTestCaseName: "x"},
			onlyBlank: true,
			wantIssue: NoIssue,
			wantKeep:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCase(tt.fields)
			keep := Filters{Priority: PriorityNone, OnlyBlank: tt.onlyBlank}.admit(&tc)
			require.Equal(t, tt.wantKeep, keep)
			require.Equal(t, tt.wantIssue, tc.Issue)
		})
	}
}

func TestIssueTaggedWhenExcluded(t *testing.T) {
	tc := newTestCase(map[Field]string{FieldPriority: "P2", FieldLastVersionResult: "Fail"})
	require.False(t, Filters{Priority: P0}.admit(&tc))
	require.Equal(t, MissingComment, tc.Issue)
}

func TestTC911Gate(t *testing.T) {
	tc := newTestCase(map[Field]string{FieldTC911: "Y"})
	require.False(t, Filters{Priority: PriorityNone}.admit(&tc))
	tc = newTestCase(map[Field]string{FieldTC911: "Y"})
	require.True(t, Filters{Priority: PriorityNone, TC911: true}.admit(&tc))
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Filters{}.Validate(), ErrMissingRequiredFilterKey)
	require.NoError(t, Filters{Priority: PriorityNone}.Validate())
	require.NoError(t, Filters{Priority: P2}.Validate())
	require.ErrorIs(t, Filters{Priority: "P9"}.Validate(), ErrInvalidFilter)
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{"": PriorityNone, "none": PriorityNone, " P1 ": P1, "P0": P0} {
		got, err := ParsePriority(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParsePriority("p1")
	require.Error(t, err)
}

func TestFiltersFromValues(t *testing.T) {
	tests := []struct {
		name    string
		values  url.Values
		want    Filters
		wantErr error
	}{
		{
			name:    "missing priority",
			values:  url.Values{KeyVariant: {"usku_v2"}},
			wantErr: ErrMissingRequiredFilterKey,
		},
		{
			name:   "empty priority means none",
			values: url.Values{KeyPriority: {""}},
			want:   Filters{Priority: PriorityNone},
		},
		{
			name: "everything",
			values: url.Values{
				KeyPriority:   {"P1"},
				KeyCategories: {" Voice ", "Data", "Voice", ""},
				KeyVariant:    {"usku_v3"},
				KeyTC911:      {"on"},
				KeyOnlyBlank:  {"true"},
			},
			want: Filters{
				Priority:   P1,
				Categories: []string{"Voice", "Data"},
				Variant:    "usku_v3",
				TC911:      true,
				OnlyBlank:  true,
			},
		},
		{
			name:   "blank categories clear the restriction",
			values: url.Values{KeyPriority: {"none"}, KeyCategories: {""}},
			want:   Filters{Priority: PriorityNone, Categories: []string{}},
		},
		{
			name:   "flags off",
			values: url.Values{KeyPriority: {"P0"}, KeyTC911: {"off"}, KeyOnlyBlank: {"0"}},
			want:   Filters{Priority: P0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FiltersFromValues(tt.values)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFiltersValuesRoundTrip(t *testing.T) {
	for _, f := range []Filters{
		{Priority: PriorityNone},
		{Priority: P2, Categories: []string{}},
		{Priority: P0, Categories: []string{"Voice"}, Variant: "usku_v2", TC911: true, OnlyBlank: true},
	} {
		got, err := FiltersFromValues(f.Values())
		require.NoError(t, err)
		require.Equal(t, f, got)
	}
}
