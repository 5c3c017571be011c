package report

import (
	"encoding/json"
	"fmt"
)

// Field names one attribute of a test case.
type Field int

const (
	FieldDisplayOrder Field = iota
	FieldTestDescription
	FieldTestCriteria
	FieldTestCaseName
	FieldCategoryName
	FieldPriority
	FieldUSKUv2
	FieldUSKUv3
	FieldMRUSKUv2
	FieldMRUSKUv3
	FieldTC911
	FieldCustomerComments
	FieldTPComment
	FieldMELDefectType
	FieldIsStep
	FieldLastVersionResult
	FieldPreviousVersionResult

	numFields
)

var fieldNames = [numFields]string{
	FieldDisplayOrder:          "displayorder",
	FieldTestDescription:       "TestDescription",
	FieldTestCriteria:          "TestCriteria",
	FieldTestCaseName:          "TestCaseName",
	FieldCategoryName:          "CategoryName",
	FieldPriority:              "Priority",
	FieldUSKUv2:                "usku_v2",
	FieldUSKUv3:                "usku_v3",
	FieldMRUSKUv2:              "mr_usku_v2",
	FieldMRUSKUv3:              "mr_usku_v3",
	FieldTC911:                 "tc911",
	FieldCustomerComments:      "CustomerComments",
	FieldTPComment:             "TPComment",
	FieldMELDefectType:         "MELDefectType",
	FieldIsStep:                "IsStep",
	FieldLastVersionResult:     "LastVersionResult",
	FieldPreviousVersionResult: "PreviousVersionResult",
}

// rowFields is the allow-list of columns copied from a report row as is.
// The version result fields are filled from the binary version columns.
var rowFields = map[string]Field{}

var fieldsByName = map[string]Field{}

func init() {
	for f := Field(0); f < numFields; f++ {
		fieldsByName[fieldNames[f]] = f
		if f != FieldLastVersionResult && f != FieldPreviousVersionResult {
			rowFields[fieldNames[f]] = f
		}
	}
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// FieldByName looks a field up by its column name.
func FieldByName(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

// Fields lists every field in display order.
func Fields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// Issue flags a test case result that still needs attention.
type Issue int

const (
	NoIssue Issue = iota
	MissingComment
	MissingDefectType
)

func (i Issue) String() string {
	switch i {
	case MissingComment:
		return "MissingComment"
	case MissingDefectType:
		return "MissingDefectType"
	}
	return ""
}

func (i Issue) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// TestCase is one row of a report. Every field is absent until set; absent
// and empty are the same thing for a row column.
type TestCase struct {
	values  [numFields]string
	present uint32

	Issue     Issue
	DisplayID string
}

// Get returns the field value and whether the row carried it.
func (tc *TestCase) Get(f Field) (string, bool) {
	if !tc.Has(f) {
		return "", false
	}
	return tc.values[f], true
}

// Value returns the field value, or "" when absent.
func (tc *TestCase) Value(f Field) string {
	v, _ := tc.Get(f)
	return v
}

func (tc *TestCase) Has(f Field) bool {
	return f >= 0 && f < numFields && tc.present&(1<<uint(f)) != 0
}

// HasName is Has for a column name. Names outside the field set are never
// present.
func (tc *TestCase) HasName(name string) bool {
	f, ok := FieldByName(name)
	return ok && tc.Has(f)
}

func (tc *TestCase) set(f Field, v string) {
	tc.values[f] = v
	tc.present |= 1 << uint(f)
}

func (tc *TestCase) Category() string          { return tc.Value(FieldCategoryName) }
func (tc *TestCase) Name() string              { return tc.Value(FieldTestCaseName) }
func (tc *TestCase) Priority() string          { return tc.Value(FieldPriority) }
func (tc *TestCase) LastVersionResult() string { return tc.Value(FieldLastVersionResult) }

// Map returns the present fields keyed by column name.
func (tc *TestCase) Map() map[string]string {
	out := make(map[string]string)
	for f := Field(0); f < numFields; f++ {
		if tc.Has(f) {
			out[fieldNames[f]] = tc.values[f]
		}
	}
	return out
}

func (tc TestCase) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, numFields+2)
	for k, v := range tc.Map() {
		out[k] = v
	}
	out["displayId"] = tc.DisplayID
	if tc.Issue != NoIssue {
		out["issue"] = tc.Issue.String()
	}
	return json.Marshal(out)
}
