package report

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// Priority is a priority threshold. The zero value means the caller never
// chose one and is rejected by Filters.Validate.
type Priority string

const (
	PriorityUnset Priority = ""
	PriorityNone  Priority = "none"
	P0            Priority = "P0"
	P1            Priority = "P1"
	P2            Priority = "P2"
)

// priorityGates lists the record priorities each threshold admits.
var priorityGates = map[Priority][]string{
	P0: {"P0"},
	P1: {"P0", "P1"},
	P2: {"P0", "P1", "P2"},
}

// ParsePriority reads a threshold as typed in a form or on the command line.
// An empty value is the explicit "no gate" choice.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.TrimSpace(s)); p {
	case "", PriorityNone:
		return PriorityNone, nil
	case P0, P1, P2:
		return p, nil
	}
	return PriorityUnset, fmt.Errorf("%w: priority %q (want P0, P1, P2 or none)", ErrInvalidFilter, s)
}

// Filters selects and tags the test cases of a report.
type Filters struct {
	// Categories restricts the report to these category names. Nil means
	// every active category of the snapshot; an empty, non-nil slice means
	// no restriction at all.
	Categories []string
	Priority   Priority
	// Variant names a field the test case must carry, e.g. "usku_v2".
	Variant string
	// TC911 shows test cases carrying a tc911 field, hidden otherwise.
	TC911 bool
	// OnlyBlank keeps only rows still needing action for the current binary.
	OnlyBlank bool
}

func (f Filters) Validate() error {
	switch f.Priority {
	case PriorityUnset:
		return ErrMissingRequiredFilterKey
	case PriorityNone, P0, P1, P2:
		return nil
	}
	return fmt.Errorf("%w: priority %q", ErrInvalidFilter, string(f.Priority))
}

// allowList resolves the category restriction against the snapshot.
func (f Filters) allowList(s Snapshot) AllowList {
	if f.Categories == nil {
		return s.AllowList()
	}
	return Allow(f.Categories...)
}

// admit runs the inclusion gates and issue tagging on a freshly built test
// case. It sets tc.Issue and reports whether the test case stays.
func (f Filters) admit(tc *TestCase) bool {
	include := true

	if allowed, gated := priorityGates[f.Priority]; gated && !lo.Contains(allowed, tc.Value(FieldPriority)) {
		include = false
	}
	if f.Variant != "" && !tc.HasName(f.Variant) {
		include = false
	}
	if !f.TC911 && tc.Has(FieldTC911) {
		include = false
	}

	last, hasLast := tc.Get(FieldLastVersionResult)
	switch {
	case hasLast && needsComment(last) && !tc.Has(FieldCustomerComments):
		tc.Issue = MissingComment
	case last == "Fail" && !tc.Has(FieldMELDefectType):
		tc.Issue = MissingDefectType
	case f.OnlyBlank && hasLast:
		include = false
	}

	return include
}

func needsComment(result string) bool {
	switch result {
	case "Fail", "NS", "Block", "NT":
		return true
	}
	return false
}

// Form keys understood by FiltersFromValues.
const (
	KeyCategories = "categories"
	KeyPriority   = "Priority"
	KeyVariant    = "Variant"
	KeyTC911      = "tc911"
	KeyOnlyBlank  = "only_blank"
)

// FiltersFromValues reads filters from submitted form values. The Priority
// key must be present; an empty Priority value means no priority gate.
func FiltersFromValues(v url.Values) (Filters, error) {
	raw, ok := v[KeyPriority]
	if !ok {
		return Filters{}, ErrMissingRequiredFilterKey
	}
	var f Filters
	var err error
	if f.Priority, err = ParsePriority(firstOf(raw)); err != nil {
		return Filters{}, err
	}

	if cats, ok := v[KeyCategories]; ok {
		f.Categories = lo.Uniq(lo.Compact(lo.Map(cats, func(c string, _ int) string {
			return strings.TrimSpace(c)
		})))
		if f.Categories == nil {
			f.Categories = []string{}
		}
	}
	f.Variant = strings.TrimSpace(v.Get(KeyVariant))
	f.TC911 = flag(v, KeyTC911)
	f.OnlyBlank = flag(v, KeyOnlyBlank)
	return f, nil
}

// Values is the inverse of FiltersFromValues.
func (f Filters) Values() url.Values {
	v := url.Values{}
	p := f.Priority
	if p == PriorityUnset {
		p = PriorityNone
	}
	v.Set(KeyPriority, string(p))
	switch {
	case f.Categories == nil:
	case len(f.Categories) == 0:
		// An empty value keeps "no restriction" distinct from "not given".
		v[KeyCategories] = []string{""}
	default:
		v[KeyCategories] = append([]string{}, f.Categories...)
	}
	if f.Variant != "" {
		v.Set(KeyVariant, f.Variant)
	}
	if f.TC911 {
		v.Set(KeyTC911, "on")
	}
	if f.OnlyBlank {
		v.Set(KeyOnlyBlank, "on")
	}
	return v
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func flag(v url.Values, key string) bool {
	raw, ok := v[key]
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(firstOf(raw))) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}
