package report

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// SortTestCases groups test cases by category and orders each group by
// display order. It is two stable passes: display order first, then
// category, so the first ordering survives inside each category. Ties keep
// their extraction order.
//
// With numeric set, display orders compare as numbers; otherwise as strings,
// where "10" sorts before "9". Test cases without a display order go last.
func SortTestCases(tcs []TestCase, numeric bool) {
	slices.SortStableFunc(tcs, func(a, b TestCase) int {
		return compareDisplayOrder(&a, &b, numeric)
	})
	slices.SortStableFunc(tcs, func(a, b TestCase) int {
		return strings.Compare(a.Category(), b.Category())
	})
}

func compareDisplayOrder(a, b *TestCase, numeric bool) int {
	av, aok := a.Get(FieldDisplayOrder)
	bv, bok := b.Get(FieldDisplayOrder)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	}

	if numeric {
		an, aerr := strconv.ParseFloat(strings.TrimSpace(av), 64)
		bn, berr := strconv.ParseFloat(strings.TrimSpace(bv), 64)
		switch {
		case aerr == nil && berr == nil:
			return cmp.Compare(an, bn)
		case aerr == nil:
			return -1
		case berr == nil:
			return 1
		}
	}
	return strings.Compare(av, bv)
}
