package report

import (
	"github.com/samber/lo"
)

// Category is an active category as kept by the category store.
type Category struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Snapshot is the set of active categories a pipeline run works with. It is
// taken once per run by the caller and never changes afterwards.
type Snapshot struct {
	categories []Category
}

// NewSnapshot copies cats into a snapshot.
func NewSnapshot(cats []Category) Snapshot {
	return Snapshot{categories: append([]Category(nil), cats...)}
}

func (s Snapshot) Categories() []Category {
	return append([]Category(nil), s.categories...)
}

func (s Snapshot) Titles() []string {
	return lo.Map(s.categories, func(c Category, _ int) string { return c.Title })
}

// AllowList restricts to the snapshot titles. An empty snapshot restricts
// nothing.
func (s Snapshot) AllowList() AllowList {
	if len(s.categories) == 0 {
		return Unrestricted()
	}
	return Allow(s.Titles()...)
}

// AllowList is the set of category names whose rows survive pruning.
type AllowList struct {
	all   bool
	names map[string]struct{}
}

// Unrestricted allows every row.
func Unrestricted() AllowList { return AllowList{all: true} }

// Allow builds an allow-list from names. No names means no restriction.
func Allow(names ...string) AllowList {
	names = lo.Compact(names)
	if len(names) == 0 {
		return Unrestricted()
	}
	return AllowList{names: lo.SliceToMap(names, func(n string) (string, struct{}) {
		return n, struct{}{}
	})}
}

func (a AllowList) Unrestricted() bool { return a.all }

// Allows reports whether a row in category name is kept. Rows without a
// category are only kept by an unrestricted list.
func (a AllowList) Allows(name string) bool {
	if a.all {
		return true
	}
	if name == "" {
		return false
	}
	_, ok := a.names[name]
	return ok
}
