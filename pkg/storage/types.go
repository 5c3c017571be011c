package storage

// Category groups test cases in a report. Only active categories take part
// in report runs and team assignments.
type Category struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	IsActive bool   `json:"is_active"`
}

// Team is a named set of categories used as a filter preset.
type Team struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
}

// Titles returns the titles of the team's categories.
func (t Team) Titles() []string {
	out := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		out = append(out, c.Title)
	}
	return out
}
