package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func (d *DB) AddTeam(ctx context.Context, name string) (Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Team{}, ErrEmptyName
	}
	res, err := d.sql.ExecContext(ctx, "INSERT INTO teams(name) VALUES(?)", name)
	if err != nil {
		if isUniqueViolation(err) {
			return Team{}, fmt.Errorf("team %q: %w", name, ErrDuplicate)
		}
		return Team{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Team{}, err
	}
	return Team{ID: id, Name: name, Categories: []Category{}}, nil
}

// ListTeams returns every team with its active categories.
func (d *DB) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT t.id, t.name, c.id, c.title
		FROM teams t
		LEFT JOIN team_categories tc ON tc.team_id = t.id
		LEFT JOIN categories c ON c.id = tc.category_id AND c.is_active = 1
		ORDER BY lower(t.name), t.id, lower(c.title)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var (
			teamID   int64
			teamName string
			catID    sql.NullInt64
			catTitle sql.NullString
		)
		if err := rows.Scan(&teamID, &teamName, &catID, &catTitle); err != nil {
			return nil, err
		}
		if len(teams) == 0 || teams[len(teams)-1].ID != teamID {
			teams = append(teams, Team{ID: teamID, Name: teamName, Categories: []Category{}})
		}
		if catID.Valid {
			t := &teams[len(teams)-1]
			t.Categories = append(t.Categories, Category{ID: catID.Int64, Title: catTitle.String, IsActive: true})
		}
	}
	return teams, rows.Err()
}

// GetTeam looks a team up by id or, when ref is not a number, by name.
func (d *DB) GetTeam(ctx context.Context, ref string) (Team, error) {
	var t Team
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, name FROM teams WHERE CAST(id AS TEXT) = ? OR name = ? ORDER BY id LIMIT 1",
		ref, ref).Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Team{}, fmt.Errorf("team %q: %w", ref, ErrNotFound)
	}
	if err != nil {
		return Team{}, err
	}

	rows, err := d.sql.QueryContext(ctx, `
		SELECT c.id, c.title
		FROM team_categories tc
		JOIN categories c ON c.id = tc.category_id
		WHERE tc.team_id = ? AND c.is_active = 1
		ORDER BY lower(c.title), c.id`, t.ID)
	if err != nil {
		return Team{}, err
	}
	defer rows.Close()
	t.Categories = []Category{}
	for rows.Next() {
		c := Category{IsActive: true}
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return Team{}, err
		}
		t.Categories = append(t.Categories, c)
	}
	return t, rows.Err()
}

// AssignCategory adds an active category to a team. Assigning twice is a
// no-op.
func (d *DB) AssignCategory(ctx context.Context, teamID, categoryID int64) error {
	var active int
	err := d.sql.QueryRowContext(ctx, "SELECT is_active FROM categories WHERE id = ?", categoryID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("category %d: %w", categoryID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if active != 1 {
		return fmt.Errorf("category %d: %w", categoryID, ErrInactiveCategory)
	}
	if err := d.teamExists(ctx, teamID); err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, "INSERT INTO team_categories(team_id, category_id) VALUES(?, ?) ON CONFLICT DO NOTHING", teamID, categoryID)
	return err
}

func (d *DB) UnassignCategory(ctx context.Context, teamID, categoryID int64) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM team_categories WHERE team_id = ? AND category_id = ?", teamID, categoryID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("category %d on team %d: %w", categoryID, teamID, ErrNotFound)
	}
	return nil
}

func (d *DB) teamExists(ctx context.Context, id int64) error {
	var one int
	err := d.sql.QueryRowContext(ctx, "SELECT 1 FROM teams WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("team %d: %w", id, ErrNotFound)
	}
	return err
}
