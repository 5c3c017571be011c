package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/starlight-qa/starlight/pkg/report"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
	ErrInactiveCategory = errors.New("category is not active")
	ErrEmptyName        = errors.New("name must not be empty")
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS categories (
  id         INTEGER PRIMARY KEY,
  title      TEXT NOT NULL UNIQUE,
  is_active  INTEGER NOT NULL DEFAULT 1 CHECK (is_active IN (0,1)),
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_categories_title ON categories(lower(title));
CREATE TABLE IF NOT EXISTS teams (
  id         INTEGER PRIMARY KEY,
  name       TEXT NOT NULL UNIQUE,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS team_categories (
  team_id     INTEGER NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
  category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
  PRIMARY KEY (team_id, category_id)
);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// AddCategory creates an active category.
func (d *DB) AddCategory(ctx context.Context, title string) (Category, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Category{}, ErrEmptyName
	}
	res, err := d.sql.ExecContext(ctx, "INSERT INTO categories(title, is_active) VALUES(?, 1)", title)
	if err != nil {
		if isUniqueViolation(err) {
			return Category{}, fmt.Errorf("category %q: %w", title, ErrDuplicate)
		}
		return Category{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Category{}, err
	}
	return Category{ID: id, Title: title, IsActive: true}, nil
}

// ListCategories returns categories ordered case-insensitively by title.
func (d *DB) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	q := "SELECT id, title, is_active FROM categories"
	if activeOnly {
		q += " WHERE is_active = 1"
	}
	q += " ORDER BY lower(title), id"
	rows, err := d.sql.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		var active int
		if err := rows.Scan(&c.ID, &c.Title, &active); err != nil {
			return nil, err
		}
		c.IsActive = active == 1
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategory looks a category up by id or, when ref is not a number, by
// title.
func (d *DB) GetCategory(ctx context.Context, ref string) (Category, error) {
	var c Category
	var active int
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, title, is_active FROM categories WHERE CAST(id AS TEXT) = ? OR title = ? ORDER BY id LIMIT 1",
		ref, ref).Scan(&c.ID, &c.Title, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, fmt.Errorf("category %q: %w", ref, ErrNotFound)
	}
	if err != nil {
		return Category{}, err
	}
	c.IsActive = active == 1
	return c, nil
}

// SetCategoryActive toggles a category. Deactivated categories keep their
// team assignments but drop out of every listing that only shows active ones.
func (d *DB) SetCategoryActive(ctx context.Context, id int64, active bool) error {
	res, err := d.sql.ExecContext(ctx, "UPDATE categories SET is_active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	return nil
}

// ImportCategories adds every title not stored yet as an active category and
// returns how many were added. Existing categories are left untouched.
func (d *DB) ImportCategories(ctx context.Context, titles []string) (added int, err error) {
	titles = lo.Uniq(lo.Compact(lo.Map(titles, func(t string, _ int) string {
		return strings.TrimSpace(t)
	})))

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, title := range titles {
		var res sql.Result
		res, err = tx.ExecContext(ctx, "INSERT INTO categories(title, is_active) VALUES(?, 1) ON CONFLICT(title) DO NOTHING", title)
		if err != nil {
			return 0, err
		}
		var n int64
		if n, err = res.RowsAffected(); err != nil {
			return 0, err
		}
		added += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// Snapshot captures the active categories for one report run.
func (d *DB) Snapshot(ctx context.Context) (report.Snapshot, error) {
	cats, err := d.ListCategories(ctx, true)
	if err != nil {
		return report.Snapshot{}, err
	}
	return report.NewSnapshot(lo.Map(cats, func(c Category, _ int) report.Category {
		return report.Category{ID: c.ID, Title: c.Title}
	})), nil
}
