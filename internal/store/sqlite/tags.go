package sqlite

import (
	"context"
	"database/sql"

	"github.com/tometrove/tometrove/internal/store"
)

// tagColumns is the ordered list of columns selected in tag queries.
const tagColumns = `id, name, icon`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*store.TagRecord, error) {
	var t store.TagRecord
	if err := scanner.Scan(&t.ID, &t.Name, &t.Icon); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTags returns all tags ordered by id.
func (s *Store) ListTags(ctx context.Context) ([]*store.TagRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*store.TagRecord
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}

// GetTag retrieves a tag by id.
// Returns store.ErrNotFound if the tag does not exist.
func (s *Store) GetTag(ctx context.Context, id int64) (*store.TagRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = ?`, id)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTagByName retrieves a tag by its exact name.
// Returns store.ErrNotFound if the tag does not exist.
func (s *Store) GetTagByName(ctx context.Context, name string) (*store.TagRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE name = ?`, name)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTag inserts a tag and sets its AUTOINCREMENT id.
// Returns store.ErrAlreadyExists on a duplicate name.
func (s *Store) CreateTag(ctx context.Context, t *store.TagRecord) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (name, icon) VALUES (?, ?)`, t.Name, t.Icon)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// UpdateTag replaces a tag's name and icon.
func (s *Store) UpdateTag(ctx context.Context, t *store.TagRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tags SET name = ?, icon = ? WHERE id = ?`, t.Name, t.Icon, t.ID)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// DeleteTag removes a tag.
func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
