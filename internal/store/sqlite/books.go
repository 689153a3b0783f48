package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tometrove/tometrove/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `uuid, author, title, added, read, tags, filename,
	other_formats, series, num_series, description`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a BookRecord.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*store.BookRecord, error) {
	var b store.BookRecord

	var (
		read         sql.NullString
		tags         string
		otherFormats string
		series       sql.NullString
		numSeries    sql.NullFloat64
		description  sql.NullString
	)

	err := scanner.Scan(
		&b.UUID,
		&b.Author,
		&b.Title,
		&b.Added,
		&read,
		&tags,
		&b.Filename,
		&otherFormats,
		&series,
		&numSeries,
		&description,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", b.UUID, err)
	}
	if err := json.Unmarshal([]byte(otherFormats), &b.OtherFormats); err != nil {
		return nil, fmt.Errorf("decode other_formats of %s: %w", b.UUID, err)
	}
	b.Read = read.String
	b.Series = series.String
	b.NumSeries = floatPtr(numSeries)
	b.Description = description.String

	return &b, nil
}

// bookArgs returns the column values of b in bookColumns order.
func bookArgs(b *store.BookRecord) ([]any, error) {
	tags, err := json.Marshal(nonNil(b.Tags))
	if err != nil {
		return nil, err
	}
	otherFormats, err := json.Marshal(nonNil(b.OtherFormats))
	if err != nil {
		return nil, err
	}
	return []any{
		b.UUID,
		b.Author,
		b.Title,
		b.Added,
		nullString(b.Read),
		string(tags),
		b.Filename,
		string(otherFormats),
		nullString(b.Series),
		nullFloat(b.NumSeries),
		nullString(b.Description),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ListBooks returns every book ordered by uuid.
func (s *Store) ListBooks(ctx context.Context) ([]*store.BookRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY uuid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*store.BookRecord
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

// GetBook retrieves a book by uuid.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, uuid string) (*store.BookRecord, error) {
	return getBook(ctx, s.db, uuid)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getBook(ctx context.Context, q queryer, uuid string) (*store.BookRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE uuid = ?`, uuid)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBook inserts a new book.
// Returns store.ErrAlreadyExists on a duplicate uuid.
func (s *Store) CreateBook(ctx context.Context, b *store.BookRecord) error {
	args, err := bookArgs(b)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// UpdateBook reads, modifies and writes one book in a transaction.
func (s *Store) UpdateBook(ctx context.Context, uuid string, fn func(*store.BookRecord) error) (*store.BookRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	b, err := getBook(ctx, tx, uuid)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	b.UUID = uuid

	args, err := bookArgs(b)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE books SET
			author = ?, title = ?, added = ?, read = ?, tags = ?, filename = ?,
			other_formats = ?, series = ?, num_series = ?, description = ?
		WHERE uuid = ?`, append(args[1:], uuid)...)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return b, nil
}

// DeleteBook removes a book.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) DeleteBook(ctx context.Context, uuid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE uuid = ?`, uuid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
