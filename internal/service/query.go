package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/tometrove/tometrove/internal/catalog"
	"github.com/tometrove/tometrove/internal/domain"
)

// Order selects a sort direction.
type Order int

// Sort directions. OrderDefault is descending for "added" and ascending
// for everything else.
const (
	OrderDefault Order = iota
	OrderAscending
	OrderDescending
)

// SortFields lists the fields Sort understands.
var SortFields = []domain.FieldName{
	domain.FieldAdded,
	domain.FieldRead,
	domain.FieldNumSeries,
	domain.FieldAuthor,
	domain.FieldTitle,
	domain.FieldSeries,
	domain.FieldDescription,
	domain.FieldFilename,
	domain.FieldTags,
}

// QueryService answers read-only questions over the cached catalog.
type QueryService struct {
	books  *catalog.Books
	logger *slog.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(books *catalog.Books, logger *slog.Logger) *QueryService {
	return &QueryService{books: books, logger: logger}
}

// All returns every book in cache order.
func (q *QueryService) All(ctx context.Context) ([]domain.Book, error) {
	return q.books.All(ctx)
}

// Get returns one book.
func (q *QueryService) Get(ctx context.Context, bookID string) (domain.Book, error) {
	return q.books.Get(ctx, bookID)
}

// Sort returns every book stably ordered by field. Empty values sort first
// when ascending. An unknown field returns the books in cache order.
func (q *QueryService) Sort(ctx context.Context, field domain.FieldName, order Order) ([]domain.Book, error) {
	books, err := q.books.All(ctx)
	if err != nil {
		return nil, err
	}

	compare := comparator(field)
	if compare == nil {
		q.logger.Debug("unknown sort field, leaving order unchanged", "field", field)
		return books, nil
	}

	if order == OrderDefault {
		order = OrderAscending
		if field == domain.FieldAdded {
			order = OrderDescending
		}
	}
	if order == OrderDescending {
		asc := compare
		compare = func(a, b *domain.Book) int { return -asc(a, b) }
	}

	slices.SortStableFunc(books, func(a, b domain.Book) int { return compare(&a, &b) })
	return books, nil
}

func comparator(field domain.FieldName) func(a, b *domain.Book) int {
	fold := cases.Fold()
	text := func(get func(*domain.Book) string) func(a, b *domain.Book) int {
		return func(a, b *domain.Book) int {
			return strings.Compare(fold.String(get(a)), fold.String(get(b)))
		}
	}

	switch field {
	case domain.FieldAdded:
		return func(a, b *domain.Book) int { return a.Added.Compare(b.Added) }
	case domain.FieldRead:
		return func(a, b *domain.Book) int { return compareNil(a.Read, b.Read, func(x, y time.Time) int { return x.Compare(y) }) }
	case domain.FieldNumSeries:
		return func(a, b *domain.Book) int { return compareNil(a.NumSeries, b.NumSeries, cmp.Compare[float64]) }
	case domain.FieldAuthor:
		return text(func(b *domain.Book) string { return b.Author })
	case domain.FieldTitle:
		return text(func(b *domain.Book) string { return b.Title })
	case domain.FieldSeries:
		return text(func(b *domain.Book) string { return b.Series })
	case domain.FieldDescription:
		return text(func(b *domain.Book) string { return b.Description })
	case domain.FieldFilename:
		return text(func(b *domain.Book) string { return b.Filename })
	case domain.FieldTags:
		return text(func(b *domain.Book) string { return strings.Join(b.Tags, ", ") })
	default:
		return nil
	}
}

// compareNil orders nil before any value.
func compareNil[T any](a, b *T, compare func(x, y T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return compare(*a, *b)
	}
}

// SearchText returns the books whose title or author contains q, ignoring
// case. An empty query matches every book.
func (q *QueryService) SearchText(ctx context.Context, query string) ([]domain.Book, error) {
	books, err := q.books.All(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return books, nil
	}

	fold := cases.Fold()
	needle := fold.String(query)
	var out []domain.Book
	for _, b := range books {
		if strings.Contains(fold.String(b.Title), needle) || strings.Contains(fold.String(b.Author), needle) {
			out = append(out, b)
		}
	}
	return out, nil
}

// BySeries returns the books whose series equals name exactly.
// An empty name matches nothing.
func (q *QueryService) BySeries(ctx context.Context, name string) ([]domain.Book, error) {
	if name == "" {
		return []domain.Book{}, nil
	}
	books, err := q.books.All(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.Book{}
	for _, b := range books {
		if b.Series == name {
			out = append(out, b)
		}
	}
	return out, nil
}

// DistinctAuthors returns every author, sorted, de-duplicated, blank excluded.
func (q *QueryService) DistinctAuthors(ctx context.Context) ([]string, error) {
	return q.distinct(ctx, func(b *domain.Book) string { return b.Author })
}

// DistinctSeries returns every series name, sorted, de-duplicated, blank excluded.
func (q *QueryService) DistinctSeries(ctx context.Context) ([]string, error) {
	return q.distinct(ctx, func(b *domain.Book) string { return b.Series })
}

// DistinctTagNames returns the names in the tag table.
func (q *QueryService) DistinctTagNames(ctx context.Context) ([]string, error) {
	return q.books.Tags().Names(ctx)
}

func (q *QueryService) distinct(ctx context.Context, get func(*domain.Book) string) ([]string, error) {
	books, err := q.books.All(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(books))
	for i := range books {
		if v := get(&books[i]); strings.TrimSpace(v) != "" {
			values = append(values, v)
		}
	}
	slices.Sort(values)
	return slices.Compact(values), nil
}
