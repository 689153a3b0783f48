package catalog

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/store"
)

// Books is the cached book table.
type Books struct {
	store  store.Store
	tags   *Tags
	logger *slog.Logger
	cache  *Cache[string, domain.Book]
	now    func() time.Time
}

// NewBooks builds the book table on top of s. tags must already exist.
func NewBooks(s store.Store, tags *Tags, logger *slog.Logger) *Books {
	b := &Books{
		store:  s,
		tags:   tags,
		logger: logger,
		now:    time.Now,
	}
	b.cache = NewCache(b.loadAll,
		func(book domain.Book) string { return book.UUID },
		func(book domain.Book) domain.Book { return book.Clone() },
	)
	return b
}

// Tags returns the tag table this book table was built with.
func (b *Books) Tags() *Tags {
	return b.tags
}

func (b *Books) loadAll(ctx context.Context) ([]domain.Book, error) {
	records, err := b.store.ListBooks(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to load books")
	}
	books := make([]domain.Book, 0, len(records))
	for _, rec := range records {
		books = append(books, b.fromRecord(rec))
	}
	b.logger.Debug("book cache rebuilt", "count", len(books))
	return books, nil
}

// All returns every book in uuid order.
func (b *Books) All(ctx context.Context) ([]domain.Book, error) {
	return b.cache.All(ctx)
}

// Get returns one book.
func (b *Books) Get(ctx context.Context, id string) (domain.Book, error) {
	book, ok, err := b.cache.Get(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if !ok {
		return domain.Book{}, errors.BookNotFound(id)
	}
	return book, nil
}

// Insert stores a new book, assigning a uuid and added time when absent.
func (b *Books) Insert(ctx context.Context, book domain.Book) (domain.Book, error) {
	defer b.cache.Invalidate()

	if book.UUID == "" {
		book.UUID = uuid.NewString()
	}
	if book.Added.IsZero() {
		book.Added = b.now()
	}
	book.Tags = keepList(book.Tags, false)
	book.OtherFormats = keepList(book.OtherFormats, false)

	if err := b.store.CreateBook(ctx, toRecord(&book)); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Book{}, errors.AlreadyExistsf("book %s already exists", book.UUID)
		}
		return domain.Book{}, errors.Wrap(err, errors.CodeInternal, "failed to insert book")
	}
	return book, nil
}

// ReplaceFields applies patch to the stored book and returns the result.
func (b *Books) ReplaceFields(ctx context.Context, id string, patch domain.BookPatch) (domain.Book, error) {
	defer b.cache.Invalidate()

	var merged domain.Book
	_, err := b.store.UpdateBook(ctx, id, func(rec *store.BookRecord) error {
		var err error
		merged, err = Merge(b.fromRecord(rec), patch)
		if err != nil {
			return err
		}
		*rec = *toRecord(&merged)
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Book{}, errors.BookNotFound(id)
		}
		if errors.Is(err, errors.ErrValidation) {
			return domain.Book{}, err
		}
		return domain.Book{}, errors.Wrap(err, errors.CodeInternal, "failed to update book")
	}
	return merged, nil
}

// Delete removes a book record.
func (b *Books) Delete(ctx context.Context, id string) error {
	defer b.cache.Invalidate()

	if err := b.store.DeleteBook(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.BookNotFound(id)
		}
		return errors.Wrap(err, errors.CodeInternal, "failed to delete book")
	}
	return nil
}

func toRecord(book *domain.Book) *store.BookRecord {
	rec := &store.BookRecord{
		UUID:         book.UUID,
		Author:       book.Author,
		Title:        book.Title,
		Added:        FormatDate(book.Added),
		Tags:         slices.Clone(book.Tags),
		Filename:     book.Filename,
		OtherFormats: slices.Clone(book.OtherFormats),
		Series:       book.Series,
		Description:  book.Description,
	}
	if book.Read != nil {
		rec.Read = FormatDate(*book.Read)
	}
	if book.NumSeries != nil {
		n := *book.NumSeries
		rec.NumSeries = &n
	}
	return rec
}

// fromRecord decodes a stored record. A corrupt added date falls back to
// now and a corrupt read date is dropped; both are logged.
func (b *Books) fromRecord(rec *store.BookRecord) domain.Book {
	book := domain.Book{
		UUID:         rec.UUID,
		Author:       rec.Author,
		Title:        rec.Title,
		Tags:         slices.Clone(rec.Tags),
		Filename:     rec.Filename,
		OtherFormats: slices.Clone(rec.OtherFormats),
		Series:       rec.Series,
		Description:  rec.Description,
	}
	if book.Tags == nil {
		book.Tags = []string{}
	}
	if book.OtherFormats == nil {
		book.OtherFormats = []string{}
	}
	if rec.NumSeries != nil {
		n := *rec.NumSeries
		book.NumSeries = &n
	}

	added, err := ParseDate(rec.Added)
	if err != nil {
		b.logger.Error("corrupt added date, using current time",
			"uuid", rec.UUID, "value", rec.Added)
		added = b.now()
	}
	book.Added = added

	if rec.Read != "" {
		read, err := ParseDate(rec.Read)
		if err != nil {
			b.logger.Error("corrupt read date, treating book as unread",
				"uuid", rec.UUID, "value", rec.Read)
		} else {
			book.Read = &read
		}
	}
	return book
}
