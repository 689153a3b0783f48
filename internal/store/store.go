package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes.
const (
	bookPrefix = "book:" // book:{uuid} → BookRecord JSON
	tagPrefix  = "tag:"  // tag:{id, zero padded} → TagRecord JSON
	tagSeqKey  = "seq:tag"
)

// Badger is the default Store, keeping both tables in one Badger database.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
	tagSeq *badger.Sequence

	books *Entity[BookRecord]
	tags  *Entity[TagRecord]
}

// New opens (or creates) a Badger store at path.
func New(path string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Every mutation is durable once it returns
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	seq, err := db.GetSequence([]byte(tagSeqKey), 16)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open tag sequence: %w", err)
	}

	s := &Badger{
		db:     db,
		logger: logger,
		tagSeq: seq,
		books:  NewEntity[BookRecord](db, bookPrefix),
		tags: NewEntity[TagRecord](db, tagPrefix).
			WithIndex("name", func(t *TagRecord) []string {
				return []string{t.Name}
			}),
	}

	if logger != nil {
		logger.Info("Badger database opened", "path", path)
	}
	return s, nil
}

// Close releases the tag sequence and closes the database.
func (s *Badger) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	if err := s.tagSeq.Release(); err != nil && s.logger != nil {
		s.logger.Warn("failed to release tag sequence", "error", err)
	}
	return s.db.Close()
}

// ListBooks returns every book record in uuid order.
func (s *Badger) ListBooks(ctx context.Context) ([]*BookRecord, error) {
	return s.books.Collect(ctx)
}

// GetBook returns one book record.
func (s *Badger) GetBook(ctx context.Context, uuid string) (*BookRecord, error) {
	return s.books.Get(ctx, uuid)
}

// CreateBook stores a new book record.
func (s *Badger) CreateBook(ctx context.Context, book *BookRecord) error {
	return s.books.Create(ctx, book.UUID, book)
}

// UpdateBook applies fn to the stored record.
func (s *Badger) UpdateBook(ctx context.Context, uuid string, fn func(*BookRecord) error) (*BookRecord, error) {
	return s.books.Mutate(ctx, uuid, func(b *BookRecord) error {
		if err := fn(b); err != nil {
			return err
		}
		b.UUID = uuid
		return nil
	})
}

// DeleteBook removes one book record.
func (s *Badger) DeleteBook(ctx context.Context, uuid string) error {
	return s.books.Delete(ctx, uuid)
}

// tagKey pads ids so that key order matches numeric order.
func tagKey(id int64) string {
	return fmt.Sprintf("%020d", id)
}

// ListTags returns every tag ordered by id.
func (s *Badger) ListTags(ctx context.Context) ([]*TagRecord, error) {
	return s.tags.Collect(ctx)
}

// GetTag returns the tag with the given id.
func (s *Badger) GetTag(ctx context.Context, id int64) (*TagRecord, error) {
	return s.tags.Get(ctx, tagKey(id))
}

// GetTagByName returns the tag with the given name.
func (s *Badger) GetTagByName(ctx context.Context, name string) (*TagRecord, error) {
	return s.tags.GetByIndex(ctx, "name", name)
}

// CreateTag assigns the next id from the tag sequence and stores the tag.
// Sequence values are never reused, even when the insert fails.
func (s *Badger) CreateTag(ctx context.Context, tag *TagRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next, err := s.tagSeq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate tag id: %w", err)
	}
	candidate := *tag
	candidate.ID = int64(next) + 1 // ids start at 1
	if err := s.tags.Create(ctx, tagKey(candidate.ID), &candidate); err != nil {
		return err
	}
	tag.ID = candidate.ID
	return nil
}

// UpdateTag replaces the stored name and icon of tag.ID.
func (s *Badger) UpdateTag(ctx context.Context, tag *TagRecord) error {
	return s.tags.Update(ctx, tagKey(tag.ID), tag)
}

// DeleteTag removes a tag.
func (s *Badger) DeleteTag(ctx context.Context, id int64) error {
	return s.tags.Delete(ctx, tagKey(id))
}

// String identifies the backend in logs.
func (s *Badger) String() string {
	return "badger"
}
