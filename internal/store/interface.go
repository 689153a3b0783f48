// Package store defines the persistence interface for the TomeTrove library
// and its default Badger implementation.
package store

import (
	"context"
)

// BookRecord is the persisted document form of a book.
// Dates are kept as text; decoding them is the catalog's job.
type BookRecord struct {
	UUID         string   `json:"uuid"`
	Author       string   `json:"author"`
	Title        string   `json:"title"`
	Added        string   `json:"added"`
	Read         string   `json:"read,omitempty"`
	Tags         []string `json:"tags"`
	Filename     string   `json:"filename"`
	OtherFormats []string `json:"other_formats"`
	Series       string   `json:"series,omitempty"`
	NumSeries    *float64 `json:"num_series,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// TagRecord is the persisted form of a tag.
type TagRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Close() error

	// Books
	ListBooks(ctx context.Context) ([]*BookRecord, error)
	GetBook(ctx context.Context, uuid string) (*BookRecord, error)
	CreateBook(ctx context.Context, book *BookRecord) error
	// UpdateBook loads the record, applies fn and writes the result back in
	// one transaction. Returns ErrNotFound when the record does not exist.
	UpdateBook(ctx context.Context, uuid string, fn func(*BookRecord) error) (*BookRecord, error)
	DeleteBook(ctx context.Context, uuid string) error

	// Tags
	ListTags(ctx context.Context) ([]*TagRecord, error)
	GetTag(ctx context.Context, id int64) (*TagRecord, error)
	GetTagByName(ctx context.Context, name string) (*TagRecord, error)
	// CreateTag assigns tag.ID. Returns ErrAlreadyExists on a duplicate name.
	CreateTag(ctx context.Context, tag *TagRecord) error
	UpdateTag(ctx context.Context, tag *TagRecord) error
	DeleteTag(ctx context.Context, id int64) error
}

// Compile-time check.
var _ Store = (*Badger)(nil)
