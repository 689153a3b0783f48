// Package domain contains the core entities of the TomeTrove library.
package domain

import (
	"slices"
	"strings"
	"time"
)

// MaxNumSeries bounds a book's position in its series.
const MaxNumSeries = 9999

// Book is the metadata record of one ebook in the library.
type Book struct {
	UUID         string     `json:"uuid" validate:"required,uuid"`
	Author       string     `json:"author" validate:"notblank"`
	Title        string     `json:"title" validate:"notblank"`
	Added        time.Time  `json:"added"`
	Read         *time.Time `json:"read,omitempty"`
	Tags         []string   `json:"tags"`
	Filename     string     `json:"filename" validate:"omitempty,filename"` // Relative to the book's directory, "" when no file
	OtherFormats []string   `json:"other_formats"`
	Series       string     `json:"series,omitempty"`
	NumSeries    *float64   `json:"num_series,omitempty" validate:"omitempty,gte=0,lte=9999,finite"`
	Description  string     `json:"description,omitempty"`
}

// Helper Methods.

// HasFile reports whether the book has an associated primary file.
func (b *Book) HasFile() bool {
	return strings.TrimSpace(b.Filename) != ""
}

// IsSeriesBook reports whether both series fields are set.
func (b *Book) IsSeriesBook() bool {
	return strings.TrimSpace(b.Series) != "" && b.NumSeries != nil
}

// IsRead reports whether the book has been finished.
func (b *Book) IsRead() bool {
	return b.Read != nil
}

// Clone returns a deep copy of the book.
func (b *Book) Clone() Book {
	c := *b
	c.Tags = slices.Clone(b.Tags)
	c.OtherFormats = slices.Clone(b.OtherFormats)
	if b.Read != nil {
		r := *b.Read
		c.Read = &r
	}
	if b.NumSeries != nil {
		n := *b.NumSeries
		c.NumSeries = &n
	}
	return c
}

// PathFieldsDiffer reports whether a and b would resolve to different canonical paths.
func PathFieldsDiffer(a, b *Book) bool {
	if a.Author != b.Author || a.Title != b.Title || a.Series != b.Series {
		return true
	}
	switch {
	case a.NumSeries == nil && b.NumSeries == nil:
		return false
	case a.NumSeries == nil || b.NumSeries == nil:
		return true
	default:
		return *a.NumSeries != *b.NumSeries
	}
}
