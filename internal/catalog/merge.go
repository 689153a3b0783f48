package catalog

import (
	"slices"
	"strings"

	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/fsname"
)

// Merge applies patch to a copy of book. Date attributes are parsed; a date
// that does not parse, or an attempt to clear a required attribute, is a
// validation error and book is left untouched.
func Merge(book domain.Book, patch domain.BookPatch) (domain.Book, error) {
	out := book.Clone()

	if f := patch.Author; f.Set {
		if f.Null {
			return book, errors.Validation("author cannot be cleared")
		}
		out.Author = f.Value
	}
	if f := patch.Title; f.Set {
		if f.Null {
			return book, errors.Validation("title cannot be cleared")
		}
		out.Title = f.Value
	}
	if f := patch.Added; f.Set {
		if f.Null || strings.TrimSpace(f.Value) == "" {
			return book, errors.Validation("added cannot be cleared")
		}
		t, err := ParseDate(f.Value)
		if err != nil {
			return book, errors.Wrap(err, errors.CodeValidation, "invalid added date")
		}
		out.Added = t
	}
	if f := patch.Read; f.Set {
		if f.Null || strings.TrimSpace(f.Value) == "" {
			out.Read = nil
		} else {
			t, err := ParseDate(f.Value)
			if err != nil {
				return book, errors.Wrap(err, errors.CodeValidation, "invalid read date")
			}
			out.Read = &t
		}
	}
	if f := patch.Tags; f.Set {
		out.Tags = keepList(f.Value, f.Null)
	}
	if f := patch.Filename; f.Set {
		if f.Null {
			out.Filename = ""
		} else {
			if !fsname.PlainFilename(f.Value) {
				return book, errors.Validationf("invalid filename %q: must be a plain file name", f.Value)
			}
			out.Filename = f.Value
		}
	}
	if f := patch.OtherFormats; f.Set {
		out.OtherFormats = keepList(f.Value, f.Null)
	}
	if f := patch.Series; f.Set {
		if f.Null {
			out.Series = ""
		} else {
			out.Series = f.Value
		}
	}
	if f := patch.NumSeries; f.Set {
		if f.Null {
			out.NumSeries = nil
		} else {
			n := f.Value
			out.NumSeries = &n
		}
	}
	if f := patch.Description; f.Set {
		if f.Null {
			out.Description = ""
		} else {
			out.Description = f.Value
		}
	}

	return out, nil
}

// keepList copies values as given. Order and repeats are preserved.
func keepList(values []string, null bool) []string {
	if null || len(values) == 0 {
		return []string{}
	}
	return slices.Clone(values)
}
