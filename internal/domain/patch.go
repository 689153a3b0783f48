package domain

// Field is an optionally set attribute of a partial update.
// The zero value leaves the attribute untouched.
type Field[T any] struct {
	Value T
	Set   bool
	Null  bool // Set and cleared
}

// Set returns a field that assigns v.
func Set[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Clear returns a field that removes the attribute.
func Clear[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// FieldName identifies a patchable book attribute.
type FieldName string

// Patchable book attributes.
const (
	FieldAuthor       FieldName = "author"
	FieldTitle        FieldName = "title"
	FieldAdded        FieldName = "added"
	FieldRead         FieldName = "read"
	FieldTags         FieldName = "tags"
	FieldFilename     FieldName = "filename"
	FieldOtherFormats FieldName = "other_formats"
	FieldSeries       FieldName = "series"
	FieldNumSeries    FieldName = "num_series"
	FieldDescription  FieldName = "description"
)

// BookPatch is a typed partial update of a book. UUID is not patchable.
//
// Added and Read carry raw date text; it is normalized before it reaches
// the store (see catalog.NormalizeDate).
type BookPatch struct {
	Author       Field[string]
	Title        Field[string]
	Added        Field[string]
	Read         Field[string]
	Tags         Field[[]string]
	Filename     Field[string]
	OtherFormats Field[[]string]
	Series       Field[string]
	NumSeries    Field[float64]
	Description  Field[string]
}

// Fields returns the names of the attributes the patch sets, in a fixed order.
func (p *BookPatch) Fields() []FieldName {
	var names []FieldName
	add := func(set bool, name FieldName) {
		if set {
			names = append(names, name)
		}
	}
	add(p.Author.Set, FieldAuthor)
	add(p.Title.Set, FieldTitle)
	add(p.Added.Set, FieldAdded)
	add(p.Read.Set, FieldRead)
	add(p.Tags.Set, FieldTags)
	add(p.Filename.Set, FieldFilename)
	add(p.OtherFormats.Set, FieldOtherFormats)
	add(p.Series.Set, FieldSeries)
	add(p.NumSeries.Set, FieldNumSeries)
	add(p.Description.Set, FieldDescription)
	return names
}

// IsEmpty reports whether the patch sets nothing.
func (p *BookPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}
