package domain

// Tag is a named label with a display icon.
// Books reference tags by name; renaming a tag does not rewrite Book.Tags.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name" validate:"required"`
	Icon string `json:"icon"`
}

// TagPatch is a partial update of a tag.
type TagPatch struct {
	Name Field[string]
	Icon Field[string]
}
