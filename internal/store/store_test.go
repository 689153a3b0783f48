package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/store"
)

func setupTestStore(t *testing.T) *store.Badger {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBooks_CRUD(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := &store.BookRecord{
		UUID:   "6f1c2a54-0c5e-4d6b-9b0e-7c4f7d8a1b23",
		Author: "J. Doe",
		Title:  "First Book",
		Added:  "2024-01-02T03:04:05.000000+00:00",
		Tags:   []string{"novel"},
	}
	require.NoError(t, s.CreateBook(ctx, rec))

	err := s.CreateBook(ctx, rec)
	assert.True(t, errors.Is(err, store.ErrAlreadyExists))

	got, err := s.GetBook(ctx, rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	updated, err := s.UpdateBook(ctx, rec.UUID, func(b *store.BookRecord) error {
		b.Title = "Second Book"
		b.UUID = "ignored"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Second Book", updated.Title)
	assert.Equal(t, rec.UUID, updated.UUID)

	got, err = s.GetBook(ctx, rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Second Book", got.Title)

	require.NoError(t, s.DeleteBook(ctx, rec.UUID))
	_, err = s.GetBook(ctx, rec.UUID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.True(t, errors.Is(err, errors.ErrNotFound), "store errors match coded errors")

	err = s.DeleteBook(ctx, rec.UUID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestBooks_UpdateAbortsOnError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := &store.BookRecord{UUID: "u1", Author: "A", Title: "T"}
	require.NoError(t, s.CreateBook(ctx, rec))

	_, err := s.UpdateBook(ctx, "u1", func(b *store.BookRecord) error {
		b.Title = "changed"
		return errors.Validation("nope")
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	got, err := s.GetBook(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)

	_, err = s.UpdateBook(ctx, "missing", func(*store.BookRecord) error { return nil })
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestBooks_ListSkipsOtherPrefixes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.CreateBook(ctx, &store.BookRecord{UUID: id, Author: "A", Title: id}))
	}
	require.NoError(t, s.CreateTag(ctx, &store.TagRecord{Name: "novel"}))

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "a", books[0].UUID)
	assert.Equal(t, "b", books[1].UUID)
	assert.Equal(t, "c", books[2].UUID)
}

func TestTags_SequenceAndNameIndex(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := &store.TagRecord{Name: "novel", Icon: "📖"}
	require.NoError(t, s.CreateTag(ctx, first))
	second := &store.TagRecord{Name: "essay"}
	require.NoError(t, s.CreateTag(ctx, second))

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	err := s.CreateTag(ctx, &store.TagRecord{Name: "novel"})
	assert.True(t, errors.Is(err, store.ErrAlreadyExists))

	got, err := s.GetTagByName(ctx, "novel")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "📖", got.Icon)

	// Rename frees the old name.
	require.NoError(t, s.UpdateTag(ctx, &store.TagRecord{ID: first.ID, Name: "fiction", Icon: "📖"}))
	_, err = s.GetTagByName(ctx, "novel")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	got, err = s.GetTagByName(ctx, "fiction")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	// Renaming onto a taken name conflicts.
	err = s.UpdateTag(ctx, &store.TagRecord{ID: second.ID, Name: "fiction"})
	assert.True(t, errors.Is(err, store.ErrAlreadyExists))

	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "fiction", tags[0].Name)
	assert.Equal(t, "essay", tags[1].Name)

	require.NoError(t, s.DeleteTag(ctx, second.ID))
	_, err = s.GetTag(ctx, second.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	_, err = s.GetTagByName(ctx, "essay")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestTags_IDsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()

	s, err := store.New(path, nil)
	require.NoError(t, err)
	tag := &store.TagRecord{Name: "a"}
	require.NoError(t, s.CreateTag(ctx, tag))
	require.NoError(t, s.Close())

	s, err = store.New(path, nil)
	require.NoError(t, err)
	defer s.Close()

	next := &store.TagRecord{Name: "b"}
	require.NoError(t, s.CreateTag(ctx, next))
	assert.Greater(t, next.ID, tag.ID)
}

func TestContextCancelled(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListBooks(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.CreateBook(ctx, &store.BookRecord{UUID: "x"}), context.Canceled)
}
