package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tometrove/tometrove/internal/catalog"
	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/pathing"
	"github.com/tometrove/tometrove/internal/store"
	"github.com/tometrove/tometrove/internal/tagger"
	"github.com/tometrove/tometrove/internal/validation"
)

const u1 = "6f1c2a54-0c5e-4d6b-9b0e-7c4f7d8a1b23"

type testEnv struct {
	root  string
	src   string
	books *catalog.Books
	sync  *SyncService
	query *QueryService
}

type tagFunc func(ctx context.Context, path string, md tagger.Metadata) error

func (f tagFunc) Tag(ctx context.Context, path string, md tagger.Metadata) error {
	return f(ctx, path, md)
}

// setupTestEnv creates a library root, a separate source directory and a
// Badger store, all under t.TempDir().
func setupTestEnv(t *testing.T, tg tagger.Tagger) *testEnv {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	logger := slog.New(slog.DiscardHandler)
	books := catalog.NewBooks(s, catalog.NewTags(s, logger), logger)
	root := t.TempDir()

	return &testEnv{
		root:  root,
		src:   t.TempDir(),
		books: books,
		sync:  NewSyncService(books, pathing.New(root, ".epub"), tg, validation.New(), logger),
		query: NewQueryService(books, logger),
	}
}

// source writes a file to add from outside the library.
func (e *testEnv) source(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(e.src, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (e *testEnv) lib(parts ...string) string {
	return filepath.Join(append([]string{e.root}, parts...)...)
}

func num(v float64) *float64 { return &v }

func TestEndToEnd(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	// Add.
	report, err := env.sync.Add(ctx, AddRequest{
		Book:       domain.Book{UUID: u1, Author: "J. Doe", Title: "First Book"},
		SourcePath: env.source(t, "upload.pdf", "pdf bytes"),
	})
	require.NoError(t, err)
	assert.False(t, report.Degraded(), report.Summary())
	assert.FileExists(t, env.lib("J Doe", "J Doe - First Book.pdf"))

	// Update title.
	report, err = env.sync.Update(ctx, u1, domain.BookPatch{Title: domain.Set("Second Book")})
	require.NoError(t, err)
	assert.False(t, report.Degraded(), report.Summary())
	assert.NoFileExists(t, env.lib("J Doe", "J Doe - First Book.pdf"))
	assert.FileExists(t, env.lib("J Doe", "J Doe - Second Book.pdf"))

	book, err := env.query.Get(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, "J Doe - Second Book.pdf", book.Filename)

	// Update author.
	report, err = env.sync.Update(ctx, u1, domain.BookPatch{Author: domain.Set("A. Smith")})
	require.NoError(t, err)
	assert.False(t, report.Degraded(), report.Summary())
	assert.FileExists(t, env.lib("A Smith", "A Smith - Second Book.pdf"))
	assert.NoDirExists(t, env.lib("J Doe"))

	// Remove.
	report, err = env.sync.Remove(ctx, u1)
	require.NoError(t, err)
	assert.False(t, report.Degraded(), report.Summary())
	assert.Equal(t, `removed "Second Book"`, report.Summary())

	_, err = env.query.Get(ctx, u1)
	assert.True(t, errors.Is(err, errors.ErrBookNotFound))
	assert.NoFileExists(t, env.lib("A Smith", "A Smith - Second Book.pdf"))
	assert.NoDirExists(t, env.lib("A Smith"))
	assert.DirExists(t, env.root, "library root is never removed")
}

func TestAdd_KeepsSourceAndModTime(t *testing.T) {
	env := setupTestEnv(t, nil)
	src := env.source(t, "book.epub", "epub bytes")
	mtime := time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	report, err := env.sync.Add(context.Background(), AddRequest{
		Book:       domain.Book{Author: "Ursula K. Le Guin", Title: "The Dispossessed"},
		SourcePath: src,
	})
	require.NoError(t, err)
	assert.Len(t, report.Book.UUID, 36)

	dest := env.lib("Ursula K Le Guin", "Ursula K Le Guin - The Dispossessed.epub")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "epub bytes", string(data))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))
	assert.FileExists(t, src, "source untouched")

	step, ok := report.Step(domain.StepTag)
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeSkipped, step.Outcome)
}

func TestAdd_SeriesBook(t *testing.T) {
	env := setupTestEnv(t, nil)

	report, err := env.sync.Add(context.Background(), AddRequest{
		Book:       domain.Book{Author: "Isaac Asimov", Title: "Foundation and Empire", Series: "Foundation", NumSeries: num(2.5)},
		SourcePath: env.source(t, "f.pdf", "x"),
	})
	require.NoError(t, err)
	assert.Equal(t, "02 - Isaac Asimov - Foundation and Empire.pdf", report.Book.Filename)
	assert.FileExists(t, env.lib("Foundation", "02 - Isaac Asimov - Foundation and Empire.pdf"))
}

func TestAdd_Errors(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.sync.Add(ctx, AddRequest{
		Book:       domain.Book{Author: "J. Doe", Title: "First Book"},
		SourcePath: env.source(t, "a.pdf", "a"),
	})
	require.NoError(t, err)

	t.Run("destination exists", func(t *testing.T) {
		report, err := env.sync.Add(ctx, AddRequest{
			Book:       domain.Book{Author: "J. Doe", Title: "First Book"},
			SourcePath: env.source(t, "b.pdf", "b"),
		})
		assert.True(t, errors.Is(err, errors.ErrDestinationExists))
		step, _ := report.Step(domain.StepResolve)
		assert.Equal(t, domain.OutcomeFailed, step.Outcome)

		data, _ := os.ReadFile(env.lib("J Doe", "J Doe - First Book.pdf"))
		assert.Equal(t, "a", string(data), "existing file not overwritten")
	})

	t.Run("invalid author", func(t *testing.T) {
		_, err := env.sync.Add(ctx, AddRequest{
			Book:       domain.Book{Author: "???", Title: "T"},
			SourcePath: env.source(t, "c.pdf", "c"),
		})
		assert.True(t, errors.Is(err, errors.ErrInvalidAuthor))
	})

	t.Run("negative series number", func(t *testing.T) {
		_, err := env.sync.Add(ctx, AddRequest{
			Book:       domain.Book{Author: "A", Title: "T", Series: "S", NumSeries: num(-1)},
			SourcePath: env.source(t, "d.pdf", "d"),
		})
		assert.True(t, errors.Is(err, errors.ErrValidation))
		assert.NoDirExists(t, env.lib("S"))
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := env.sync.Add(ctx, AddRequest{
			Book:       domain.Book{Author: "B", Title: "T"},
			SourcePath: filepath.Join(env.src, "nope.pdf"),
		})
		assert.True(t, errors.Is(err, errors.ErrNotFound))
		assert.NoDirExists(t, env.lib("B"))
	})

	all, err := env.query.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "failed adds leave no records")
}

func TestAdd_WithoutFile(t *testing.T) {
	env := setupTestEnv(t, nil)

	report, err := env.sync.Add(context.Background(), AddRequest{
		Book: domain.Book{Author: "A", Title: "T", Filename: "ignored.pdf"},
	})
	require.NoError(t, err)
	assert.Empty(t, report.Book.Filename)
	assert.NoDirExists(t, env.lib("A"))
}

func TestAdd_TaggingIsBestEffort(t *testing.T) {
	t.Run("tool failure", func(t *testing.T) {
		var tagged tagger.Metadata
		env := setupTestEnv(t, tagFunc(func(_ context.Context, _ string, md tagger.Metadata) error {
			tagged = md
			return errors.New("exiftool exited 1")
		}))

		report, err := env.sync.Add(context.Background(), AddRequest{
			Book:       domain.Book{Author: "A", Title: "T", Tags: []string{"x"}},
			SourcePath: env.source(t, "t.pdf", "t"),
		})
		require.NoError(t, err)
		assert.True(t, report.Degraded())
		assert.Contains(t, report.Summary(), "exiftool exited 1")
		assert.Equal(t, []string{"x"}, tagged.Tags)
		assert.FileExists(t, env.lib("A", "A - T.pdf"))

		_, err = env.query.Get(context.Background(), report.Book.UUID)
		assert.NoError(t, err, "record inserted despite tagging failure")
	})

	t.Run("tool missing", func(t *testing.T) {
		env := setupTestEnv(t, tagFunc(func(context.Context, string, tagger.Metadata) error {
			return tagger.ErrToolNotFound
		}))

		report, err := env.sync.Add(context.Background(), AddRequest{
			Book:       domain.Book{Author: "A", Title: "T"},
			SourcePath: env.source(t, "t.pdf", "t"),
		})
		require.NoError(t, err)
		step, _ := report.Step(domain.StepTag)
		assert.Equal(t, domain.OutcomeSkipped, step.Outcome)
		assert.True(t, report.Degraded())
	})

	t.Run("format not tagged", func(t *testing.T) {
		exif := tagger.NewExifTool(filepath.Join(t.TempDir(), "no-exiftool"), []string{".pdf"}, slog.New(slog.DiscardHandler))
		env := setupTestEnv(t, exif)

		report, err := env.sync.Add(context.Background(), AddRequest{
			Book:       domain.Book{Author: "A", Title: "T"},
			SourcePath: env.source(t, "t.mobi", "t"),
		})
		require.NoError(t, err)
		step, _ := report.Step(domain.StepTag)
		assert.Equal(t, domain.OutcomeSkipped, step.Outcome)
		assert.Contains(t, step.Detail, ".mobi")
		assert.False(t, report.Degraded())
	})
}

func addBook(t *testing.T, env *testEnv, book domain.Book, ext string) domain.Book {
	t.Helper()
	report, err := env.sync.Add(context.Background(), AddRequest{
		Book:       book,
		SourcePath: env.source(t, book.Title+ext, book.Title),
	})
	require.NoError(t, err)
	return report.Book
}

func TestUpdate_MovesFile(t *testing.T) {
	tests := []struct {
		name     string
		patch    domain.BookPatch
		wantPath []string
	}{
		{"title", domain.BookPatch{Title: domain.Set("New Title")}, []string{"J Doe", "J Doe - New Title.mobi"}},
		{"author", domain.BookPatch{Author: domain.Set("A. Smith")}, []string{"A Smith", "A Smith - Old Title.mobi"}},
		{"both", domain.BookPatch{Author: domain.Set("A. Smith"), Title: domain.Set("New Title")}, []string{"A Smith", "A Smith - New Title.mobi"}},
		{"into series", domain.BookPatch{Series: domain.Set("Saga"), NumSeries: domain.Set(3.0)}, []string{"Saga", "03 - J Doe - Old Title.mobi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t, nil)
			book := addBook(t, env, domain.Book{Author: "J. Doe", Title: "Old Title"}, ".mobi")
			oldPath := env.lib("J Doe", "J Doe - Old Title.mobi")
			require.FileExists(t, oldPath)

			report, err := env.sync.Update(context.Background(), book.UUID, tt.patch)
			require.NoError(t, err)
			assert.False(t, report.Degraded(), report.Summary())

			assert.NoFileExists(t, oldPath)
			assert.FileExists(t, env.lib(tt.wantPath...))
			assert.Equal(t, tt.wantPath[1], report.Book.Filename)
		})
	}
}

func TestUpdate_MetadataOnly(t *testing.T) {
	env := setupTestEnv(t, nil)
	book := addBook(t, env, domain.Book{Author: "A", Title: "T"}, ".pdf")

	report, err := env.sync.Update(context.Background(), book.UUID, domain.BookPatch{
		Description: domain.Set("Updated."),
		Read:        domain.Set("2024-05-01 20:30"),
		Tags:        domain.Set([]string{"read"}),
	})
	require.NoError(t, err)
	step, _ := report.Step(domain.StepMove)
	assert.Equal(t, domain.OutcomeSkipped, step.Outcome)

	got, err := env.query.Get(context.Background(), book.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Updated.", got.Description)
	require.NotNil(t, got.Read)
	assert.Equal(t, 2024, got.Read.Year())
	assert.Equal(t, []string{"read"}, got.Tags)
	assert.FileExists(t, env.lib("A", "A - T.pdf"))
}

func TestUpdate_NoFilenameSynthesises(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	report, err := env.sync.Add(ctx, AddRequest{Book: domain.Book{Author: "A", Title: "T"}})
	require.NoError(t, err)

	report, err = env.sync.Update(ctx, report.Book.UUID, domain.BookPatch{Title: domain.Set("Later")})
	require.NoError(t, err)
	assert.Equal(t, "A - Later.epub", report.Book.Filename)
	assert.NoDirExists(t, env.lib("A"), "nothing created on disk")
}

func TestUpdate_NoFilenameSeriesChangeKeepsEmpty(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	report, err := env.sync.Add(ctx, AddRequest{Book: domain.Book{Author: "A", Title: "T", Series: "S", NumSeries: num(1)}})
	require.NoError(t, err)

	report, err = env.sync.Update(ctx, report.Book.UUID, domain.BookPatch{
		Series:    domain.Clear[string](),
		NumSeries: domain.Clear[float64](),
	})
	require.NoError(t, err)
	assert.Empty(t, report.Book.Filename)
	step, _ := report.Step(domain.StepFilename)
	assert.Equal(t, domain.OutcomeSkipped, step.Outcome)

	_, err = env.sync.BookPath(ctx, report.Book.UUID)
	assert.True(t, errors.Is(err, errors.ErrNoFilename))
}

func TestUpdate_FileMissing(t *testing.T) {
	env := setupTestEnv(t, nil)
	book := addBook(t, env, domain.Book{Author: "A", Title: "T"}, ".pdf")
	require.NoError(t, os.Remove(env.lib("A", "A - T.pdf")))

	report, err := env.sync.Update(context.Background(), book.UUID, domain.BookPatch{Title: domain.Set("U")})
	require.NoError(t, err)
	assert.True(t, report.Degraded())
	assert.Equal(t, "A - U.pdf", report.Book.Filename, "filename corrected proactively")

	step, _ := report.Step(domain.StepMove)
	assert.Equal(t, domain.OutcomeSkipped, step.Outcome)
	assert.True(t, step.Degraded)
}

func TestUpdate_DestinationOccupied(t *testing.T) {
	env := setupTestEnv(t, nil)
	book := addBook(t, env, domain.Book{Author: "A", Title: "T"}, ".pdf")
	require.NoError(t, os.WriteFile(env.lib("A", "A - U.pdf"), []byte("other"), 0o644))

	report, err := env.sync.Update(context.Background(), book.UUID, domain.BookPatch{Title: domain.Set("U")})
	require.NoError(t, err)
	assert.True(t, report.Degraded())

	step, _ := report.Step(domain.StepMove)
	assert.Equal(t, domain.OutcomeFailed, step.Outcome)
	assert.Equal(t, "U", report.Book.Title, "metadata persisted")
	assert.Equal(t, "A - T.pdf", report.Book.Filename, "filename kept")
	assert.FileExists(t, env.lib("A", "A - T.pdf"))

	data, _ := os.ReadFile(env.lib("A", "A - U.pdf"))
	assert.Equal(t, "other", string(data))
}

func TestUpdate_LegacySeriesDirectory(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	// A file left in the old "Author - Series" layout.
	report, err := env.sync.Add(ctx, AddRequest{Book: domain.Book{Author: "A", Title: "T", Series: "S"}})
	require.NoError(t, err)
	legacy := env.lib("A - S", "old name.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(legacy), 0o755))
	require.NoError(t, os.WriteFile(legacy, []byte("x"), 0o644))
	_, err = env.sync.Update(ctx, report.Book.UUID, domain.BookPatch{Filename: domain.Set("old name.pdf")})
	require.NoError(t, err)
	assert.FileExists(t, legacy, "explicit filename does not move anything")

	report, err = env.sync.Update(ctx, report.Book.UUID, domain.BookPatch{NumSeries: domain.Set(1.0)})
	require.NoError(t, err)
	assert.False(t, report.Degraded(), report.Summary())
	assert.FileExists(t, env.lib("S", "01 - A - T.pdf"))
	assert.NoDirExists(t, env.lib("A - S"))
}

func TestUpdate_Errors(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	book := addBook(t, env, domain.Book{Author: "A", Title: "T"}, ".pdf")

	_, err := env.sync.Update(ctx, "00000000-0000-4000-8000-000000000000", domain.BookPatch{Title: domain.Set("x")})
	assert.True(t, errors.Is(err, errors.ErrBookNotFound))

	_, err = env.sync.Update(ctx, book.UUID, domain.BookPatch{Read: domain.Set("not a date"), Title: domain.Set("x")})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = env.sync.Update(ctx, book.UUID, domain.BookPatch{Author: domain.Set("***")})
	assert.True(t, errors.Is(err, errors.ErrInvalidAuthor))

	_, err = env.sync.Update(ctx, book.UUID, domain.BookPatch{Title: domain.Set("  ")})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	got, err := env.query.Get(ctx, book.UUID)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title, "rejected updates have no side effects")
	assert.FileExists(t, env.lib("A", "A - T.pdf"))
}

func TestUpdate_RetagsFile(t *testing.T) {
	var calls []tagger.Metadata
	env := setupTestEnv(t, tagFunc(func(_ context.Context, _ string, md tagger.Metadata) error {
		calls = append(calls, md)
		return nil
	}))
	book := addBook(t, env, domain.Book{Author: "A", Title: "T"}, ".pdf")

	_, err := env.sync.Update(context.Background(), book.UUID, domain.BookPatch{Title: domain.Set("U")})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "U", calls[1].Title)

	_, err = env.sync.Update(context.Background(), book.UUID, domain.BookPatch{NumSeries: domain.Set(1.0)})
	require.NoError(t, err)
	assert.Len(t, calls, 2, "no embedded field changed")
}

func TestRemove(t *testing.T) {
	t.Run("keeps shared directory", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		first := addBook(t, env, domain.Book{Author: "A", Title: "One"}, ".pdf")
		addBook(t, env, domain.Book{Author: "A", Title: "Two"}, ".pdf")

		report, err := env.sync.Remove(context.Background(), first.UUID)
		require.NoError(t, err)
		assert.NoFileExists(t, env.lib("A", "A - One.pdf"))
		assert.FileExists(t, env.lib("A", "A - Two.pdf"))

		step, _ := report.Step(domain.StepCleanupDir)
		assert.Equal(t, domain.OutcomeSkipped, step.Outcome)
		assert.False(t, report.Degraded())
	})

	t.Run("file already gone", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		book := addBook(t, env, domain.Book{Author: "A", Title: "One"}, ".pdf")
		require.NoError(t, os.Remove(env.lib("A", "A - One.pdf")))

		report, err := env.sync.Remove(context.Background(), book.UUID)
		require.NoError(t, err)
		assert.True(t, report.Degraded())
		step, _ := report.Step(domain.StepDeleteFile)
		assert.Equal(t, domain.OutcomeSkipped, step.Outcome)

		_, err = env.query.Get(context.Background(), book.UUID)
		assert.True(t, errors.Is(err, errors.ErrBookNotFound))
	})

	t.Run("record without file", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		report, err := env.sync.Add(context.Background(), AddRequest{Book: domain.Book{Author: "A", Title: "T"}})
		require.NoError(t, err)

		report, err = env.sync.Remove(context.Background(), report.Book.UUID)
		require.NoError(t, err)
		assert.False(t, report.Degraded())
	})

	t.Run("unknown uuid", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		_, err := env.sync.Remove(context.Background(), u1)
		assert.True(t, errors.Is(err, errors.ErrBookNotFound))
	})
}

func TestFilenameStaysInsideLibrary(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	victim := filepath.Join(env.src, "victim.pdf")
	require.NoError(t, os.WriteFile(victim, []byte("keep me"), 0o644))
	escape, err := filepath.Rel(env.lib("A"), victim)
	require.NoError(t, err)

	t.Run("edit rejects a path", func(t *testing.T) {
		book := addBook(t, env, domain.Book{Author: "A", Title: "T"}, ".pdf")

		_, err := env.sync.Update(ctx, book.UUID, domain.BookPatch{Filename: domain.Set(escape)})
		assert.True(t, errors.Is(err, errors.ErrValidation))

		got, err := env.query.Get(ctx, book.UUID)
		require.NoError(t, err)
		assert.Equal(t, "A - T.pdf", got.Filename)
	})

	t.Run("stored path is never followed", func(t *testing.T) {
		book, err := env.books.Insert(ctx, domain.Book{Author: "A", Title: "Escaped", Filename: escape})
		require.NoError(t, err)

		_, err = env.sync.BookPath(ctx, book.UUID)
		assert.Error(t, err)

		summary, err := env.sync.Reorganize(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, summary.Problems)
		assert.FileExists(t, victim)

		report, err := env.sync.Remove(ctx, book.UUID)
		require.NoError(t, err)
		step, _ := report.Step(domain.StepDeleteFile)
		assert.Equal(t, domain.OutcomeFailed, step.Outcome)
		assert.FileExists(t, victim, "file outside the library untouched")
	})
}

func TestPathHelpers(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	dir, err := env.sync.EnsureDirectory("J. Doe")
	require.NoError(t, err)
	assert.Equal(t, env.lib("J Doe"), dir)
	assert.DirExists(t, dir)

	_, err = env.sync.EnsureDirectory("...")
	assert.True(t, errors.Is(err, errors.ErrInvalidAuthor))

	report, err := env.sync.Add(ctx, AddRequest{Book: domain.Book{Author: "A", Title: "T"}})
	require.NoError(t, err)
	_, err = env.sync.BookPath(ctx, report.Book.UUID)
	assert.True(t, errors.Is(err, errors.ErrNoFilename))

	book := addBook(t, env, domain.Book{Author: "B", Title: "T"}, ".pdf")
	p, err := env.sync.BookPath(ctx, book.UUID)
	require.NoError(t, err)
	assert.Equal(t, env.lib("B", "B - T.pdf"), p)

	_, err = env.sync.BookPath(ctx, u1)
	assert.True(t, errors.Is(err, errors.ErrBookNotFound))
}

func TestReorganizeAndCheck(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	inPlace := addBook(t, env, domain.Book{Author: "A", Title: "Fine"}, ".pdf")

	misplaced, err := env.sync.Add(ctx, AddRequest{Book: domain.Book{Author: "A", Title: "Old", Series: "S", NumSeries: num(1)}})
	require.NoError(t, err)
	legacy := env.lib("A - S", "whatever.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(legacy), 0o755))
	require.NoError(t, os.WriteFile(legacy, []byte("x"), 0o644))
	_, err = env.sync.Update(ctx, misplaced.Book.UUID, domain.BookPatch{Filename: domain.Set("whatever.pdf")})
	require.NoError(t, err)

	missing, err := env.sync.Add(ctx, AddRequest{Book: domain.Book{Author: "C", Title: "Gone"}})
	require.NoError(t, err)
	_, err = env.sync.Update(ctx, missing.Book.UUID, domain.BookPatch{Filename: domain.Set("gone.pdf")})
	require.NoError(t, err)

	results, err := env.sync.Check(ctx)
	require.NoError(t, err)
	statuses := map[string]CheckStatus{}
	for _, r := range results {
		statuses[r.Book.UUID] = r.Status
	}
	assert.Equal(t, CheckOK, statuses[inPlace.UUID])
	assert.Equal(t, CheckMisplaced, statuses[misplaced.Book.UUID])
	assert.Equal(t, CheckMissing, statuses[missing.Book.UUID])
	assert.FileExists(t, legacy, "check is read-only")

	summary, err := env.sync.Reorganize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Moved)
	assert.Equal(t, 1, summary.InPlace)
	assert.Equal(t, 1, summary.Missing)
	assert.FileExists(t, env.lib("S", "01 - A - Old.pdf"))
	assert.NoDirExists(t, env.lib("A - S"))

	got, err := env.query.Get(ctx, misplaced.Book.UUID)
	require.NoError(t, err)
	assert.Equal(t, "01 - A - Old.pdf", got.Filename)
}

func TestCancelledContext(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.sync.Add(ctx, AddRequest{
		Book:       domain.Book{Author: "A", Title: "T"},
		SourcePath: env.source(t, "x.pdf", "x"),
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, env.lib("A"))
}
