package importer

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tometrove/tometrove/internal/catalog"
	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/pathing"
	"github.com/tometrove/tometrove/internal/service"
	"github.com/tometrove/tometrove/internal/store"
	"github.com/tometrove/tometrove/internal/tagger"
	"github.com/tometrove/tometrove/internal/validation"
)

func setupSync(t *testing.T) (*service.SyncService, *catalog.Books, string) {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	logger := slog.New(slog.DiscardHandler)
	books := catalog.NewBooks(s, catalog.NewTags(s, logger), logger)
	root := t.TempDir()
	return service.NewSyncService(books, pathing.New(root, ".epub"), tagger.Noop{}, validation.New(), logger), books, root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   ParsedName
		wantOK bool
	}{
		{"title and author", "The Old Man and the Sea - Ernest Hemingway.pdf", ParsedName{Title: "The Old Man and the Sea", Author: "Ernest Hemingway"}, true},
		{"with tags", "The Great Gatsby - F. Scott Fitzgerald - Classic, Literature.pdf", ParsedName{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Tags: []string{"Classic", "Literature"}}, true},
		{"separator inside tags", "T - A - x - y, z.epub", ParsedName{Title: "T", Author: "A", Tags: []string{"x - y", "z"}}, true},
		{"blank tags dropped", "T - A - a, , a,b.pdf", ParsedName{Title: "T", Author: "A", Tags: []string{"a", "a", "b"}}, true},
		{"no extension", "T - A", ParsedName{Title: "T", Author: "A"}, true},
		{"no author", "Just a title.pdf", ParsedName{}, false},
		{"blank author", "Title - .pdf", ParsedName{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFilename(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectoryImport(t *testing.T) {
	sync, books, root := setupSync(t)
	inbox := t.TempDir()
	ctx := context.Background()

	writeFile(t, filepath.Join(inbox, "Dune - Frank Herbert - sci-fi, classic.pdf"), "dune")
	writeFile(t, filepath.Join(inbox, "Emma - Jane Austen.PDF"), "emma")
	writeFile(t, filepath.Join(inbox, "unparseable.pdf"), "?")
	writeFile(t, filepath.Join(inbox, "Notes - Someone.txt"), "ignored by extension")
	writeFile(t, filepath.Join(inbox, ".Hidden - Someone.pdf"), "ignored hidden")
	writeFile(t, filepath.Join(inbox, "nested", "Deep - Someone.pdf"), "not descended")

	importer := NewDirectory(sync, []string{"pdf", ".epub"}, slog.New(slog.DiscardHandler))
	summary, err := importer.Import(ctx, inbox)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Added)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, "2 added, 1 skipped, 0 failed", summary.String())
	assert.True(t, strings.HasPrefix(summary.BatchID, "imp-"), summary.BatchID)

	assert.FileExists(t, filepath.Join(root, "Frank Herbert", "Frank Herbert - Dune.pdf"))
	assert.FileExists(t, filepath.Join(root, "Jane Austen", "Jane Austen - Emma.PDF"))

	all, err := books.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, b := range all {
		if b.Title == "Dune" {
			assert.Equal(t, []string{"sci-fi", "classic"}, b.Tags)
		}
	}

	// A second run finds everything already in place.
	first := summary.BatchID
	summary, err = importer.Import(ctx, inbox)
	require.NoError(t, err)
	assert.NotEqual(t, first, summary.BatchID)
	assert.Equal(t, 0, summary.Added)
	assert.Equal(t, 3, summary.Skipped)
}

func TestDirectoryImport_MissingDir(t *testing.T) {
	sync, _, _ := setupSync(t)
	importer := NewDirectory(sync, nil, slog.New(slog.DiscardHandler))

	_, err := importer.Import(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestDirectoryAccepts(t *testing.T) {
	all := NewDirectory(nil, nil, slog.New(slog.DiscardHandler))
	assert.True(t, all.Accepts("/in/a - b.mobi"))
	assert.False(t, all.Accepts("/in/.partial"))

	pdf := NewDirectory(nil, []string{".PDF"}, slog.New(slog.DiscardHandler))
	assert.True(t, pdf.Accepts("a - b.pdf"))
	assert.False(t, pdf.Accepts("a - b.epub"))
}

const calibreSchema = `
CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT, timestamp TIMESTAMP, path TEXT, series_index REAL);
CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE books_authors_link (id INTEGER PRIMARY KEY, book INTEGER, author INTEGER);
CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE books_tags_link (id INTEGER PRIMARY KEY, book INTEGER, tag INTEGER);
CREATE TABLE series (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE books_series_link (id INTEGER PRIMARY KEY, book INTEGER, series INTEGER);
CREATE TABLE comments (id INTEGER PRIMARY KEY, book INTEGER, text TEXT);
CREATE TABLE data (id INTEGER PRIMARY KEY, book INTEGER, format TEXT, name TEXT);

INSERT INTO books VALUES (1, 'Foundation', '2021-03-04 10:11:12.123456+00:00', 'Isaac Asimov/Foundation (1)', 1.0);
INSERT INTO books VALUES (2, 'Good Omens', '2022-01-01 00:00:00+00:00', 'Terry Pratchett/Good Omens (2)', 1.0);
INSERT INTO books VALUES (3, 'Lost', NULL, 'Nobody/Lost (3)', 1.0);

INSERT INTO authors VALUES (1, 'Isaac Asimov'), (2, 'Terry Pratchett'), (3, 'Neil Gaiman');
INSERT INTO books_authors_link VALUES (1, 1, 1), (2, 2, 2), (3, 2, 3);

INSERT INTO tags VALUES (1, 'sci-fi'), (2, 'humour');
INSERT INTO books_tags_link VALUES (1, 1, 1), (2, 2, 2);

INSERT INTO series VALUES (1, 'Foundation');
INSERT INTO books_series_link VALUES (1, 1, 1);

INSERT INTO comments VALUES (1, 2, '<p>The world ends on <b>Saturday</b>.</p>');

INSERT INTO data VALUES (1, 1, 'EPUB', 'Foundation - Isaac Asimov');
INSERT INTO data VALUES (2, 1, 'PDF', 'Foundation - Isaac Asimov');
INSERT INTO data VALUES (3, 2, 'EPUB', 'Good Omens - Terry Pratchett');
`

func createCalibreLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	db, err := sql.Open("sqlite", filepath.Join(dir, CalibreDatabase))
	require.NoError(t, err)
	_, err = db.Exec(calibreSchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	writeFile(t, filepath.Join(dir, "Isaac Asimov", "Foundation (1)", "Foundation - Isaac Asimov.pdf"), "pdf")
	writeFile(t, filepath.Join(dir, "Isaac Asimov", "Foundation (1)", "Foundation - Isaac Asimov.epub"), "epub")
	writeFile(t, filepath.Join(dir, "Terry Pratchett", "Good Omens (2)", "Good Omens - Terry Pratchett.epub"), "epub")
	return dir
}

func TestReadCalibre(t *testing.T) {
	dir := createCalibreLibrary(t)

	books, err := ReadCalibre(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, books, 3)

	foundation := books[0]
	assert.Equal(t, "Foundation", foundation.Title)
	assert.Equal(t, []string{"Isaac Asimov"}, foundation.Authors)
	assert.Equal(t, "Foundation", foundation.Series)
	assert.Equal(t, []string{"sci-fi"}, foundation.Tags)
	require.Len(t, foundation.Formats, 2)
	assert.Equal(t, "EPUB", foundation.Formats[0].Format)

	omens := books[1]
	assert.Equal(t, []string{"Terry Pratchett", "Neil Gaiman"}, omens.Authors)
	assert.Contains(t, omens.Comments, "<b>Saturday</b>")

	assert.Empty(t, books[2].Formats)
}

func TestReadCalibre_NoDatabase(t *testing.T) {
	_, err := ReadCalibre(context.Background(), t.TempDir())
	require.Error(t, err)
}

func TestConvertCalibre(t *testing.T) {
	cb := &CalibreBook{
		Title:       "Foundation",
		Authors:     []string{"Isaac Asimov", "Someone Else"},
		Series:      "Foundation",
		SeriesIndex: 1,
		Comments:    "<p>First <em>book</em>.</p>",
		Timestamp:   "2021-03-04 10:11:12.123456+00:00",
		Formats: []CalibreFormat{
			{Format: "EPUB", Path: "/cal/F/Foundation.epub"},
			{Format: "PDF", Path: "/cal/F/Foundation.pdf"},
			{Format: "MOBI", Path: "/cal/F/Foundation.mobi"},
		},
	}

	book, source := ConvertCalibre(cb)
	assert.Equal(t, "/cal/F/Foundation.pdf", source)
	assert.Equal(t, "Isaac Asimov", book.Author)
	assert.Equal(t, []string{"Foundation.epub", "Foundation.mobi"}, book.OtherFormats)
	require.NotNil(t, book.NumSeries)
	assert.InDelta(t, 1.0, *book.NumSeries, 0)
	assert.Equal(t, "First *book*.", book.Description)
	assert.Equal(t, 2021, book.Added.Year())

	noPDF, source := ConvertCalibre(&CalibreBook{Title: "X", Formats: []CalibreFormat{{Format: "EPUB", Path: "/x.epub"}}})
	assert.Equal(t, "/x.epub", source)
	assert.Equal(t, "Unknown", noPDF.Author)
	assert.Nil(t, noPDF.NumSeries)
	assert.True(t, noPDF.Added.IsZero())
}

func TestCalibreImport(t *testing.T) {
	sync, books, root := setupSync(t)
	dir := createCalibreLibrary(t)
	ctx := context.Background()

	summary, err := NewCalibre(sync, slog.New(slog.DiscardHandler)).Import(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Added)
	assert.Equal(t, 0, summary.Failed)

	assert.FileExists(t, filepath.Join(root, "Foundation", "01 - Isaac Asimov - Foundation.pdf"))
	assert.FileExists(t, filepath.Join(root, "Terry Pratchett", "Terry Pratchett - Good Omens.epub"))

	all, err := books.All(ctx)
	require.NoError(t, err)
	byTitle := make(map[string]domain.Book, len(all))
	for _, b := range all {
		byTitle[b.Title] = b
	}
	assert.Equal(t, "The world ends on **Saturday**.", byTitle["Good Omens"].Description)
	assert.Equal(t, []string{"Foundation - Isaac Asimov.epub"}, byTitle["Foundation"].OtherFormats)
	assert.Empty(t, byTitle["Lost"].Filename)
	assert.Equal(t, "Unknown", byTitle["Lost"].Author)
}
