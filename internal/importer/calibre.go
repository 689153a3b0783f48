package importer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	_ "modernc.org/sqlite"

	"github.com/tometrove/tometrove/internal/catalog"
	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/service"
)

// CalibreDatabase is the metadata file at the root of a Calibre library.
const CalibreDatabase = "metadata.db"

// CalibreFormat is one stored file of a Calibre book.
type CalibreFormat struct {
	Format string // upper case, e.g. "PDF"
	Path   string // absolute
}

// CalibreBook is a book as Calibre records it.
type CalibreBook struct {
	ID          int64
	Title       string
	Authors     []string
	Tags        []string
	Series      string
	SeriesIndex float64
	Comments    string
	Timestamp   string
	Formats     []CalibreFormat
}

// ReadCalibre loads every book from the Calibre library at dir.
func ReadCalibre(ctx context.Context, dir string) ([]CalibreBook, error) {
	dbPath := filepath.Join(dir, CalibreDatabase)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, errors.NotFoundf("no Calibre database at %q", dbPath)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open calibre database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT b.id, b.title, COALESCE(b.timestamp, ''), b.path, COALESCE(b.series_index, 1),
		       COALESCE(s.name, ''), COALESCE(c.text, '')
		FROM books b
		LEFT JOIN books_series_link bs ON bs.book = b.id
		LEFT JOIN series s ON s.id = bs.series
		LEFT JOIN comments c ON c.book = b.id
		ORDER BY b.id`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []CalibreBook
	index := make(map[int64]int)
	dirs := make(map[int64]string)
	for rows.Next() {
		var b CalibreBook
		var rel string
		if err := rows.Scan(&b.ID, &b.Title, &b.Timestamp, &rel, &b.SeriesIndex, &b.Series, &b.Comments); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		index[b.ID] = len(books)
		dirs[b.ID] = filepath.Join(dir, filepath.FromSlash(rel))
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	// Link tables keep their own id order, which is the order Calibre shows.
	err = eachPair(ctx, db, `
		SELECT l.book, a.name FROM books_authors_link l
		JOIN authors a ON a.id = l.author ORDER BY l.id`,
		func(bookID int64, name string) {
			if i, ok := index[bookID]; ok {
				books[i].Authors = append(books[i].Authors, name)
			}
		})
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}

	err = eachPair(ctx, db, `
		SELECT l.book, t.name FROM books_tags_link l
		JOIN tags t ON t.id = l.tag ORDER BY l.id`,
		func(bookID int64, name string) {
			if i, ok := index[bookID]; ok {
				books[i].Tags = append(books[i].Tags, name)
			}
		})
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}

	formats, err := db.QueryContext(ctx, `SELECT book, format, name FROM data ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query formats: %w", err)
	}
	defer formats.Close()
	for formats.Next() {
		var bookID int64
		var format, name string
		if err := formats.Scan(&bookID, &format, &name); err != nil {
			return nil, fmt.Errorf("scan format: %w", err)
		}
		i, ok := index[bookID]
		if !ok {
			continue
		}
		format = strings.ToUpper(format)
		books[i].Formats = append(books[i].Formats, CalibreFormat{
			Format: format,
			Path:   filepath.Join(dirs[bookID], name+"."+strings.ToLower(format)),
		})
	}
	if err := formats.Err(); err != nil {
		return nil, fmt.Errorf("iterate formats: %w", err)
	}

	return books, nil
}

func eachPair(ctx context.Context, db *sql.DB, query string, fn func(int64, string)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			return err
		}
		fn(id, value)
	}
	return rows.Err()
}

// Calibre imports the books of a Calibre library.
type Calibre struct {
	sync   *service.SyncService
	logger *slog.Logger
}

// NewCalibre creates a Calibre importer.
func NewCalibre(sync *service.SyncService, logger *slog.Logger) *Calibre {
	return &Calibre{sync: sync, logger: logger}
}

// Import adds every book of the Calibre library at dir. Books whose
// destination already exists are skipped.
func (c *Calibre) Import(ctx context.Context, dir string) (*Summary, error) {
	start := time.Now()
	c.logger.Info("reading Calibre library", "path", dir)

	books, err := ReadCalibre(ctx, dir)
	if err != nil {
		return nil, err
	}

	summary := newSummary()
	for i := range books {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		c.importBook(ctx, summary, &books[i])
	}

	c.logger.Info("Calibre import finished",
		"batch", summary.BatchID,
		"books", len(books),
		"added", summary.Added,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", time.Since(start),
	)
	return summary, nil
}

func (c *Calibre) importBook(ctx context.Context, summary *Summary, cb *CalibreBook) {
	book, source := ConvertCalibre(cb)
	if source != "" {
		if _, err := os.Stat(source); err != nil {
			c.logger.Warn("calibre file missing, importing metadata only", "title", cb.Title, "path", source)
			summary.problem(cb.Title, "file %s missing", source)
			source = ""
		}
	}

	report, err := c.sync.Add(ctx, service.AddRequest{Book: book, SourcePath: source})
	switch {
	case errors.Is(err, errors.ErrDestinationExists):
		summary.Skipped++
	case err != nil:
		summary.Failed++
		summary.problem(cb.Title, "%v", err)
		c.logger.Warn("failed to import calibre book", "title", cb.Title, "error", err)
	default:
		summary.Added++
		if report.Degraded() {
			summary.Degraded++
			summary.problem(cb.Title, "%s", strings.Join(report.Warnings(), "; "))
		}
	}
}

// ConvertCalibre maps a Calibre book to a new library book and returns the
// file to copy in ("" when the book has no formats). PDF is preferred over
// any other format; the remaining ones are listed in OtherFormats.
func ConvertCalibre(cb *CalibreBook) (domain.Book, string) {
	book := domain.Book{
		Author:      "Unknown",
		Title:       strings.TrimSpace(cb.Title),
		Tags:        slices.Clone(cb.Tags),
		Description: htmlToMarkdown(cb.Comments),
	}
	if len(cb.Authors) > 0 {
		book.Author = cb.Authors[0]
	}
	if strings.TrimSpace(cb.Series) != "" {
		book.Series = cb.Series
		n := cb.SeriesIndex
		book.NumSeries = &n
	}
	if t, err := catalog.ParseDate(cb.Timestamp); err == nil {
		book.Added = t
	}

	if len(cb.Formats) == 0 {
		return book, ""
	}
	primary := slices.IndexFunc(cb.Formats, func(f CalibreFormat) bool { return f.Format == "PDF" })
	if primary < 0 {
		primary = 0
	}
	for i, f := range cb.Formats {
		if i != primary {
			book.OtherFormats = append(book.OtherFormats, filepath.Base(f.Path))
		}
	}
	return book, cb.Formats[primary].Path
}

var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// htmlToMarkdown converts Calibre's HTML comments to Markdown. Plain text
// and unconvertible input are returned unchanged.
func htmlToMarkdown(s string) string {
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return strings.TrimSpace(s)
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(markdown)
}
