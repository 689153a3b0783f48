// Package pathing computes where a book's file belongs in the library tree.
//
// The resolver never touches the filesystem: it only produces candidate
// strings. Deciding whether a candidate exists is up to the caller.
package pathing

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/fsname"
)

// DefaultExtension is used when neither the filename nor other formats carry one.
const DefaultExtension = ".epub"

// Target is the canonical location of a book's file.
type Target struct {
	Dir      string
	Filename string
}

// Path joins the directory and filename.
func (t Target) Path() string {
	return filepath.Join(t.Dir, t.Filename)
}

// Resolver maps book metadata to library paths.
type Resolver struct {
	root       string
	defaultExt string
}

// New creates a resolver rooted at root.
func New(root, defaultExt string) *Resolver {
	if defaultExt == "" {
		defaultExt = DefaultExtension
	}
	return &Resolver{
		root:       filepath.Clean(root),
		defaultExt: NormalizeExt(defaultExt),
	}
}

// Root returns the library root directory.
func (r *Resolver) Root() string {
	return r.root
}

// DefaultExt returns the configured fallback extension.
func (r *Resolver) DefaultExt() string {
	return r.defaultExt
}

// NormalizeExt ensures a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Extension picks the book's file extension: the current filename's suffix,
// then the first other format's, then the default.
func (r *Resolver) Extension(book *domain.Book) string {
	if ext := filepath.Ext(book.Filename); ext != "" {
		return ext
	}
	if len(book.OtherFormats) > 0 {
		if ext := filepath.Ext(book.OtherFormats[0]); ext != "" {
			return ext
		}
	}
	return r.defaultExt
}

// SeriesPrefix formats a series position as the integer floor, padded to two
// digits. 2.5 becomes "02", 12 becomes "12".
func SeriesPrefix(n float64) string {
	f := math.Floor(n)
	if f == 0 {
		f = 0 // drop the sign of -0
	}
	return fmt.Sprintf("%02.0f", f)
}

// Target computes the canonical directory and filename of book.
func (r *Resolver) Target(book *domain.Book) (Target, error) {
	return r.TargetWithExt(book, r.Extension(book))
}

// TargetWithExt is Target with an explicit extension.
func (r *Resolver) TargetWithExt(book *domain.Book, ext string) (Target, error) {
	if !fsname.AuthorValid(book.Author) {
		return Target{}, errors.InvalidAuthor(book.Author)
	}
	if n := book.NumSeries; n != nil && (*n < 0 || *n > domain.MaxNumSeries || math.IsNaN(*n) || math.IsInf(*n, 0)) {
		return Target{}, errors.Validationf("invalid series number %v", *book.NumSeries)
	}

	ext = NormalizeExt(ext)
	author := fsname.Author(book.Author)
	title := fsname.Title(book.Title)

	if book.IsSeriesBook() {
		return Target{
			Dir:      filepath.Join(r.root, fsname.Series(book.Series)),
			Filename: fmt.Sprintf("%s - %s - %s%s", SeriesPrefix(*book.NumSeries), author, title, ext),
		}, nil
	}

	return Target{
		Dir:      filepath.Join(r.root, author),
		Filename: fmt.Sprintf("%s - %s%s", author, title, ext),
	}, nil
}

// AuthorDir returns the plain author directory.
func (r *Resolver) AuthorDir(author string) (string, error) {
	if !fsname.AuthorValid(author) {
		return "", errors.InvalidAuthor(author)
	}
	return filepath.Join(r.root, fsname.Author(author)), nil
}

// BookPath returns where the book's stored filename is expected to live.
func (r *Resolver) BookPath(book *domain.Book) (string, error) {
	if !book.HasFile() {
		return "", errors.NoFilename(book.Title)
	}
	if !fsname.PlainFilename(book.Filename) {
		return "", invalidFilename(book.Filename)
	}
	target, err := r.Target(book)
	if err != nil {
		return "", err
	}
	return filepath.Join(target.Dir, book.Filename), nil
}

// Candidates lists, in priority order, every path under which the book's
// existing filename may currently reside: the canonical directory, the plain
// author directory, the legacy "Author - Series" directory and the
// series-only directory. Returns nil when the book has no filename.
func (r *Resolver) Candidates(book *domain.Book) ([]string, error) {
	if !book.HasFile() {
		return nil, nil
	}
	if !fsname.PlainFilename(book.Filename) {
		return nil, invalidFilename(book.Filename)
	}
	target, err := r.Target(book)
	if err != nil {
		return nil, err
	}

	author := fsname.Author(book.Author)
	dirs := []string{target.Dir, filepath.Join(r.root, author)}
	if strings.TrimSpace(book.Series) != "" {
		series := fsname.Series(book.Series)
		dirs = append(dirs,
			filepath.Join(r.root, author+" - "+series),
			filepath.Join(r.root, series),
		)
	}

	seen := make(map[string]bool, len(dirs))
	paths := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		p := filepath.Join(dir, book.Filename)
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths, nil
}

func invalidFilename(name string) error {
	return errors.Validationf("filename %q is not a plain file name", name)
}

// Contains reports whether dir lies strictly inside the library root.
// The root itself is never contained.
func (r *Resolver) Contains(dir string) bool {
	rel, err := filepath.Rel(r.root, filepath.Clean(dir))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
