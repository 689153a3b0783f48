// Package service holds the library engine: the sync service that keeps the
// on-disk layout consistent with metadata edits, and the query service.
package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tometrove/tometrove/internal/catalog"
	"github.com/tometrove/tometrove/internal/domain"
	domainerrors "github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/fsname"
	"github.com/tometrove/tometrove/internal/id"
	"github.com/tometrove/tometrove/internal/pathing"
	"github.com/tometrove/tometrove/internal/tagger"
	"github.com/tometrove/tometrove/internal/validation"
)

// Report actions.
const (
	ActionAdded   = "added"
	ActionUpdated = "updated"
	ActionRemoved = "removed"
)

// SyncService applies mutations to the metadata store and the library tree
// together. Mutations run synchronously and are never rolled back: when a
// step fails, the returned Report says which steps completed.
type SyncService struct {
	books     *catalog.Books
	resolver  *pathing.Resolver
	tagger    tagger.Tagger
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewSyncService creates a new sync service.
func NewSyncService(
	books *catalog.Books,
	resolver *pathing.Resolver,
	tg tagger.Tagger,
	validator *validation.Validator,
	logger *slog.Logger,
) *SyncService {
	if tg == nil {
		tg = tagger.Noop{}
	}
	return &SyncService{
		books:     books,
		resolver:  resolver,
		tagger:    tg,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// AddRequest describes a book to add. SourcePath is the file to copy into
// the library; when empty, only the record is created.
type AddRequest struct {
	Book       domain.Book
	SourcePath string
}

// Resolver returns the path resolver the service writes with.
func (s *SyncService) Resolver() *pathing.Resolver {
	return s.resolver
}

// validate checks path safety first so an unusable author surfaces as
// InvalidAuthor rather than a generic validation failure.
func (s *SyncService) validate(book *domain.Book) error {
	if strings.TrimSpace(book.Author) != "" && !fsname.AuthorValid(book.Author) {
		return domainerrors.InvalidAuthor(book.Author)
	}
	return s.validator.Validate(book)
}

// Add copies the source file into its canonical place and records the book.
func (s *SyncService) Add(ctx context.Context, req AddRequest) (*domain.Report, error) {
	report := domain.NewReport(id.NewOp(), ActionAdded)
	log := s.logger.With("op", report.OpID)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	// 1. Validate.
	book := req.Book.Clone()
	if book.UUID == "" {
		book.UUID = uuid.NewString()
	}
	if book.Added.IsZero() {
		book.Added = s.now()
	}
	book.Filename = ""
	report.Book = book
	if err := s.validate(&book); err != nil {
		report.Failed(domain.StepValidate, err)
		return report, err
	}
	report.Succeeded(domain.StepValidate, "ok")

	if req.SourcePath == "" {
		return s.insert(ctx, log, report, book)
	}

	info, err := os.Stat(req.SourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = domainerrors.NotFoundf("source file %q does not exist", req.SourcePath)
		} else {
			err = domainerrors.Wrapf(err, domainerrors.CodeInternal, "cannot read source file %q", req.SourcePath)
		}
		report.Failed(domain.StepValidate, err)
		return report, err
	}
	if !info.Mode().IsRegular() {
		err := domainerrors.Validationf("source %q is not a regular file", req.SourcePath)
		report.Failed(domain.StepValidate, err)
		return report, err
	}

	// 2. Resolve the destination, keeping the source's extension.
	ext := filepath.Ext(req.SourcePath)
	if ext == "" {
		ext = s.resolver.Extension(&book)
	}
	target, err := s.resolver.TargetWithExt(&book, ext)
	if err != nil {
		report.Failed(domain.StepResolve, err)
		return report, err
	}
	dest := target.Path()
	if pathExists(dest) {
		err := domainerrors.DestinationExistsf("file %q already exists", dest)
		report.Failed(domain.StepResolve, err)
		return report, err
	}
	report.Succeeded(domain.StepResolve, "%s", dest)

	// 3. Write the file.
	if err := os.MkdirAll(target.Dir, 0o755); err != nil {
		err = domainerrors.Wrapf(err, domainerrors.CodeInternal, "cannot create directory %q", target.Dir)
		report.Failed(domain.StepCreateDir, err)
		return report, err
	}
	if err := copyFile(req.SourcePath, dest, info); err != nil {
		err = domainerrors.Wrap(err, domainerrors.CodeInternal, "copy failed")
		report.Failed(domain.StepCopy, err)
		return report, err
	}
	if err := restoreModTime(dest, info); err != nil {
		log.Warn("failed to preserve modification time", "path", dest, "error", err)
	}
	report.Succeeded(domain.StepCopy, "%s -> %s", req.SourcePath, dest)

	s.tag(ctx, log, report, dest, &book, info)

	// 4. Write the metadata.
	book.Filename = target.Filename
	return s.insert(ctx, log, report, book)
}

func (s *SyncService) insert(ctx context.Context, log *slog.Logger, report *domain.Report, book domain.Book) (*domain.Report, error) {
	saved, err := s.books.Insert(ctx, book)
	if err != nil {
		report.Failed(domain.StepMetadata, err)
		log.Error("failed to record book", "title", book.Title, "error", err)
		return report, err
	}
	report.Book = saved
	report.Succeeded(domain.StepMetadata, "recorded %s", saved.UUID)
	s.logReport(log, report)
	return report, nil
}

// tag embeds metadata into path. Failures only degrade the report.
// When info is set, the file's modification time is put back afterwards.
func (s *SyncService) tag(ctx context.Context, log *slog.Logger, report *domain.Report, path string, book *domain.Book, info os.FileInfo) {
	if _, disabled := s.tagger.(tagger.Noop); disabled {
		report.Skipped(domain.StepTag, "tagging disabled")
		return
	}
	err := s.tagger.Tag(ctx, path, tagger.Metadata{
		Author:      book.Author,
		Title:       book.Title,
		Tags:        book.Tags,
		Description: book.Description,
	})
	switch {
	case errors.Is(err, tagger.ErrUnsupported):
		report.Skipped(domain.StepTag, "%v", err)
		return
	case errors.Is(err, tagger.ErrToolNotFound):
		report.Missing(domain.StepTag, "%v", err)
	case err != nil:
		report.Failed(domain.StepTag, err)
		log.Warn("metadata tagging failed", "path", path, "error", err)
	default:
		report.Succeeded(domain.StepTag, "%s", filepath.Base(path))
	}
	if info != nil {
		if err := restoreModTime(path, info); err != nil {
			log.Debug("failed to restore modification time", "path", path, "error", err)
		}
	}
}

// Update persists patch and moves the book's file when the canonical path
// changed. Metadata is written even when the move fails.
func (s *SyncService) Update(ctx context.Context, bookID string, patch domain.BookPatch) (*domain.Report, error) {
	report := domain.NewReport(id.NewOp(), ActionUpdated)
	log := s.logger.With("op", report.OpID, "uuid", bookID)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	// 1. Validate the merged record.
	old, err := s.books.Get(ctx, bookID)
	if err != nil {
		report.Failed(domain.StepValidate, err)
		return report, err
	}
	report.Book = old

	merged, err := catalog.Merge(old, patch)
	if err != nil {
		report.Failed(domain.StepValidate, err)
		return report, err
	}
	if err := s.validate(&merged); err != nil {
		report.Failed(domain.StepValidate, err)
		return report, err
	}
	report.Succeeded(domain.StepValidate, "fields: %s", fieldList(patch.Fields()))

	// 2. Work out the filename and move the file.
	var movedFrom, located string
	if patch.Filename.Set {
		report.Skipped(domain.StepMove, "filename set explicitly")
	} else if domain.PathFieldsDiffer(&old, &merged) {
		var filename string
		filename, movedFrom, located = s.relocate(log, report, &old, &merged)
		if filename != merged.Filename {
			patch.Filename = domain.Set(filename)
		}
	} else {
		report.Skipped(domain.StepMove, "path unchanged")
	}

	// 3. Write the metadata.
	updated, err := s.books.ReplaceFields(ctx, bookID, patch)
	if err != nil {
		report.Failed(domain.StepMetadata, err)
		log.Error("failed to persist book metadata", "error", err)
		return report, err
	}
	report.Book = updated
	report.Succeeded(domain.StepMetadata, "saved")

	if located == "" && updated.HasFile() && !patch.Filename.Set {
		if p, err := s.locate(&updated); err == nil {
			located = p
		}
	}
	if located != "" && metadataFieldsDiffer(&old, &updated) {
		var info os.FileInfo
		if fi, err := os.Stat(located); err == nil {
			info = fi
		}
		s.tag(ctx, log, report, located, &updated, info)
	}

	// 4. Reconcile the old directory.
	if movedFrom != "" {
		s.cleanupDir(log, report, filepath.Dir(movedFrom))
	}

	s.logReport(log, report)
	return report, nil
}

// relocate handles a path-affecting change. It returns the filename to store,
// the path the file was moved away from ("" when nothing moved) and the
// file's current location ("" when unknown).
func (s *SyncService) relocate(log *slog.Logger, report *domain.Report, old, merged *domain.Book) (filename, movedFrom, located string) {
	// No file yet: synthesise a name when title or author changed, touch
	// nothing on disk.
	if !old.HasFile() {
		if old.Title == merged.Title && old.Author == merged.Author {
			report.Skipped(domain.StepFilename, "no file")
			return merged.Filename, "", ""
		}
		target, err := s.resolver.TargetWithExt(merged, s.resolver.DefaultExt())
		if err != nil {
			report.Failed(domain.StepFilename, err)
			return merged.Filename, "", ""
		}
		report.Succeeded(domain.StepFilename, "synthesised %s", target.Filename)
		return target.Filename, "", ""
	}

	// The new target keeps the old extension: merged.Filename is still
	// the old filename at this point.
	target, err := s.resolver.Target(merged)
	if err != nil {
		report.Failed(domain.StepResolve, err)
		return old.Filename, "", ""
	}
	dest := target.Path()

	src, err := s.locate(old)
	if err != nil {
		report.Failed(domain.StepResolve, err)
		return old.Filename, "", ""
	}
	if src == "" {
		report.Missing(domain.StepMove, "file %q not found in the library", old.Filename)
		log.Warn("book file missing, storing new filename anyway", "filename", old.Filename)
		return target.Filename, "", ""
	}

	if sameFile(src, dest) {
		report.Skipped(domain.StepMove, "already in place")
		return target.Filename, "", src
	}
	if pathExists(dest) {
		report.Failed(domain.StepMove, domainerrors.DestinationExistsf("file %q already exists", dest))
		log.Warn("move destination occupied", "from", src, "to", dest)
		return old.Filename, "", src
	}

	if !s.resolver.Contains(target.Dir) {
		report.Failed(domain.StepMove, domainerrors.Validationf("%s is outside the library", dest))
		return old.Filename, "", src
	}
	if err := os.MkdirAll(target.Dir, 0o755); err != nil {
		report.Failed(domain.StepCreateDir, err)
		return old.Filename, "", src
	}
	if err := os.Rename(src, dest); err != nil {
		report.Failed(domain.StepMove, err)
		log.Warn("failed to move book file", "from", src, "to", dest, "error", err)
		return old.Filename, "", src
	}
	report.Succeeded(domain.StepMove, "%s -> %s", src, dest)
	return target.Filename, src, dest
}

// Remove deletes the record, then the file, then the directory if it is left
// empty. Nothing after the record deletion is fatal.
func (s *SyncService) Remove(ctx context.Context, bookID string) (*domain.Report, error) {
	report := domain.NewReport(id.NewOp(), ActionRemoved)
	log := s.logger.With("op", report.OpID, "uuid", bookID)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	old, err := s.books.Get(ctx, bookID)
	if err != nil {
		report.Failed(domain.StepValidate, err)
		return report, err
	}
	report.Book = old

	// Candidates come from the record, so compute them before it is gone.
	candidates, resolveErr := s.resolver.Candidates(&old)

	// 1. Delete the record.
	if err := s.books.Delete(ctx, bookID); err != nil {
		report.Failed(domain.StepDeleteEntry, err)
		return report, err
	}
	report.Succeeded(domain.StepDeleteEntry, "deleted %s", bookID)

	// 2. Delete the file.
	switch {
	case !old.HasFile():
		report.Skipped(domain.StepDeleteFile, "no file")
	case resolveErr != nil:
		report.Failed(domain.StepDeleteFile, resolveErr)
	default:
		path := firstExisting(s.inLibrary(candidates))
		if path == "" {
			report.Missing(domain.StepDeleteFile, "file %q not found", old.Filename)
			break
		}
		if err := os.Remove(path); err != nil {
			report.Failed(domain.StepDeleteFile, err)
			log.Warn("failed to delete book file", "path", path, "error", err)
			break
		}
		report.Succeeded(domain.StepDeleteFile, "%s", path)

		// 3. Remove the directory if now empty.
		s.cleanupDir(log, report, filepath.Dir(path))
	}

	s.logReport(log, report)
	return report, nil
}

// cleanupDir removes dir when it is empty and strictly inside the library.
func (s *SyncService) cleanupDir(log *slog.Logger, report *domain.Report, dir string) {
	if !s.resolver.Contains(dir) {
		report.Skipped(domain.StepCleanupDir, "%s is not inside the library", dir)
		return
	}
	empty, err := dirEmpty(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			report.Skipped(domain.StepCleanupDir, "%s already gone", dir)
			return
		}
		report.Failed(domain.StepCleanupDir, err)
		return
	}
	if !empty {
		report.Skipped(domain.StepCleanupDir, "%s not empty", dir)
		return
	}
	if err := os.Remove(dir); err != nil {
		report.Failed(domain.StepCleanupDir, err)
		log.Warn("failed to remove empty directory", "dir", dir, "error", err)
		return
	}
	report.Succeeded(domain.StepCleanupDir, "removed %s", dir)
}

// locate returns the first existing candidate path of book, "" when none.
func (s *SyncService) locate(book *domain.Book) (string, error) {
	candidates, err := s.resolver.Candidates(book)
	if err != nil {
		return "", err
	}
	return firstExisting(s.inLibrary(candidates)), nil
}

// inLibrary keeps the paths whose directory lies strictly inside the library.
func (s *SyncService) inLibrary(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if s.resolver.Contains(filepath.Dir(p)) {
			out = append(out, p)
		}
	}
	return out
}

// EnsureDirectory creates the author's directory and returns its path.
func (s *SyncService) EnsureDirectory(author string) (string, error) {
	dir, err := s.resolver.AuthorDir(author)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domainerrors.Wrapf(err, domainerrors.CodeInternal, "cannot create directory %q", dir)
	}
	return dir, nil
}

// BookPath returns the canonical path of a stored book's file.
func (s *SyncService) BookPath(ctx context.Context, bookID string) (string, error) {
	book, err := s.books.Get(ctx, bookID)
	if err != nil {
		return "", err
	}
	return s.PathFor(&book)
}

// PathFor returns the canonical path of book's current filename.
func (s *SyncService) PathFor(book *domain.Book) (string, error) {
	return s.resolver.BookPath(book)
}

func (s *SyncService) logReport(log *slog.Logger, report *domain.Report) {
	if report.Degraded() {
		log.Warn(report.Summary(), "action", report.Action, "title", report.Book.Title)
		return
	}
	log.Info(report.Summary(), "action", report.Action, "title", report.Book.Title)
}

// metadataFieldsDiffer reports whether any embedded metadata changed.
func metadataFieldsDiffer(a, b *domain.Book) bool {
	return a.Author != b.Author || a.Title != b.Title || a.Description != b.Description ||
		strings.Join(a.Tags, "\x00") != strings.Join(b.Tags, "\x00")
}

func fieldList(fields []domain.FieldName) string {
	if len(fields) == 0 {
		return "none"
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
