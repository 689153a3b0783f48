// Package importer bulk-loads books into the library from outside sources:
// a folder of conventionally named files, or a Calibre library.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/id"
	"github.com/tometrove/tometrove/internal/pathing"
	"github.com/tometrove/tometrove/internal/service"
)

// Summary counts the outcome of an import run.
type Summary struct {
	BatchID  string            `json:"batch_id"`
	Added    int               `json:"added"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Degraded int               `json:"degraded"`
	Problems []service.Problem `json:"problems,omitempty"`
}

func newSummary() *Summary {
	return &Summary{BatchID: id.MustGenerate(id.PrefixImport)}
}

func (s *Summary) problem(title, format string, args ...any) {
	s.Problems = append(s.Problems, service.Problem{Title: title, Detail: fmt.Sprintf(format, args...)})
}

// String renders a one-line status.
func (s *Summary) String() string {
	return fmt.Sprintf("%d added, %d skipped, %d failed", s.Added, s.Skipped, s.Failed)
}

// ParsedName is the metadata carried by a conventional file name.
type ParsedName struct {
	Title  string
	Author string
	Tags   []string
}

// ParseFilename reads "Title - Author[ - Tag1, Tag2].ext". Everything after
// the second separator is the tag list. ok is false when the title or the
// author is missing.
func ParseFilename(name string) (ParsedName, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, " - ")
	if len(parts) < 2 {
		return ParsedName{}, false
	}

	parsed := ParsedName{
		Title:  strings.TrimSpace(parts[0]),
		Author: strings.TrimSpace(parts[1]),
	}
	if parsed.Title == "" || parsed.Author == "" {
		return ParsedName{}, false
	}

	if len(parts) > 2 {
		for _, tag := range strings.Split(strings.Join(parts[2:], " - "), ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				parsed.Tags = append(parsed.Tags, tag)
			}
		}
	}
	return parsed, true
}

// Directory imports files whose names follow the "Title - Author" convention.
type Directory struct {
	sync       *service.SyncService
	extensions []string
	logger     *slog.Logger
}

// NewDirectory creates a directory importer. Only files with one of
// extensions are considered; an empty list accepts every extension.
func NewDirectory(sync *service.SyncService, extensions []string, logger *slog.Logger) *Directory {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		exts = append(exts, strings.ToLower(pathing.NormalizeExt(ext)))
	}
	return &Directory{sync: sync, extensions: exts, logger: logger}
}

// Accepts reports whether path has an importable extension and is not hidden.
func (d *Directory) Accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if len(d.extensions) == 0 {
		return true
	}
	return slices.Contains(d.extensions, strings.ToLower(filepath.Ext(base)))
}

// Import adds every matching file directly inside dir. Subdirectories are
// not descended into. Per-file failures are counted, not returned.
func (d *Directory) Import(ctx context.Context, dir string) (*Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.NotFoundf("directory %q does not exist", dir)
		}
		return nil, errors.Wrapf(err, errors.CodeInternal, "cannot read directory %q", dir)
	}

	summary := newSummary()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if !entry.Type().IsRegular() || !d.Accepts(entry.Name()) {
			continue
		}
		d.importFile(ctx, summary, filepath.Join(dir, entry.Name()))
	}

	d.logger.Info("directory import finished", "dir", dir, "batch", summary.BatchID,
		"added", summary.Added, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// ImportFile adds a single file.
func (d *Directory) ImportFile(ctx context.Context, path string) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	summary := newSummary()
	d.importFile(ctx, summary, path)
	return summary, nil
}

func (d *Directory) importFile(ctx context.Context, summary *Summary, path string) {
	name := filepath.Base(path)
	parsed, ok := ParseFilename(name)
	if !ok {
		d.logger.Warn("could not parse title and author from filename, skipping", "file", name)
		summary.Skipped++
		summary.problem(name, "name does not match \"Title - Author[ - Tags]\"")
		return
	}

	report, err := d.sync.Add(ctx, service.AddRequest{
		Book: domain.Book{
			Author: parsed.Author,
			Title:  parsed.Title,
			Tags:   parsed.Tags,
		},
		SourcePath: path,
	})
	if err != nil {
		if errors.Is(err, errors.ErrDestinationExists) {
			d.logger.Info("book already in library, skipping", "file", name)
			summary.Skipped++
			return
		}
		summary.Failed++
		summary.problem(parsed.Title, "%v", err)
		return
	}

	summary.Added++
	if report.Degraded() {
		summary.Degraded++
		summary.problem(parsed.Title, "%s", strings.Join(report.Warnings(), "; "))
	}
}
