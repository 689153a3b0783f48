package service

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/id"
)

// Problem is a per-book failure collected by a bulk operation.
type Problem struct {
	UUID   string `json:"uuid"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// ReorganizeSummary counts what Reorganize did.
type ReorganizeSummary struct {
	OpID      string    `json:"op_id"`
	Moved     int       `json:"moved"`
	InPlace   int       `json:"in_place"`
	NoFile    int       `json:"no_file"`
	Missing   int       `json:"missing"`
	Conflicts int       `json:"conflicts"`
	Problems  []Problem `json:"problems,omitempty"`
}

// Reorganize moves every book's file to its canonical location and renames
// it to the canonical filename, cleaning up directories left empty.
// Per-book failures are collected, not returned.
func (s *SyncService) Reorganize(ctx context.Context) (*ReorganizeSummary, error) {
	summary := &ReorganizeSummary{OpID: id.NewOp()}
	log := s.logger.With("op", summary.OpID)

	books, err := s.books.All(ctx)
	if err != nil {
		return nil, err
	}

	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if !book.HasFile() {
			summary.NoFile++
			continue
		}
		problem := func(detail string) {
			summary.Problems = append(summary.Problems, Problem{UUID: book.UUID, Title: book.Title, Detail: detail})
		}

		target, err := s.resolver.Target(&book)
		if err != nil {
			problem(err.Error())
			continue
		}
		src, err := s.locate(&book)
		if err != nil {
			problem(err.Error())
			continue
		}
		dest := target.Path()

		switch {
		case src == "":
			summary.Missing++
			problem("file not found: " + book.Filename)
			continue
		case sameFile(src, dest):
			summary.InPlace++
			continue
		case pathExists(dest):
			summary.Conflicts++
			problem("destination exists: " + dest)
			continue
		case !s.resolver.Contains(target.Dir):
			problem("destination outside the library: " + dest)
			continue
		}

		if err := os.MkdirAll(target.Dir, 0o755); err != nil {
			problem(err.Error())
			continue
		}
		if err := os.Rename(src, dest); err != nil {
			problem(err.Error())
			continue
		}
		if target.Filename != book.Filename {
			if _, err := s.books.ReplaceFields(ctx, book.UUID, domain.BookPatch{Filename: domain.Set(target.Filename)}); err != nil {
				problem("moved but failed to record filename: " + err.Error())
				continue
			}
		}
		summary.Moved++
		log.Info("book reorganized", "uuid", book.UUID, "from", src, "to", dest)

		scratch := domain.NewReport(summary.OpID, "reorganize")
		s.cleanupDir(log, scratch, filepath.Dir(src))
	}

	log.Info("reorganize finished",
		"moved", summary.Moved, "in_place", summary.InPlace,
		"missing", summary.Missing, "conflicts", summary.Conflicts, "problems", len(summary.Problems))
	return summary, nil
}

// CheckStatus classifies a book's file during an audit.
type CheckStatus string

// Audit outcomes.
const (
	CheckOK        CheckStatus = "ok"
	CheckMisplaced CheckStatus = "misplaced"
	CheckMissing   CheckStatus = "missing"
	CheckInvalid   CheckStatus = "invalid"
)

// CheckResult is the audit outcome for one book.
type CheckResult struct {
	Book     domain.Book `json:"book"`
	Status   CheckStatus `json:"status"`
	Expected string      `json:"expected,omitempty"`
	Found    string      `json:"found,omitempty"`
	Detail   string      `json:"detail,omitempty"`
}

// Check audits every book that has a filename without changing anything:
// ok when the file sits at its canonical path, misplaced when it is only
// found at a legacy location, missing otherwise.
func (s *SyncService) Check(ctx context.Context) ([]CheckResult, error) {
	books, err := s.books.All(ctx)
	if err != nil {
		return nil, err
	}

	var results []CheckResult
	for _, book := range books {
		if !book.HasFile() {
			continue
		}
		res := CheckResult{Book: book}

		expected, err := s.resolver.BookPath(&book)
		if err != nil {
			res.Status = CheckInvalid
			res.Detail = err.Error()
			results = append(results, res)
			continue
		}
		res.Expected = expected

		found, err := s.locate(&book)
		switch {
		case err != nil:
			res.Status = CheckInvalid
			res.Detail = err.Error()
		case found == "":
			res.Status = CheckMissing
		case sameFile(found, expected):
			res.Status = CheckOK
			res.Found = found
		default:
			res.Status = CheckMisplaced
			res.Found = found
		}
		results = append(results, res)
	}
	return results, nil
}
