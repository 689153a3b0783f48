package main

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tometrove/tometrove/internal/catalog"
	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/service"
)

// bookFlags are the metadata flags shared by add and edit.
type bookFlags struct {
	title, author, series, num, description string
	added, read                             string
	tags, otherFormats                      []string
}

func (f *bookFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.title, "title", "t", "", "book title")
	fs.StringVarP(&f.author, "author", "a", "", "author name")
	fs.StringVarP(&f.series, "series", "s", "", "series name")
	fs.StringVarP(&f.num, "num", "n", "", "position in the series, e.g. 2 or 2.5")
	fs.StringVarP(&f.description, "description", "d", "", "description")
	fs.StringVar(&f.added, "added", "", `date added, e.g. "2024-03-01" or "yesterday"`)
	fs.StringVar(&f.read, "read", "", `date finished, e.g. "today"`)
	fs.StringSliceVar(&f.tags, "tags", nil, "comma-separated tag names")
	fs.StringSliceVar(&f.otherFormats, "other-formats", nil, "other format filenames kept beside the primary file")
}

func parseNum(s string) (float64, error) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Validationf("invalid series number %q", s)
	}
	return n, nil
}

func parseDate(s string, now time.Time) (time.Time, error) {
	normalized, err := parseDateInput(s, now)
	if err != nil {
		return time.Time{}, err
	}
	return catalog.ParseDate(normalized)
}

// book builds a new record from the flags.
func (f *bookFlags) book(now time.Time) (domain.Book, error) {
	b := domain.Book{
		Title:        f.title,
		Author:       f.author,
		Series:       f.series,
		Description:  f.description,
		Tags:         nonBlank(f.tags),
		OtherFormats: nonBlank(f.otherFormats),
	}
	if f.num != "" {
		n, err := parseNum(f.num)
		if err != nil {
			return b, err
		}
		b.NumSeries = &n
	}
	if f.added != "" {
		t, err := parseDate(f.added, now)
		if err != nil {
			return b, err
		}
		b.Added = t
	}
	if f.read != "" {
		t, err := parseDate(f.read, now)
		if err != nil {
			return b, err
		}
		b.Read = &t
	}
	return b, nil
}

// nonBlank trims flag values and drops the empty ones.
func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// optional sets a string field, clearing it when the value is empty.
func optional(v string) domain.Field[string] {
	if v == "" {
		return domain.Clear[string]()
	}
	return domain.Set(v)
}

// patch builds a partial update from the flags the user changed.
func (f *bookFlags) patch(cmd *cobra.Command, now time.Time) (domain.BookPatch, error) {
	var p domain.BookPatch
	changed := cmd.Flags().Changed

	if changed("title") {
		p.Title = domain.Set(f.title)
	}
	if changed("author") {
		p.Author = domain.Set(f.author)
	}
	if changed("series") {
		p.Series = optional(f.series)
	}
	if changed("description") {
		p.Description = optional(f.description)
	}
	if changed("tags") {
		p.Tags = domain.Set(nonBlank(f.tags))
	}
	if changed("other-formats") {
		p.OtherFormats = domain.Set(nonBlank(f.otherFormats))
	}
	if changed("num") {
		if f.num == "" {
			p.NumSeries = domain.Clear[float64]()
		} else {
			n, err := parseNum(f.num)
			if err != nil {
				return p, err
			}
			p.NumSeries = domain.Set(n)
		}
	}
	for _, d := range []struct {
		name  string
		value string
		field *domain.Field[string]
	}{
		{"added", f.added, &p.Added},
		{"read", f.read, &p.Read},
	} {
		if !changed(d.name) {
			continue
		}
		if d.value == "" {
			*d.field = domain.Clear[string]()
			continue
		}
		normalized, err := parseDateInput(d.value, now)
		if err != nil {
			return p, err
		}
		*d.field = domain.Set(normalized)
	}
	return p, nil
}

func (a *app) addCmd() *cobra.Command {
	var (
		flags   bookFlags
		verbose bool
	)
	cmd := &cobra.Command{
		Use:     "add [FILE]",
		GroupID: "books",
		Short:   "Add a book, copying FILE into the library",
		Long: `Add a book to the catalog. When FILE is given it is copied to the book's
canonical location; the source is left in place. Without FILE only the
catalog record is created.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := flags.book(time.Now())
			if err != nil {
				return err
			}
			sync, err := a.syncService()
			if err != nil {
				return err
			}
			req := service.AddRequest{Book: book}
			if len(args) == 1 {
				req.SourcePath = args[0]
			}
			report, err := sync.Add(cmd.Context(), req)
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), report, verbose)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show every step")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var (
		flags           bookFlags
		filename        string
		addTags, rmTags []string
		verbose         bool
	)
	cmd := &cobra.Command{
		Use:     "edit ID",
		GroupID: "books",
		Short:   "Change a book's metadata, moving or renaming its file to match",
		Long: `Change a book's metadata. ID is a uuid or an unambiguous uuid prefix.
Changing the author, title or series moves the file to its new canonical
location. Passing an empty value clears an optional field, e.g. --series "".
Setting --filename only records a new name and never touches the file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			book, err := a.findBook(ctx, args[0])
			if err != nil {
				return err
			}
			patch, err := flags.patch(cmd, time.Now())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("filename") {
				patch.Filename = optional(filename)
			}
			if len(addTags) > 0 || len(rmTags) > 0 {
				tags := book.Tags
				if patch.Tags.Set {
					tags = patch.Tags.Value
				}
				patch.Tags = domain.Set(editTags(tags, addTags, rmTags))
			}
			if patch.IsEmpty() {
				return errors.Validation("nothing to change")
			}

			sync, err := a.syncService()
			if err != nil {
				return err
			}
			report, err := sync.Update(ctx, book.UUID, patch)
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), report, verbose)
			return nil
		},
	}
	flags.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(&filename, "filename", "", "record a different filename without moving the file")
	fs.StringSliceVar(&addTags, "add-tag", nil, "add tags")
	fs.StringSliceVar(&rmTags, "rm-tag", nil, "remove tags")
	fs.BoolVarP(&verbose, "verbose", "v", false, "show every step")
	return cmd
}

// editTags drops remove from tags, then appends the tags of add it lacks.
// Existing entries keep their order.
func editTags(tags, add, remove []string) []string {
	out := make([]string, 0, len(tags)+len(add))
	for _, t := range tags {
		if !slices.Contains(remove, t) {
			out = append(out, t)
		}
	}
	for _, t := range nonBlank(add) {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func (a *app) rmCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:     "rm ID...",
		GroupID: "books",
		Short:   "Remove books and their files",
		Long: `Remove books from the catalog, delete their files and remove author
directories left empty. A file that is already gone is reported, not an error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sync, err := a.syncService()
			if err != nil {
				return err
			}
			for _, ref := range args {
				book, err := a.findBook(ctx, ref)
				if err != nil {
					return err
				}
				report, err := sync.Remove(ctx, book.UUID)
				if err != nil {
					return err
				}
				renderReport(cmd.OutOrStdout(), report, verbose)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show every step")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "show ID",
		GroupID: "books",
		Short:   "Show every field of a book",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := a.findBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, book)
			}
			path := ""
			if book.HasFile() {
				sync, err := a.syncService()
				if err != nil {
					return err
				}
				if path, err = sync.PathFor(&book); err != nil {
					path = ""
				}
			}
			renderBook(cmd.OutOrStdout(), &book, path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	return cmd
}

func (a *app) pathCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "path ID",
		GroupID: "books",
		Short:   "Print the canonical path of a book's file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			book, err := a.findBook(ctx, args[0])
			if err != nil {
				return err
			}
			sync, err := a.syncService()
			if err != nil {
				return err
			}
			path, err := sync.BookPath(ctx, book.UUID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withBooks runs fn with the query service's result and renders it.
func (a *app) withBooks(cmd *cobra.Command, asJSON bool, fn func(context.Context, *service.QueryService) ([]domain.Book, error)) error {
	query, err := a.queryService()
	if err != nil {
		return err
	}
	books, err := fn(cmd.Context(), query)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd, books)
	}
	renderBooks(cmd.OutOrStdout(), books)
	return nil
}
