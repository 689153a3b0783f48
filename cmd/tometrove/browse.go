package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/service"
)

func sortFieldNames() string {
	names := make([]string, len(service.SortFields))
	for i, f := range service.SortFields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func (a *app) lsCmd() *cobra.Command {
	var (
		field     string
		asc, desc bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		GroupID: "browse",
		Short:   "List books",
		Long: `List every book, sorted by a field. The default order is newest first
for "added" and ascending for every other field.

Sort fields: ` + sortFieldNames(),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asc && desc {
				return errors.Validation("--asc and --desc are mutually exclusive")
			}
			order := service.OrderDefault
			switch {
			case asc:
				order = service.OrderAscending
			case desc:
				order = service.OrderDescending
			}
			return a.withBooks(cmd, asJSON, func(ctx context.Context, q *service.QueryService) ([]domain.Book, error) {
				return q.Sort(ctx, domain.FieldName(field), order)
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&field, "sort", string(domain.FieldAdded), "field to sort by")
	fs.BoolVar(&asc, "asc", false, "ascending order")
	fs.BoolVar(&desc, "desc", false, "descending order")
	fs.BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "search TEXT",
		GroupID: "browse",
		Short:   "Find books whose title or author contains TEXT, ignoring case",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBooks(cmd, asJSON, func(ctx context.Context, q *service.QueryService) ([]domain.Book, error) {
				return q.SearchText(ctx, args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func (a *app) seriesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "series [NAME]",
		GroupID: "browse",
		Short:   "List series, or the books of one series",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.withBooks(cmd, asJSON, func(ctx context.Context, q *service.QueryService) ([]domain.Book, error) {
					return q.BySeries(ctx, args[0])
				})
			}
			query, err := a.queryService()
			if err != nil {
				return err
			}
			series, err := query.DistinctSeries(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, series)
			}
			renderList(cmd.OutOrStdout(), series, "No series.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func (a *app) authorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "authors",
		GroupID: "browse",
		Short:   "List authors",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := a.queryService()
			if err != nil {
				return err
			}
			authors, err := query.DistinctAuthors(cmd.Context())
			if err != nil {
				return err
			}
			renderList(cmd.OutOrStdout(), authors, "No authors.")
			return nil
		},
	}
}

func (a *app) tagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tags",
		GroupID: "browse",
		Short:   "Manage the tag list",
	}
	cmd.AddCommand(a.tagsLsCmd(), a.tagsAddCmd(), a.tagsSetCmd(), a.tagsRmCmd())
	return cmd
}

func parseTagID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validationf("invalid tag id %q", s)
	}
	return id, nil
}

func (a *app) tagsLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List tags and whether any book uses them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tags, err := a.tagCatalog()
			if err != nil {
				return err
			}
			all, err := tags.All(ctx)
			if err != nil {
				return err
			}
			query, err := a.queryService()
			if err != nil {
				return err
			}
			names, err := query.DistinctTagNames(ctx)
			if err != nil {
				return err
			}
			used := make(map[string]bool, len(names))
			for _, n := range names {
				used[n] = true
			}
			slices.SortFunc(all, func(x, y domain.Tag) int { return strings.Compare(x.Name, y.Name) })
			renderTags(cmd.OutOrStdout(), all, used)
			return nil
		},
	}
}

func (a *app) tagsAddCmd() *cobra.Command {
	var icon string
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := a.tagCatalog()
			if err != nil {
				return err
			}
			id, err := tags.Add(cmd.Context(), args[0], icon)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s tag %q created with id %d\n", passStyle.Render("✓"), args[0], id)
			return nil
		},
	}
	cmd.Flags().StringVar(&icon, "icon", "", "display icon")
	return cmd
}

func (a *app) tagsSetCmd() *cobra.Command {
	var name, icon string
	cmd := &cobra.Command{
		Use:   "set ID",
		Short: "Rename a tag or change its icon",
		Long: `Rename a tag or change its icon. Books keep the tag names they were
given; renaming a tag does not rewrite them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTagID(args[0])
			if err != nil {
				return err
			}
			var patch domain.TagPatch
			if cmd.Flags().Changed("name") {
				patch.Name = domain.Set(name)
			}
			if cmd.Flags().Changed("icon") {
				patch.Icon = domain.Set(icon)
			}
			if !patch.Name.Set && !patch.Icon.Set {
				return errors.Validation("nothing to change (use --name or --icon)")
			}
			tags, err := a.tagCatalog()
			if err != nil {
				return err
			}
			tag, err := tags.Update(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s tag %d is now %s %q\n", passStyle.Render("✓"), tag.ID, tag.Icon, tag.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&icon, "icon", "", "new icon")
	return cmd
}

func (a *app) tagsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTagID(args[0])
			if err != nil {
				return err
			}
			tags, err := a.tagCatalog()
			if err != nil {
				return err
			}
			if err := tags.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s tag %d deleted\n", passStyle.Render("✓"), id)
			return nil
		},
	}
}
