package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tometrove/tometrove/internal/di/providers"
)

func (a *app) mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mkdir AUTHOR",
		GroupID: "library",
		Short:   "Create an author's directory and print its path",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sync, err := a.syncService()
			if err != nil {
				return err
			}
			dir, err := sync.EnsureDirectory(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "import",
		GroupID: "library",
		Short:   "Bulk-add books from another collection",
	}
	cmd.AddCommand(a.importDirCmd(), a.importCalibreCmd())
	return cmd
}

func (a *app) importDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir DIR",
		Short: `Add every "Title - Author[ - Tag1, Tag2].ext" file in DIR`,
		Long: `Add every file directly inside DIR whose name has the form

  Title - Author.ext
  Title - Author - Tag1, Tag2.ext

Files are copied into the library; the originals are left in place. Files
whose destination already exists are skipped, so an import can be re-run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp, err := a.directoryImporter()
			if err != nil {
				return err
			}
			summary, err := imp.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderImport(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func (a *app) importCalibreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calibre DIR",
		Short: "Add every book of the Calibre library in DIR",
		Long: `Add every book of a Calibre library. DIR is the folder that contains
metadata.db. The PDF format is preferred as the primary file; other formats
are recorded in other_formats. Descriptions are converted to Markdown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp, err := a.calibreImporter()
			if err != nil {
				return err
			}
			summary, err := imp.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderImport(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func (a *app) reorganizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "reorganize",
		GroupID: "library",
		Short:   "Move every file to its canonical location and name",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sync, err := a.syncService()
			if err != nil {
				return err
			}
			summary, err := sync.Reorganize(cmd.Context())
			if err != nil {
				return err
			}
			renderReorganize(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func (a *app) checkCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "check",
		GroupID: "library",
		Short:   "Report books whose file is missing or misplaced",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sync, err := a.syncService()
			if err != nil {
				return err
			}
			results, err := sync.Check(cmd.Context())
			if err != nil {
				return err
			}
			renderCheck(cmd.OutOrStdout(), results, all)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list books that are in place too")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		GroupID: "library",
		Short:   "Import files dropped into the upload directory until interrupted",
		Long: `Watch the upload directory (UPLOAD_DIR or --upload-dir) and import every
file that appears in it, using the same naming rules as "import dir".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			inbox, err := invoke[*providers.InboxWatcherHandle](a)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s watching %s (Ctrl-C to stop)\n", passStyle.Render("●"), inbox.Dir)

			<-ctx.Done()
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("stopping"))
			return nil
		},
	}
}
