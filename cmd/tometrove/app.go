package main

import (
	"context"
	"io"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/tometrove/tometrove/internal/catalog"
	"github.com/tometrove/tometrove/internal/config"
	"github.com/tometrove/tometrove/internal/di"
	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/importer"
	"github.com/tometrove/tometrove/internal/service"
)

// configFlags are the configuration keys exposed as persistent flags.
var configFlags = []struct {
	key, usage string
}{
	{config.KeyLibraryPath, "library root directory"},
	{config.KeyDBPath, "metadata directory (default <library>/.tometrove)"},
	{config.KeyStoreDriver, "metadata store: badger or sqlite"},
	{config.KeyDefaultExtension, "extension for books without one"},
	{config.KeyUploadDir, "inbox directory for the watch command"},
	{config.KeyTaggerEnabled, "write metadata into files with exiftool"},
	{config.KeyExifToolPath, "exiftool binary"},
	{config.KeyTaggerExtensions, "comma-separated extensions exiftool may tag"},
	{config.KeyEnv, "environment: development, staging or production"},
	{config.KeyLogLevel, "log level: debug, info, warn or error"},
	{config.KeyLogFormat, "log format: pretty or json"},
	{config.KeyLogFile, "also write JSON logs to this rotating file"},
}

// flagName turns LIBRARY_PATH into library-path.
func flagName(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}

// app holds state shared by every command. The container is created on
// first use so --help never touches the library.
type app struct {
	out      io.Writer
	opts     config.Options
	injector *do.RootScope
}

func newApp(out io.Writer) *app {
	return &app{out: out, opts: config.Options{Flags: map[string]string{}}}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tometrove",
		Short: "Keep an ebook library tree and its catalog in sync",
		Long: `TomeTrove files ebooks under <library>/<Author>/ (or <library>/<Series>/ for
series books) and keeps a catalog of their metadata. Every change to a book
is applied to both the catalog and the files on disk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			for _, f := range configFlags {
				if flag := cmd.Flags().Lookup(flagName(f.key)); flag != nil && flag.Changed {
					a.opts.Flags[f.key] = flag.Value.String()
				}
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.ConfigFile, "config", "", "config file (default "+config.DefaultConfigFile()+")")
	pf.StringVar(&a.opts.EnvFile, "env-file", ".env", "dotenv file")
	for _, f := range configFlags {
		pf.String(flagName(f.key), "", f.usage)
	}

	root.AddGroup(
		&cobra.Group{ID: "books", Title: "Books:"},
		&cobra.Group{ID: "browse", Title: "Browsing:"},
		&cobra.Group{ID: "library", Title: "Library maintenance:"},
	)

	root.AddCommand(
		a.addCmd(), a.editCmd(), a.rmCmd(), a.showCmd(), a.pathCmd(),
		a.lsCmd(), a.searchCmd(), a.seriesCmd(), a.authorsCmd(), a.tagsCmd(),
		a.mkdirCmd(), a.importCmd(), a.reorganizeCmd(), a.checkCmd(), a.watchCmd(),
	)
	return root
}

func (a *app) container() (*do.RootScope, error) {
	if a.injector != nil {
		return a.injector, nil
	}
	injector := di.NewContainer(a.opts)
	if err := di.Bootstrap(injector); err != nil {
		injector.Shutdown()
		return nil, errors.Wrap(err, errors.CodeValidation, "cannot open library")
	}
	a.injector = injector
	return injector, nil
}

func (a *app) close() {
	if a.injector != nil {
		a.injector.Shutdown()
		a.injector = nil
	}
}

// invoke resolves a service from the container.
func invoke[T any](a *app) (T, error) {
	injector, err := a.container()
	if err != nil {
		var zero T
		return zero, err
	}
	return do.Invoke[T](injector)
}

func (a *app) syncService() (*service.SyncService, error) {
	return invoke[*service.SyncService](a)
}

func (a *app) queryService() (*service.QueryService, error) {
	return invoke[*service.QueryService](a)
}

func (a *app) tagCatalog() (*catalog.Tags, error) {
	return invoke[*catalog.Tags](a)
}

func (a *app) directoryImporter() (*importer.Directory, error) {
	return invoke[*importer.Directory](a)
}

func (a *app) calibreImporter() (*importer.Calibre, error) {
	return invoke[*importer.Calibre](a)
}

// findBook resolves a full uuid or an unambiguous uuid prefix.
func (a *app) findBook(ctx context.Context, ref string) (domain.Book, error) {
	query, err := a.queryService()
	if err != nil {
		return domain.Book{}, err
	}
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return domain.Book{}, errors.Validation("book id is required")
	}
	if book, err := query.Get(ctx, ref); err == nil || !errors.Is(err, errors.ErrBookNotFound) {
		return book, err
	}

	books, err := query.All(ctx)
	if err != nil {
		return domain.Book{}, err
	}
	var matches []domain.Book
	for _, b := range books {
		if strings.HasPrefix(b.UUID, ref) {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Book{}, errors.BookNotFound(ref)
	case 1:
		return matches[0], nil
	default:
		return domain.Book{}, errors.Validationf("id prefix %q matches %d books", ref, len(matches))
	}
}
