package providers

import (
	"github.com/samber/do/v2"

	"github.com/tometrove/tometrove/internal/catalog"
	"github.com/tometrove/tometrove/internal/config"
	"github.com/tometrove/tometrove/internal/importer"
	"github.com/tometrove/tometrove/internal/pathing"
	"github.com/tometrove/tometrove/internal/service"
	"github.com/tometrove/tometrove/internal/tagger"
	"github.com/tometrove/tometrove/internal/validation"
)

// ProvideTags provides the cached tag catalog.
func ProvideTags(i do.Injector) (*catalog.Tags, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*LoggerHandle](i)
	return catalog.NewTags(storeHandle.Store, log.Logger.Logger), nil
}

// ProvideBooks provides the cached book catalog.
func ProvideBooks(i do.Injector) (*catalog.Books, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tags := do.MustInvoke[*catalog.Tags](i)
	log := do.MustInvoke[*LoggerHandle](i)
	return catalog.NewBooks(storeHandle.Store, tags, log.Logger.Logger), nil
}

// ProvideResolver provides the library path resolver.
func ProvideResolver(i do.Injector) (*pathing.Resolver, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return pathing.New(cfg.Library.Path, cfg.Library.DefaultExtension), nil
}

// ProvideTagger provides exiftool tagging, or a no-op when disabled.
func ProvideTagger(i do.Injector) (tagger.Tagger, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	if !cfg.Tagger.Enabled {
		return tagger.Noop{}, nil
	}
	return tagger.NewExifTool(cfg.Tagger.ExifToolPath, cfg.Tagger.Extensions, log.Logger.Logger), nil
}

// ProvideValidator provides the struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideSyncService provides the library synchronization service.
func ProvideSyncService(i do.Injector) (*service.SyncService, error) {
	books := do.MustInvoke[*catalog.Books](i)
	resolver := do.MustInvoke[*pathing.Resolver](i)
	tg := do.MustInvoke[tagger.Tagger](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewSyncService(books, resolver, tg, validator, log.Logger.Logger), nil
}

// ProvideQueryService provides read-only catalog queries.
func ProvideQueryService(i do.Injector) (*service.QueryService, error) {
	books := do.MustInvoke[*catalog.Books](i)
	log := do.MustInvoke[*LoggerHandle](i)
	return service.NewQueryService(books, log.Logger.Logger), nil
}

// ProvideDirectoryImporter provides the file-name based importer.
func ProvideDirectoryImporter(i do.Injector) (*importer.Directory, error) {
	sync := do.MustInvoke[*service.SyncService](i)
	log := do.MustInvoke[*LoggerHandle](i)
	return importer.NewDirectory(sync, nil, log.Logger.Logger), nil
}

// ProvideCalibreImporter provides the Calibre library importer.
func ProvideCalibreImporter(i do.Injector) (*importer.Calibre, error) {
	sync := do.MustInvoke[*service.SyncService](i)
	log := do.MustInvoke[*LoggerHandle](i)
	return importer.NewCalibre(sync, log.Logger.Logger), nil
}
