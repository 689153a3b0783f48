// Package di provides dependency injection configuration for TomeTrove.
package di

import (
	"github.com/samber/do/v2"

	"github.com/tometrove/tometrove/internal/config"
	"github.com/tometrove/tometrove/internal/di/providers"
	"github.com/tometrove/tometrove/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// Services are built lazily on first invoke.
func NewContainer(opts config.Options) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, opts)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideTags)
	do.Provide(injector, providers.ProvideBooks)

	// Library layout and tagging
	do.Provide(injector, providers.ProvideResolver)
	do.Provide(injector, providers.ProvideTagger)
	do.Provide(injector, providers.ProvideValidator)

	// Business services
	do.Provide(injector, providers.ProvideSyncService)
	do.Provide(injector, providers.ProvideQueryService)

	// Importers
	do.Provide(injector, providers.ProvideDirectoryImporter)
	do.Provide(injector, providers.ProvideCalibreImporter)

	// Workers
	do.Provide(injector, providers.ProvideInboxWatcher)

	return injector
}

// Bootstrap builds the core services so configuration and store errors
// surface before any command runs.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.LoggerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.SyncService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.QueryService](injector); err != nil {
		return err
	}
	return nil
}
