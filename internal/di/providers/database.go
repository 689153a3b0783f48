package providers

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/tometrove/tometrove/internal/config"
	"github.com/tometrove/tometrove/internal/store"
	"github.com/tometrove/tometrove/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
	Driver string
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured store driver.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	location := cfg.Store.Location()
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		s, err = sqlite.Open(location, log.Logger.Logger)
	default:
		s, err = store.New(location, log.Logger.Logger)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("store opened", "driver", cfg.Store.Driver, "path", location)

	return &StoreHandle{Store: s, Driver: cfg.Store.Driver}, nil
}
