package providers

import (
	"github.com/samber/do/v2"

	"github.com/tometrove/tometrove/internal/config"
	"github.com/tometrove/tometrove/internal/logger"
)

// ProvideConfig loads the configuration from the options registered in the container.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	opts := do.MustInvoke[config.Options](i)
	return config.Load(opts)
}

// LoggerHandle wraps the logger so the log file is closed on shutdown.
type LoggerHandle struct {
	*logger.Logger
}

// Shutdown implements do.Shutdownable.
func (h *LoggerHandle) Shutdown() error {
	return h.Close()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*LoggerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development" && cfg.Logger.Level == "debug",
		Environment: cfg.App.Environment,
		File:        cfg.Logger.File,
	})

	log.Debug("configuration loaded",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"library", cfg.Library.Path,
		"store_driver", cfg.Store.Driver,
		"store_path", cfg.Store.Location(),
	)

	return &LoggerHandle{Logger: log}, nil
}
