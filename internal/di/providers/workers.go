package providers

import (
	"context"
	"sync"
	"time"

	"github.com/samber/do/v2"

	"github.com/tometrove/tometrove/internal/config"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/importer"
	"github.com/tometrove/tometrove/internal/watcher"
)

// InboxWatcherHandle wraps the upload directory watcher with shutdown capability.
type InboxWatcherHandle struct {
	*watcher.Watcher
	Dir    string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Shutdown implements do.Shutdownable. Imports already in progress are
// allowed to finish.
func (h *InboxWatcherHandle) Shutdown() error {
	h.cancel()
	err := h.Watcher.Stop()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
	}
	return err
}

// ProvideInboxWatcher watches the configured upload directory and imports
// every file that settles in it.
func ProvideInboxWatcher(i do.Injector) (*InboxWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	dir := do.MustInvoke[*importer.Directory](i)

	if cfg.Library.UploadDir == "" {
		return nil, errors.Validation("no upload directory configured (set UPLOAD_DIR or --upload-dir)")
	}

	w, err := watcher.New(log.Logger.Logger, watcher.Options{IgnoreHidden: true})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(cfg.Library.UploadDir); err != nil {
		_ = w.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &InboxWatcherHandle{Watcher: w, Dir: cfg.Library.UploadDir, cancel: cancel}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		if err := w.Start(ctx); err != nil {
			log.Error("inbox watcher error", "error", err)
		}
	}()

	go func() {
		defer h.wg.Done()
		for {
			select {
			case event := <-w.Events():
				if event.Type != watcher.EventReady || !dir.Accepts(event.Path) {
					continue
				}
				summary, err := dir.ImportFile(ctx, event.Path)
				if err != nil {
					log.Warn("failed to import inbox file", "path", event.Path, "error", err)
					continue
				}
				log.Info("inbox file processed", "path", event.Path, "result", summary.String())
				for _, p := range summary.Problems {
					log.Warn("inbox import problem", "title", p.Title, "detail", p.Detail)
				}
			case err := <-w.Errors():
				log.Warn("inbox watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("watching upload directory", "dir", cfg.Library.UploadDir)

	return h, nil
}
