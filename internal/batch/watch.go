package batch

import (
	"context"
	"time"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long a folder must be quiet before a re-run.
const DefaultDebounce = 2 * time.Second

// Watch calls run once, then again each time matching files in folder are
// created, written or renamed and the folder has been quiet for debounce.
// Errors from run are logged and watching continues. Watch returns nil
// when ctx is done.
func Watch(ctx context.Context, folder string, exts []string, debounce time.Duration, run func(context.Context) error) error {
	opts, err := Options{Extensions: exts}.normalize()
	if err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.NewInternalError("failed to create folder watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(folder); err != nil {
		return apperrors.NewInvalidInputError("cannot watch folder "+folder, err)
	}

	runOnce := func() {
		if err := run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).WithField("folder", folder).Warn("Batch run failed while watching")
		}
	}
	runOnce()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !matchesExtension(event.Name, opts.Extensions) {
				continue
			}
			logger.WithFields(logrus.Fields{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Debug("Folder changed")
			settle = time.After(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).WithField("folder", folder).Warn("Folder watcher error")
		case <-settle:
			settle = nil
			runOnce()
		}
	}
}
