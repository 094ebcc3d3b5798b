package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/utils"
)

const debounce = 200 * time.Millisecond

// File calls onChange after path has been written, created or renamed into
// place. Bursts of events are coalesced. The parent directory is watched so
// that editors replacing the file are seen too.
func File(ctx context.Context, path string, onChange func(ctx context.Context)) error {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return err
	}

	utils.SafelyGo(func() {
		defer watcher.Close()
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path ||
					!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				logger.Debugf(ctx, "watch.File event: %s %s", event.Op, event.Name)
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				onChange(ctx)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Errorf(ctx, "watch.File err: %+v", err)
			}
		}
	}, func(err error) {
		logger.Errorf(ctx, "watch.File SafelyGo err: %+v", err)
	})
	return nil
}
