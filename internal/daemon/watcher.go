// Package daemon implements the hashidx CLI's long-running "serve" mode:
// a config hot-reload watcher sitting alongside an open Hash Index,
// driven purely by config file changes. The index's flush timer is only
// checked when a Reserve or Commit arrives, so an idle index is not
// flushed on a schedule.
package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/untoldecay/hashindex/internal/config"
	"github.com/untoldecay/hashindex/internal/hashindex"
)

const defaultDebounce = 500 * time.Millisecond

// ConfigWatcher watches a config file for changes and reloads it,
// applying the flush_interval key to a running Index without
// restarting it. It watches the parent directory so file replacement
// (editors that write-then-rename) is caught, debounces bursts of
// events, and falls back to a no-op if fsnotify can't start.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	debouncer  *debouncer
	configPath string
	log        hashindex.Logger
	cancel     context.CancelFunc
}

// NewConfigWatcher watches configPath (the file returned by
// config.ConfigFileUsed) and reloads its flush_interval into idx
// whenever the file changes. configPath == "" (no config file was
// found), or an fsnotify watcher that cannot be created or attached to
// the config directory, produces a watcher whose Start is a no-op.
func NewConfigWatcher(configPath string, idx *hashindex.Index, log hashindex.Logger) (*ConfigWatcher, error) {
	cw := &ConfigWatcher{configPath: configPath, log: log}
	if configPath == "" {
		return cw, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cw.warnNoOp(fmt.Errorf("create config watcher: %w", err))
		return cw, nil
	}
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		_ = watcher.Close()
		cw.warnNoOp(fmt.Errorf("watch config directory: %w", err))
		return cw, nil
	}
	cw.watcher = watcher

	cw.debouncer = newDebouncer(defaultDebounce, func() {
		cw.reload(idx)
	})
	return cw, nil
}

// warnNoOp logs why the watcher fell back to a no-op.
func (cw *ConfigWatcher) warnNoOp(err error) {
	if cw.log != nil {
		cw.log.Warn("config hot-reload disabled", "error", err)
	}
}

// Start begins watching in the background until ctx is canceled or
// Close is called.
func (cw *ConfigWatcher) Start(ctx context.Context) {
	if cw.watcher == nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	cw.cancel = cancel

	go func() {
		base := filepath.Base(cw.configPath)
		for {
			select {
			case event, ok := <-cw.watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) != 0 {
					cw.debouncer.Trigger()
				}
			case err, ok := <-cw.watcher.Errors:
				if !ok {
					return
				}
				if cw.log != nil {
					cw.log.Warn("config watcher error", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (cw *ConfigWatcher) reload(idx *hashindex.Index) {
	if err := config.Reload(); err != nil {
		if cw.log != nil {
			cw.log.Warn("config reload failed", "error", err)
		}
		return
	}
	interval := config.GetDuration("flush_interval")
	if interval <= 0 {
		return
	}
	idx.SetFlushInterval(interval)
	if cw.log != nil {
		cw.log.Info("config reloaded", "flush_interval", interval)
	}
}

// Close stops the watcher.
func (cw *ConfigWatcher) Close() error {
	if cw.cancel != nil {
		cw.cancel()
	}
	if cw.debouncer != nil {
		cw.debouncer.Cancel()
	}
	if cw.watcher == nil {
		return nil
	}
	return cw.watcher.Close()
}
