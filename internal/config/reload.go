package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloadable is implemented by components that can update their config at
// runtime.
type Reloadable interface {
	// OnConfigReload is called after a new configuration has been loaded
	// and stored. Implementations apply the relevant changes and return an
	// error if they cannot; the reloader logs errors but continues
	// notifying other subscribers.
	OnConfigReload(newCfg *Config) error
}

// Reloader watches for config changes and coordinates reloads. It reacts to
// SIGHUP and, optionally, to file-system writes on the config file with a
// debounce window. A reload re-reads the file, re-applies the environment
// variables, and swaps the active config atomically; subscribers then
// re-derive whatever they hold from it (notably the resolved target).
type Reloader struct {
	configPath  string
	current     atomic.Pointer[Config]
	subscribers []Reloadable
	logger      *slog.Logger
	debounce    time.Duration
	watchFile   bool

	// OnResult, when set, observes the outcome of every reload attempt,
	// including failed loads that never reach the subscribers. Set it
	// before Start.
	OnResult func(err error)

	mu      sync.RWMutex
	cancel  context.CancelFunc
	watcher *fsnotify.Watcher
	stopped chan struct{}
	sigChan chan os.Signal
}

// NewReloader creates a Reloader for the given config file path, with
// initialCfg stored as the active configuration.
func NewReloader(configPath string, initialCfg *Config, logger *slog.Logger) *Reloader {
	r := &Reloader{
		configPath: configPath,
		logger:     logger,
		debounce:   initialCfg.Reload.Debounce.Duration,
		watchFile:  initialCfg.Reload.WatchFile,
		stopped:    make(chan struct{}),
	}
	r.current.Store(initialCfg)
	return r
}

// Register adds a component to receive reload notifications.
// Must be called before Start.
func (r *Reloader) Register(sub Reloadable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, sub)
}

// Current returns the active configuration. Safe for concurrent use.
func (r *Reloader) Current() *Config {
	return r.current.Load()
}

// Start begins watching for SIGHUP and, if enabled, config file changes.
// It returns once the watchers are installed; the watch loop runs until the
// context is cancelled or Stop is called.
func (r *Reloader) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	r.sigChan = make(chan os.Signal, 1)
	signal.Notify(r.sigChan, syscall.SIGHUP)

	if r.watchFile {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating file watcher: %w", err)
		}
		r.watcher = watcher

		if err := watcher.Add(r.configPath); err != nil {
			watcher.Close()
			return fmt.Errorf("watching config file %q: %w", r.configPath, err)
		}
		r.logger.Info("config file watcher started", "path", r.configPath, "debounce", r.debounce)
	}

	go r.run(ctx)
	return nil
}

// Stop shuts down the reloader, stopping signal and file watchers.
// It is a no-op when Start was never called.
func (r *Reloader) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.stopped
}

// Reload triggers a config reload immediately. It re-loads the file and
// environment, logs the diff (warning on changes that need a restart),
// swaps the active config, and notifies subscribers. On an invalid new
// config the old one is retained and an error returned.
func (r *Reloader) Reload() error {
	r.logger.Info("config reload triggered", "path", r.configPath)

	newCfg, err := Load(r.configPath)
	if err != nil {
		r.logger.Error("config reload failed: invalid config, keeping current",
			"error", err,
			"path", r.configPath,
		)
		r.notifyResult(err)
		return fmt.Errorf("config reload: %w", err)
	}

	oldCfg := r.current.Load()
	changes := Diff(oldCfg, newCfg)

	if len(changes) == 0 {
		r.logger.Info("config reload: no changes detected")
		r.notifyResult(nil)
		return nil
	}

	hasNonReloadable := false
	for _, c := range changes {
		if c.Reloadable {
			r.logger.Info("config change detected",
				"field", c.Field,
				"old", fmt.Sprintf("%v", c.OldValue),
				"new", fmt.Sprintf("%v", c.NewValue),
				"reloadable", true,
			)
		} else {
			hasNonReloadable = true
			r.logger.Warn("config change requires restart (ignored)",
				"field", c.Field,
				"old", fmt.Sprintf("%v", c.OldValue),
				"new", fmt.Sprintf("%v", c.NewValue),
				"reloadable", false,
			)
		}
	}

	if hasNonReloadable {
		r.logger.Warn("some config changes require a restart to take effect")
	}

	r.current.Store(newCfg)

	r.mu.RLock()
	subs := make([]Reloadable, len(r.subscribers))
	copy(subs, r.subscribers)
	r.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.OnConfigReload(newCfg); err != nil {
			r.logger.Error("subscriber reload failed",
				"error", err,
				"subscriber", fmt.Sprintf("%T", sub),
			)
		}
	}

	r.logger.Info("config reloaded",
		"changes", len(changes),
		"path", r.configPath,
	)

	r.notifyResult(nil)
	return nil
}

func (r *Reloader) notifyResult(err error) {
	if r.OnResult != nil {
		r.OnResult(err)
	}
}

// run is the main loop that listens for SIGHUP and file change events.
func (r *Reloader) run(ctx context.Context) {
	defer close(r.stopped)
	defer signal.Stop(r.sigChan)
	if r.watcher != nil {
		defer r.watcher.Close()
	}

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case sig := <-r.sigChan:
			r.logger.Info("received signal, reloading config", "signal", sig)
			if err := r.Reload(); err != nil {
				r.logger.Error("SIGHUP reload failed", "error", err)
			}

		case event, ok := <-r.watcherEvents():
			if !ok {
				return
			}
			// Only react to writes, creates, and renames (file replacement pattern)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.NewTimer(r.debounce)
				debounceCh = debounceTimer.C
			}

		case err, ok := <-r.watcherErrors():
			if !ok {
				return
			}
			r.logger.Error("file watcher error", "error", err)

		case <-debounceCh:
			debounceCh = nil
			debounceTimer = nil
			r.logger.Info("config file changed, reloading", "path", r.configPath)
			// Re-add the watch in case the file was replaced (rename/create pattern).
			// Errors are ignored: the file may be momentarily absent mid-replace.
			if r.watcher != nil {
				_ = r.watcher.Add(r.configPath)
			}
			if err := r.Reload(); err != nil {
				r.logger.Error("file watch reload failed", "error", err)
			}
		}
	}
}

// watcherEvents returns the watcher's event channel, or a nil channel if no watcher.
func (r *Reloader) watcherEvents() <-chan fsnotify.Event {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Events
}

// watcherErrors returns the watcher's error channel, or a nil channel if no watcher.
func (r *Reloader) watcherErrors() <-chan error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Errors
}
