package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// ChangeFunc receives the previous and the newly loaded configuration.
type ChangeFunc func(old, new *Config)

// Watcher reloads the config file, and the mood directory it names, when
// either changes on disk. Invalid edits are logged and the previous config
// stays current.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange ChangeFunc
	logger   *slog.Logger

	mu       sync.Mutex
	current  *Config
	lastHash [sha256.Size]byte
	moodDir  string

	fsw *fsnotify.Watcher
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for events to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher starts watching path. current is the config already loaded
// from path.
func NewWatcher(path string, current *Config, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config: watcher needs a file path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   slog.Default(),
		current:  current,
		lastHash: sha256.Sum256(data),
		fsw:      fsw,
	}
	for _, opt := range opts {
		opt(w)
	}

	// Watch the directory so editors that replace the file by rename
	// keep being observed.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}
	w.watchMoodDir(current.Avatar.MoodDir)
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending bool
		force   bool
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			cfgFile, moodFile := w.classify(ev)
			if !cfgFile && !moodFile {
				continue
			}
			pending = true
			force = force || moodFile
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-fire:
			fire = nil
			if pending {
				w.reload(force)
			}
			pending, force = false, false
		}
	}
}

func (w *Watcher) classify(ev fsnotify.Event) (cfgFile, moodFile bool) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false, false
	}
	name := filepath.Clean(ev.Name)
	if name == w.path {
		return true, false
	}
	w.mu.Lock()
	dir := w.moodDir
	w.mu.Unlock()
	if dir != "" && filepath.Dir(name) == dir {
		switch filepath.Ext(name) {
		case ".yaml", ".yml":
			return false, true
		}
	}
	return false, false
}

// reload loads the file and reports it when its content changed, or
// unconditionally when force is set because a mood file changed.
func (w *Watcher) reload(force bool) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("config reload: read failed", "path", w.path, "error", err)
		return
	}
	hash := sha256.Sum256(data)

	w.mu.Lock()
	same := hash == w.lastHash
	w.mu.Unlock()
	if same && !force {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.lastHash = hash
	w.mu.Unlock()

	w.watchMoodDir(cfg.Avatar.MoodDir)
	w.logger.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

func (w *Watcher) watchMoodDir(dir string) {
	if dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}

	w.mu.Lock()
	prev := w.moodDir
	w.moodDir = dir
	w.mu.Unlock()

	if prev == dir {
		return
	}
	if prev != "" && prev != filepath.Dir(w.path) {
		_ = w.fsw.Remove(prev)
	}
	if dir != "" && dir != filepath.Dir(w.path) {
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn("cannot watch mood directory", "dir", dir, "error", err)
		}
	}
}
