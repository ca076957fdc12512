package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ChangeFunc is called after a reload replaced the current config.
type ChangeFunc func(old, new *Config, d ConfigDiff)

// Watcher reloads a config file while the service runs. Only content changes
// count: the mtime gates the check and a SHA-256 of the bytes decides it.
// A file that fails to parse or validate is logged and ignored.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc
	log      *slog.Logger

	mu      sync.Mutex
	current *Config
	mtime   time.Time
	sum     [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Defaults to 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger. Defaults to slog.Default().
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher loads path and returns a Watcher holding it. Polling starts
// with [Watcher.Run].
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current, w.mtime, w.sum = snap.cfg, snap.mtime, snap.sum
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the file until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Reload(); err != nil {
				w.log.Warn("config reload failed, keeping previous config", "path", w.path, "err", err)
			}
		}
	}
}

// Reload checks the file once and reports whether the config changed.
func (w *Watcher) Reload() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.mtime)
	w.mu.Unlock()
	if unchanged {
		return false, nil
	}

	snap, err := w.read()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.mtime = snap.mtime
	if snap.sum == w.sum {
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.sum = snap.cfg, snap.sum
	w.mu.Unlock()

	d := Diff(old, snap.cfg)
	w.log.Info("configuration reloaded", "path", w.path,
		"log_level_changed", d.LogLevelChanged,
		"transcribe_changed", d.TranscribeChanged,
	)
	if w.onChange != nil {
		w.onChange(old, snap.cfg, d)
	}
	return true, nil
}

type snapshot struct {
	cfg   *Config
	mtime time.Time
	sum   [sha256.Size]byte
}

func (w *Watcher) read() (snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
