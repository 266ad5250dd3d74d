// Package watch reports changes to entry files under the source roots,
// coalescing bursts of events into one batch.
package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Config struct {
	Roots    []string
	Debounce time.Duration
	// Match selects the files whose changes are reported.
	Match  func(path string) bool
	Logger *slog.Logger
}

func DefaultConfig(roots []string, match func(string) bool) Config {
	return Config{
		Roots:    roots,
		Debounce: 500 * time.Millisecond,
		Match:    match,
	}
}

type Watcher struct {
	fsw      *fsnotify.Watcher
	cfg      Config
	logger   *slog.Logger
	changes  chan []string
	done     chan struct{}
	finished chan struct{}
	started  bool
}

func New(cfg Config) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Match == nil {
		cfg.Match = func(string) bool { return true }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsw:      fsw,
		cfg:      cfg,
		logger:   logger,
		changes:  make(chan []string, 1),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}, nil
}

// Start watches every directory below the roots. The returned channel
// receives the sorted set of changed files after each quiet period.
func (w *Watcher) Start() (<-chan []string, error) {
	for _, root := range w.cfg.Roots {
		if err := w.addTree(root); err != nil {
			return nil, err
		}
	}
	w.started = true
	go w.loop()
	return w.changes, nil
}

func (w *Watcher) Stop() error {
	close(w.done)
	err := w.fsw.Close()
	if w.started {
		<-w.finished
	}
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.finished)

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = make(map[string]struct{})
	)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("watching new directory failed", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !w.relevant(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.cfg.Debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			select {
			case w.changes <- batch:
				pending = make(map[string]struct{})
			default:
				// consumer busy, keep the batch for the next tick
				timer.Reset(w.cfg.Debounce)
				timerC = timer.C
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.cfg.Match(event.Name)
}
