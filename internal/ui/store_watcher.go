package ui

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jkl-dev/jkl/internal/logging"
	"github.com/jkl-dev/jkl/internal/platform"
)

var watcherLog = logging.ForComponent(logging.CompUI)

// ignoreWindow is how long after NotifySave a change is treated as our own.
const ignoreWindow = time.Second

// debounce coalesces the burst of events one save produces.
const debounce = 100 * time.Millisecond

// StoreWatcher reports external writes to the store file. It watches the
// parent directory because saves replace the file by rename.
type StoreWatcher struct {
	path      string
	watcher   *fsnotify.Watcher
	changedCh chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once

	saveMu       sync.Mutex
	lastSaveTime time.Time

	warning string
}

// NewStoreWatcher starts watching the directory of path. The directory is
// created if missing so a first Save is seen too.
func NewStoreWatcher(path string) (*StoreWatcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	sw := &StoreWatcher{
		path:      filepath.Clean(path),
		watcher:   w,
		changedCh: make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
		warning:   platform.WatchWarning(path),
	}
	go sw.loop()
	return sw, nil
}

func (sw *StoreWatcher) loop() {
	var timer *time.Timer
	fire := func() {
		select {
		case sw.changedCh <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-sw.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != sw.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if sw.ownSave() {
				watcherLog.Debug("watcher_ignoring_own_save")
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, fire)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			watcherLog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (sw *StoreWatcher) ownSave() bool {
	sw.saveMu.Lock()
	defer sw.saveMu.Unlock()
	return time.Since(sw.lastSaveTime) < ignoreWindow
}

// NotifySave marks the next events as self-inflicted. Call it right
// before saving.
func (sw *StoreWatcher) NotifySave() {
	sw.saveMu.Lock()
	sw.lastSaveTime = time.Now()
	sw.saveMu.Unlock()
}

// Changed delivers one value per burst of external changes.
func (sw *StoreWatcher) Changed() <-chan struct{} {
	return sw.changedCh
}

// Warning is non-empty when the store's filesystem does not deliver
// reliable change events.
func (sw *StoreWatcher) Warning() string {
	return sw.warning
}

// Close stops the watcher. Safe to call multiple times.
func (sw *StoreWatcher) Close() error {
	var err error
	sw.closeOnce.Do(func() {
		close(sw.closeCh)
		err = sw.watcher.Close()
	})
	return err
}
