package assets

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/talos/engine/core"
)

// Watcher reports writes to a set of watched files. Editors often replace a
// file instead of writing it, so the parent directory is watched and events
// are filtered by name.
type Watcher struct {
	files    map[string]struct{}
	debounce time.Duration
	onChange func(path string)

	mutex    sync.Mutex
	fsnotify *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
	isClosed bool
}

var ErrWatcherClosed = errors.New("asset watcher already closed")

// NewWatcher calls onChange once a watched file has been quiet for the
// debounce window, so a save spread over several writes reports only after
// its last one.
func NewWatcher(debounce time.Duration, onChange func(path string)) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		files:    make(map[string]struct{}),
		debounce: debounce,
		onChange: onChange,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.start()
	return w, nil
}

// Add starts watching the named file.
func (w *Watcher) Add(name string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isClosed {
		return ErrWatcherClosed
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return err
	}
	if err := w.fsnotify.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	w.files[abs] = struct{}{}
	return nil
}

// Close stops the watcher and waits for its goroutine. Changes still inside
// their debounce window are dropped. A second Close returns ErrWatcherClosed.
func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return ErrWatcherClosed
	}
	w.isClosed = true
	w.mutex.Unlock()

	close(w.done)
	<-w.stopped
	return nil
}

func (w *Watcher) watched(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}
	w.mutex.Lock()
	defer w.mutex.Unlock()
	_, ok := w.files[abs]
	return abs, ok
}

// fire runs onChange unless the watcher was closed while the timer ran.
func (w *Watcher) fire(path string) {
	w.mutex.Lock()
	closed := w.isClosed
	w.mutex.Unlock()
	if closed {
		return
	}
	core.LogDebug("asset changed: %s", path)
	w.onChange(path)
}

func (w *Watcher) start() {
	defer close(w.stopped)
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			path, ok := w.watched(e.Name)
			if !ok {
				continue
			}
			if t, seen := pending[path]; seen {
				t.Reset(w.debounce)
				continue
			}
			pending[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}
