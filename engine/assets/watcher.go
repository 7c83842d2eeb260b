package assets

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/framegraph/engine/core"
)

// GraphWatcher watches render graph descriptions and fires
// EVENT_CODE_GRAPH_RELOAD_REQUIRED when one of them changes on disk. The
// event is fired from the watcher goroutine; listeners are expected to defer
// the rebuild to the frame loop.
type GraphWatcher struct {
	events *core.EventSystem

	mutex    sync.RWMutex
	files    map[string]struct{}
	dirs     map[string]int
	isClosed bool

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
}

func NewGraphWatcher(events *core.EventSystem) (*GraphWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	gw := &GraphWatcher{
		events:   events,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]int),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		fsnotify: fsWatch,
	}
	go gw.start()
	return gw, nil
}

/**
 * @brief Starts watching the file at path. The parent directory is what is
 * actually watched, since editors usually save by replacing the file.
 */
func (gw *GraphWatcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	gw.mutex.Lock()
	defer gw.mutex.Unlock()

	if gw.isClosed {
		return errors.New("graph watcher already closed")
	}
	if _, ok := gw.files[abs]; ok {
		return nil
	}
	dir := filepath.Dir(abs)
	if gw.dirs[dir] == 0 {
		if err := gw.fsnotify.Add(dir); err != nil {
			return err
		}
	}
	gw.dirs[dir]++
	gw.files[abs] = struct{}{}
	core.LogDebug("watching render graph `%s`", abs)
	return nil
}

// Unwatch stops watching the file at path.
func (gw *GraphWatcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	gw.mutex.Lock()
	defer gw.mutex.Unlock()

	if _, ok := gw.files[abs]; !ok {
		return nil
	}
	delete(gw.files, abs)
	dir := filepath.Dir(abs)
	gw.dirs[dir]--
	if gw.dirs[dir] == 0 {
		delete(gw.dirs, dir)
		return gw.fsnotify.Remove(dir)
	}
	return nil
}

func (gw *GraphWatcher) watched(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}
	gw.mutex.RLock()
	defer gw.mutex.RUnlock()
	_, ok := gw.files[abs]
	return abs, ok
}

func (gw *GraphWatcher) start() {
	defer close(gw.stopped)
	for {
		select {
		case e, ok := <-gw.fsnotify.Events:
			if !ok {
				return
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if path, ok := gw.watched(e.Name); ok {
				core.LogInfo("render graph `%s` changed on disk", path)
				gw.events.Fire(core.EventContext{
					Type: core.EVENT_CODE_GRAPH_RELOAD_REQUIRED,
					Data: path,
				})
			}

		case err, ok := <-gw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)

		case <-gw.done:
			return
		}
	}
}

// Shutdown stops the watcher goroutine and releases the OS watches.
func (gw *GraphWatcher) Shutdown() error {
	gw.mutex.Lock()
	if gw.isClosed {
		gw.mutex.Unlock()
		return nil
	}
	gw.isClosed = true
	gw.mutex.Unlock()

	close(gw.done)
	<-gw.stopped
	return gw.fsnotify.Close()
}
