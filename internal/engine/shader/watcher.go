package shader

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports changes to the shader override directory. The render loop
// polls Changed once per frame and rebuilds its pipelines when it returns
// true.
type Watcher struct {
	watch   *fsnotify.Watcher
	done    chan struct{}
	pending atomic.Bool
	log     *zap.Logger
}

// Watch starts watching the library's override directory.
func (l *Library) Watch() (*Watcher, error) {
	if l.dir == "" {
		return nil, fmt.Errorf("shader library has no directory to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(l.dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", l.dir, err)
	}
	w := &Watcher{watch: fw, done: make(chan struct{}), log: l.log}
	go w.run()
	l.log.Info("watching shaders", zap.String("dir", l.dir))
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watch.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if _, err := StageOf(event.Name); err != nil && !isInclude(event.Name) {
				continue
			}
			w.log.Debug("shader changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
			w.pending.Store(true)
		case err, ok := <-w.watch.Errors:
			if !ok {
				return
			}
			w.log.Warn("shader watcher", zap.Error(err))
		}
	}
}

func isInclude(name string) bool { return filepath.Ext(name) == ".glsl" }

// Changed reports whether a shader file changed since the last call.
func (w *Watcher) Changed() bool {
	return w.pending.Swap(false)
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watch.Close()
}
