package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for a burst of file
// events to settle before reporting a change.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to the local image sources.
type Watcher struct {
	fs       *fsnotify.Watcher
	changes  chan struct{}
	debounce time.Duration
	log      zerolog.Logger

	// files holds watched single files; their parent directory is watched
	// and events for siblings are ignored.
	files map[string]bool
	dirs  map[string]bool

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

// LocalPaths returns the references that point at the local filesystem.
func LocalPaths(refs []string) []string {
	var paths []string
	for _, ref := range refs {
		switch {
		case strings.HasPrefix(ref, "file://"):
			paths = append(paths, strings.TrimPrefix(ref, "file://"))
		case !strings.Contains(ref, "://"):
			paths = append(paths, ref)
		}
	}
	return paths
}

// NewWatcher watches paths, which may be directories or single files.
// A debounce of zero uses DefaultDebounce.
func NewWatcher(paths []string, debounce time.Duration, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create watcher")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fs:       fw,
		changes:  make(chan struct{}, 1),
		debounce: debounce,
		log:      log,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}

	for _, p := range paths {
		p = filepath.Clean(p)
		info, err := os.Stat(p)
		if err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "watch %s", p)
		}
		dir := p
		if !info.IsDir() {
			w.files[p] = true
			dir = filepath.Dir(p)
		} else {
			w.dirs[p] = true
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "watch %s", dir)
		}
	}

	go w.run()
	return w, nil
}

// Changes delivers at most one pending notification at a time. The
// channel is closed by Close.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Paths returns the watched files and directories, sorted.
func (w *Watcher) Paths() []string {
	paths := make([]string, 0, len(w.files)+len(w.dirs))
	for p := range w.files {
		paths = append(paths, p)
	}
	for p := range w.dirs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		<-w.exited

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.closed = true
		close(w.changes)
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.exited)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("source changed")
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// relevant filters out events for files that are not images, and for
// siblings of single watched files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(event.Name)
	if w.files[name] {
		return true
	}
	if !w.dirs[filepath.Dir(name)] {
		return false
	}
	return IsImagePath(name)
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.notify)
}

func (w *Watcher) notify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
