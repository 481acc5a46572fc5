package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/hbomb79/mediainspect/pkg/logger"
	gosync "github.com/hbomb79/mediainspect/pkg/sync"
	"github.com/rjeczalik/notify"
)

var (
	log      = logger.Get("Watch")
	ErrWatch = errors.New("watch failed")
)

const (
	DefaultDebounce = 2 * time.Second
	eventBuffer     = 64
)

// Watcher reports batches of changed media files found beneath a set of roots.
// Filesystem events are debounced: a batch is only delivered once no
// further events have arrived for the debounce period.
type Watcher struct {
	*sync.Mutex
	roots    []string
	debounce time.Duration
	accept   func(path string) bool
	pending  *gosync.TypedSyncMap[string, notify.Event]
}

// New creates a watcher for the given roots. Only changes to paths for which
// accept returns true are reported; a nil accept reports all changes.
func New(roots []string, debounce time.Duration, accept func(string) bool) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}

	return &Watcher{
		Mutex:    &sync.Mutex{},
		roots:    roots,
		debounce: debounce,
		accept:   accept,
		pending:  &gosync.TypedSyncMap[string, notify.Event]{},
	}
}

// Run installs a recursive watch on each of the roots and delivers
// changes to onChange until the context is cancelled.
func (watcher *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	events := make(chan notify.EventInfo, eventBuffer)
	defer notify.Stop(events)

	for _, root := range watcher.roots {
		target := root
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			target = filepath.Join(root, "...")
		}

		if err := notify.Watch(target, events, notify.Create, notify.Remove, notify.Write, notify.Rename); err != nil {
			return fmt.Errorf("%w: cannot watch %s: %w", ErrWatch, root, err)
		}

		log.Emit(logger.DEBUG, "Watching %s\n", target)
	}

	return watcher.Listen(ctx, events, onChange)
}

// Listen consumes the events given, delivering debounced batches of changed
// paths (sorted) to onChange. It returns when the context is cancelled or the
// events channel is closed. Calls to onChange never overlap.
func (watcher *Watcher) Listen(ctx context.Context, events <-chan notify.EventInfo, onChange func(paths []string)) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}

		// Wait for any in-flight delivery to finish
		watcher.Lock()
		defer watcher.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !watcher.accept(ev.Path()) {
				continue
			}

			log.Emit(logger.VERBOSE, "Event %s for %s\n", ev.Event(), ev.Path())
			watcher.pending.Store(ev.Path(), ev.Event())
			if timer == nil {
				timer = time.AfterFunc(watcher.debounce, func() { watcher.flush(onChange) })
			} else {
				timer.Reset(watcher.debounce)
			}
		}
	}
}

// flush delivers all pending changes to the callback.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (watcher *Watcher) flush(onChange func(paths []string)) {
	watcher.Lock()
	defer watcher.Unlock()

	changes := watcher.pending.Drain()
	if len(changes) == 0 {
		return
	}

	paths := make([]string, 0, len(changes))
	for path := range changes {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	log.Emit(logger.INFO, "Detected changes to %d file(s)\n", len(paths))
	onChange(paths)
}
