// Package watch reports changes to source files using OS-native
// notifications from fsnotify.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is a bit set of file operations.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

func (op Op) String() string {
	names := []struct {
		bit  Op
		name string
	}{
		{OpCreate, "create"},
		{OpWrite, "write"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{OpChmod, "chmod"},
	}
	s := ""
	for _, n := range names {
		if op&n.bit == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n.name
	}
	if s == "" {
		return "none"
	}
	return s
}

// Event is a change to one watched file.
type Event struct {
	Path string
	Op   Op
}

// Watcher watches individual files. It subscribes to each file's
// directory so that editors replacing a file through rename are still
// observed, and drops events for files that were not added.
type Watcher struct {
	w   *fsnotify.Watcher
	evC chan Event
	erC chan error

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]int

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Watcher with no files.
func New() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	fw := &Watcher{
		w:     w,
		evC:   make(chan Event, 128),
		erC:   make(chan error, 1),
		files: make(map[string]bool),
		dirs:  make(map[string]int),
		done:  make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

func (fw *Watcher) loop() {
	defer close(fw.evC)
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if !fw.watching(ev.Name) {
				continue
			}
			select {
			case fw.evC <- Event{Path: filepath.Clean(ev.Name), Op: convertOp(ev.Op)}:
			case <-fw.done:
				return
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			select {
			case fw.erC <- err:
			default:
			}
		case <-fw.done:
			return
		}
	}
}

func convertOp(in fsnotify.Op) Op {
	var op Op
	if in&fsnotify.Create != 0 {
		op |= OpCreate
	}
	if in&fsnotify.Write != 0 {
		op |= OpWrite
	}
	if in&fsnotify.Remove != 0 {
		op |= OpRemove
	}
	if in&fsnotify.Rename != 0 {
		op |= OpRename
	}
	if in&fsnotify.Chmod != 0 {
		op |= OpChmod
	}
	return op
}

func (fw *Watcher) watching(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.files[abs]
}

// Add starts watching file.
func (fw *Watcher) Add(file string) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("watch %s: %w", file, err)
	}
	dir := filepath.Dir(abs)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.files[abs] {
		return nil
	}
	if fw.dirs[dir] == 0 {
		if err := fw.w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", file, err)
		}
	}
	fw.dirs[dir]++
	fw.files[abs] = true
	return nil
}

// Remove stops watching file.
func (fw *Watcher) Remove(file string) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("unwatch %s: %w", file, err)
	}
	dir := filepath.Dir(abs)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.files[abs] {
		return nil
	}
	delete(fw.files, abs)
	fw.dirs[dir]--
	if fw.dirs[dir] > 0 {
		return nil
	}
	delete(fw.dirs, dir)
	return fw.w.Remove(dir)
}

func (fw *Watcher) Events() <-chan Event { return fw.evC }
func (fw *Watcher) Errors() <-chan error { return fw.erC }

// Close stops the watcher and closes the event channel.
func (fw *Watcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		close(fw.done)
		err = fw.w.Close()
	})
	return err
}

// Run calls fn for every burst of events, coalescing events that arrive
// within quiet of each other into the last one. It returns when ctx is
// done or the watcher is closed, and stops on the first watcher error.
func (fw *Watcher) Run(ctx context.Context, quiet time.Duration, fn func(Event)) error {
	return debounce(ctx, fw.evC, fw.erC, quiet, fn)
}

func debounce(ctx context.Context, events <-chan Event, errs <-chan error, quiet time.Duration, fn func(Event)) error {
	var (
		pending *Event
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return fmt.Errorf("watch: %w", err)
		case ev, ok := <-events:
			if !ok {
				if pending != nil {
					fn(*pending)
				}
				return nil
			}
			pending = &ev
			if timer == nil {
				timer = time.NewTimer(quiet)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(quiet)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if pending != nil {
				fn(*pending)
				pending = nil
			}
		}
	}
}
