package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// PathList resolves the engine's module search paths and caches the result.
// The cache is invalidated when the filesystem under a watched parent
// directory changes, so a search directory created after startup is picked
// up without restarting the plugin.
type PathList struct {
	mu     sync.RWMutex
	dirs   []string
	cached []string
	valid  bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewPathList creates a path list over the given directories. Directories
// are made absolute; duplicates are dropped. Watching is best-effort: a
// directory whose parent cannot be watched still resolves, it just is not
// auto-invalidated.
func NewPathList(dirs ...string) (*PathList, error) {
	p := &PathList{
		done: make(chan struct{}),
	}

	seen := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		p.dirs = append(p.dirs, abs)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	p.watcher = watcher

	watched := make(map[string]bool)
	for _, dir := range p.dirs {
		parent := filepath.Dir(dir)
		if watched[parent] {
			continue
		}
		if err := watcher.Add(parent); err == nil {
			watched[parent] = true
		}
	}

	p.wg.Add(1)
	go p.watchLoop()

	return p, nil
}

// Dirs returns the configured directories, resolved or not.
func (p *PathList) Dirs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.dirs))
	copy(out, p.dirs)
	return out
}

// Resolve returns the configured directories that currently exist, in
// configuration order. The result is cached until invalidated.
func (p *PathList) Resolve() []string {
	p.mu.RLock()
	if p.valid {
		out := make([]string, len(p.cached))
		copy(out, p.cached)
		p.mu.RUnlock()
		return out
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.valid {
		out := make([]string, len(p.cached))
		copy(out, p.cached)
		return out
	}

	p.cached = p.cached[:0]
	for _, dir := range p.dirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			p.cached = append(p.cached, dir)
		}
	}
	p.valid = true

	out := make([]string, len(p.cached))
	copy(out, p.cached)
	return out
}

// Invalidate discards the cached resolution.
func (p *PathList) Invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}

// Close stops watching. Resolve keeps working against the last filesystem
// state observed on demand.
func (p *PathList) Close() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	close(p.done)
	err := p.watcher.Close()
	p.wg.Wait()
	return err
}

// watchLoop invalidates the cache on any create/remove/rename under a
// watched parent.
func (p *PathList) watchLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				p.Invalidate()
			}
		case _, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// DefaultSearchPaths returns the search directories an engine starts with:
// the directory sibling to the running binary named "engine", which mirrors
// how the plugin ships its provider alongside its own file.
func DefaultSearchPaths() []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(filepath.Dir(exe), "engine")}
}
