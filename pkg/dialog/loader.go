package dialog

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader loads and optionally hot-reloads waterfall definitions from YAML
// files. The built-in waterfall is always present unless a file redefines it.
type Loader struct {
	dir string

	mu      sync.RWMutex
	dialogs map[string]*StateMachine
}

// NewLoader creates a loader for dir. An empty dir serves only the built-in
// waterfall.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:     dir,
		dialogs: builtins(),
	}
}

func builtins() map[string]*StateMachine {
	sm := NewStateMachine(DefaultWaterfall())
	return map[string]*StateMachine{sm.Name(): sm}
}

// LoadAll loads all .yaml and .yml files from the configured directory.
// On error the previously loaded set stays in place.
func (l *Loader) LoadAll() (map[string]*StateMachine, error) {
	result := builtins()
	if l.dir == "" {
		l.swap(result)
		return maps.Clone(result), nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read dialog dir %q: %w", l.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		sm, err := l.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", path, err)
		}
		result[sm.Name()] = sm
	}

	l.swap(result)
	return maps.Clone(result), nil
}

func (l *Loader) swap(dialogs map[string]*StateMachine) {
	l.mu.Lock()
	l.dialogs = dialogs
	l.mu.Unlock()
}

// Get returns a loaded state machine by waterfall name.
func (l *Loader) Get(name string) (*StateMachine, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sm, ok := l.dialogs[name]
	return sm, ok
}

// All returns all loaded state machines.
func (l *Loader) All() map[string]*StateMachine {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.dialogs)
}

func (l *Loader) loadFile(path string) (*StateMachine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, filepath.Base(path))
}

// Parse decodes and validates one YAML waterfall. fallbackName is used when
// the document has no name.
func Parse(data []byte, fallbackName string) (*StateMachine, error) {
	var w Waterfall
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if w.Name == "" {
		w.Name = fallbackName
	}

	sm := NewStateMachine(&w)
	if err := sm.Validate(); err != nil {
		return nil, err
	}
	return sm, nil
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// WatchAndReload watches the dialog directory and reloads on change.
// This blocks until the done channel is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
	if l.dir == "" {
		<-done
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", l.dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isYAML(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if _, err := l.LoadAll(); err != nil {
					slog.Warn("dialog reload failed, keeping previous set",
						slog.String("dir", l.dir), slog.Any("error", err))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
