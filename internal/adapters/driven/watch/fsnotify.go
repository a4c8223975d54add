// Package watch signals file changes under the data directory using fsnotify.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

// DefaultDebounce is how long the tree must stay quiet before a change is signalled.
const DefaultDebounce = 2 * time.Second

// Ensure Watcher implements the interface.
var _ driven.ChangeWatcher = (*Watcher)(nil)

// Config configures a Watcher.
type Config struct {
	Debounce time.Duration

	// SkipDirs lists directory base names that are never watched.
	SkipDirs []string
}

// Watcher watches a directory tree recursively. Directories created after
// Watch starts are added as they appear. Hidden files and directories
// (including in-flight ".name.part-*" downloads) are ignored.
type Watcher struct {
	debounce time.Duration
	skip     map[string]bool
}

// New creates a Watcher.
func New(cfg Config) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	skip := make(map[string]bool, len(cfg.SkipDirs))
	for _, d := range cfg.SkipDirs {
		skip[d] = true
	}
	return &Watcher{debounce: cfg.Debounce, skip: skip}
}

// Watch starts watching root.
func (w *Watcher) Watch(ctx context.Context, root string, extensions []string) (<-chan struct{}, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create watch root: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.addTree(fw, root); err != nil {
		fw.Close()
		return nil, err
	}

	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}

	out := make(chan struct{}, 1)
	go w.loop(ctx, fw, root, exts, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, root string, exts map[string]bool, out chan<- struct{}) {
	defer close(out)
	defer fw.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if isHidden(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, event.Name); err != nil {
						logger.Warn("watch: %v", err)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if len(exts) > 0 && !exts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			logger.Debug("watch: %s %s", event.Op, event.Name)
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch %s: %v", root, err)

		case <-timer.C:
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

// addTree adds dir and every non-hidden, non-skipped directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (isHidden(path) || w.skip[d.Name()]) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
