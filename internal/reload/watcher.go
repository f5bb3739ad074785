package reload

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/timzifer/geoconfig/config"
	"github.com/timzifer/geoconfig/telemetry"
)

// stamp is what a poll compares to decide that a source file changed.
type stamp struct {
	modTime time.Time
	size    int64
}

func (s stamp) differs(info os.FileInfo) bool {
	return info.IsDir() || !info.ModTime().Equal(s.modTime) || info.Size() != s.size
}

// Watcher polls the files a loaded configuration was built from: the
// configuration file, every hierarchy level and every referenced data file.
type Watcher struct {
	mu        sync.Mutex
	files     map[string]stamp
	collector telemetry.Collector
}

// NewWatcher snapshots the source files of cfg plus root. Every change found
// by Check is counted as a reload on collector.
func NewWatcher(root string, cfg *config.Config, collector telemetry.Collector) (*Watcher, error) {
	if collector == nil {
		collector = telemetry.Noop()
	}
	watcher := &Watcher{collector: collector}
	if err := watcher.Update(root, cfg); err != nil {
		return nil, err
	}
	return watcher, nil
}

// Update replaces the snapshot with the current source files of cfg plus
// root. Files that do not exist or are directories are not tracked.
func (w *Watcher) Update(root string, cfg *config.Config) error {
	if w == nil {
		return nil
	}
	sources := config.SourceFiles(cfg)
	if root = strings.TrimSpace(root); root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			sources = append(sources, abs)
		}
	}
	files := snapshot(sources)
	w.mu.Lock()
	w.files = files
	w.mu.Unlock()
	return nil
}

func snapshot(paths []string) map[string]stamp {
	files := make(map[string]stamp, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		path = filepath.Clean(path)
		if _, tracked := files[path]; tracked {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files[path] = stamp{modTime: info.ModTime(), size: info.Size()}
	}
	return files
}

// Files lists the tracked paths, sorted.
func (w *Watcher) Files() []string {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.files))
	for path := range w.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Check returns the sorted tracked files that were modified, replaced or
// removed since the last Update. The snapshot itself is left untouched.
func (w *Watcher) Check() ([]string, error) {
	if w == nil {
		return nil, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var changed []string
	for path, last := range w.files {
		info, err := os.Stat(path)
		if err == nil && !last.differs(info) {
			continue
		}
		changed = append(changed, path)
		if w.collector != nil {
			w.collector.IncReload(path)
		}
	}
	sort.Strings(changed)
	if changed == nil {
		changed = []string{}
	}
	return changed, nil
}
