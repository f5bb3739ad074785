package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/timzifer/geoconfig/spec"
)

// SourceFiles returns the files a configuration depends on: the file itself,
// the hierarchy levels loaded so far and every file referenced by a
// Filepath spec in any of them. Hierarchy levels that have not been composed
// yet are not listed.
func SourceFiles(cfg *Config) []string {
	if cfg == nil {
		return nil
	}
	files := make(map[string]struct{})
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		files[abs] = struct{}{}
	}
	collect := func(c *Config) {
		add(c.path)
		for _, key := range c.flat.Keys() {
			s, _ := c.flat.Get(key)
			spec.Walk(s, func(node spec.Spec) bool {
				if file, ok := node.(*spec.Filepath); ok {
					add(file.Abs)
				}
				return true
			})
		}
	}
	collect(cfg)
	if cfg.composed {
		for _, child := range cfg.upstream {
			collect(child)
		}
	}
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
