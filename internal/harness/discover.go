package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ScenarioNotFoundError is returned when a path names no scenario files.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("no scenario files found at %s", e.Path)
}

// Discover expands paths into scenario files. A file is taken as is; a
// directory contributes its *.yaml and *.yml files, sorted, without
// descending into subdirectories (fixtures usually live in one).
func Discover(paths ...string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &ScenarioNotFoundError{Path: p}
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			m, err := filepath.Glob(filepath.Join(p, pattern))
			if err != nil {
				return nil, err
			}
			found = append(found, m...)
		}
		if len(found) == 0 {
			return nil, &ScenarioNotFoundError{Path: p}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
