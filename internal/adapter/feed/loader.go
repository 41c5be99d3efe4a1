package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"feedsearch/internal/domain"
)

// Loader reads exported feed items from JSON files selected by glob patterns.
// A file holds either an array of items or an object with an "items" array.
type Loader struct {
	includes []string
	excludes []string
}

func NewLoader(includes, excludes []string) *Loader {
	if len(includes) == 0 {
		includes = []string{"**/*.json"}
	}
	return &Loader{
		includes: includes,
		excludes: excludes,
	}
}

// LoadResult holds the items read and the per-file errors encountered.
type LoadResult struct {
	Items  []domain.Item
	Files  int
	Errors []string
}

// Load walks root and decodes every matching file. Unreadable files are
// reported in the result, not returned as an error.
func (l *Loader) Load(root string) (*LoadResult, error) {
	files, err := l.walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	result := &LoadResult{}
	for _, path := range files {
		items, err := readItems(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		result.Files++
		result.Items = append(result.Items, items...)
	}
	return result, nil
}

func (l *Loader) walk(root string) ([]string, error) {
	var files []string

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && l.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if l.shouldInclude(relPath) && !l.shouldExclude(relPath) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func (l *Loader) shouldInclude(path string) bool {
	for _, pattern := range l.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (l *Loader) shouldExclude(path string) bool {
	for _, pattern := range l.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func readItems(path string) ([]domain.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []domain.Item
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Items []domain.Item `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse items: %w", err)
	}
	return wrapped.Items, nil
}
