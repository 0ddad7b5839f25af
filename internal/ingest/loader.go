package ingest

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Loader reads entries from directories of JSON documents.
type Loader struct {
	// Recursive descends into subdirectories when set.
	Recursive bool
}

// LoadDirs loads every directory in order. Problems with individual files or
// directories are recorded in the result; loading always continues.
func (l *Loader) LoadDirs(dirs ...string) *LoadResult {
	total := &LoadResult{}
	for _, dir := range dirs {
		total.Add(l.loadDir(dir))
	}
	return total
}

func (l *Loader) loadDir(dir string) *LoadResult {
	result := &LoadResult{}

	info, err := os.Stat(dir)
	if err != nil {
		result.Errors = append(result.Errors, LoadError{File: dir, Message: err.Error()})
		return result
	}
	if !info.IsDir() {
		l.loadInto(result, dir)
		return result
	}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, LoadError{File: path, Message: err.Error()})
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && !l.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !isJSONFile(path) {
			return nil
		}
		l.loadInto(result, path)
		return nil
	})
	if walkErr != nil {
		result.Errors = append(result.Errors, LoadError{File: dir, Message: walkErr.Error()})
	}
	return result
}

func (l *Loader) loadInto(result *LoadResult, path string) {
	result.FilesScanned++
	entries, err := LoadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, LoadError{File: path, Message: err.Error()})
		return
	}
	result.FilesLoaded++
	result.Entries = append(result.Entries, entries...)
}

func isJSONFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}
