package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yuya-takeyama/bulklift/pkg/planner"
)

// FileInfo represents a local file
type FileInfo struct {
	Path    string // Absolute path
	Name    string // Remote object name: path relative to root, slash separated
	Size    int64
	ModTime int64 // Unix timestamp
	Mode    os.FileMode
}

// Walker walks local files with exclude pattern support
type Walker struct {
	root     string
	excludes []string
}

// NewWalker creates a new file walker
func NewWalker(root string, excludes []string) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	// Validate root exists and is a directory
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	if err := planner.ValidateExcludes(excludes); err != nil {
		return nil, err
	}

	return &Walker{
		root:     absRoot,
		excludes: excludes,
	}, nil
}

// Root returns the absolute source root.
func (w *Walker) Root() string {
	return w.root
}

// Walk returns every regular file under root in lexical order. Symlinks and
// other special files are skipped.
func (w *Walker) Walk() ([]FileInfo, error) {
	files := []FileInfo{}

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != w.root && w.isExcludedDir(w.relName(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		name := w.relName(path)
		if name == "" {
			return fmt.Errorf("get relative path: %s", path)
		}

		if w.isExcluded(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("get file info: %w", err)
		}

		files = append(files, FileInfo{
			Path:    path,
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
			Mode:    info.Mode(),
		})

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	return files, nil
}

func (w *Walker) relName(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}

// isExcludedDir prunes directories named by a trailing-slash pattern
func (w *Walker) isExcludedDir(name string) bool {
	excluded, _ := planner.IsExcludedDir(name, w.excludes)
	return excluded
}

// isExcluded checks if a path matches any exclude pattern
func (w *Walker) isExcluded(path string) bool {
	excluded, _ := planner.IsExcluded(path, w.excludes)
	return excluded
}

// Paths returns the absolute paths of files, preserving order.
func Paths(files []FileInfo) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}
