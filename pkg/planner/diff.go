package planner

import (
	"path/filepath"
	"sort"

	"github.com/yuya-takeyama/bulklift/pkg/objstore"
)

// LocalPath maps a remote object name into the local path space rooted at
// sourceRoot.
func LocalPath(sourceRoot, name string) string {
	return filepath.Join(sourceRoot, filepath.FromSlash(name))
}

// Diff returns the remote records with no corresponding local file, sorted by
// name. Remote names matching an exclude pattern are never returned. Neither
// input is modified.
//
// Paths are compared byte for byte after cleaning: the comparison is case
// sensitive, does not normalize unicode and does not resolve symlinks.
func Diff(remote []objstore.ObjectRecord, local []string, sourceRoot string, excludes []string) ([]objstore.ObjectRecord, error) {
	localSet := make(map[string]struct{}, len(local))
	for _, p := range local {
		localSet[filepath.Clean(p)] = struct{}{}
	}

	result := []objstore.ObjectRecord{}
	seen := make(map[string]struct{}, len(remote))
	for _, rec := range remote {
		if _, dup := seen[rec.Name]; dup {
			continue
		}
		seen[rec.Name] = struct{}{}

		if _, exists := localSet[LocalPath(sourceRoot, rec.Name)]; exists {
			continue
		}

		excluded, err := IsExcluded(rec.Name, excludes)
		if err != nil {
			return nil, err
		}
		if excluded {
			continue
		}

		result = append(result, rec)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}
