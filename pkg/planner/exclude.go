package planner

import (
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IsExcluded reports whether the slash-separated name matches any exclude
// pattern. A pattern ending in "/" names a directory and matches everything
// below every directory it matches.
func IsExcluded(name string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		if dirPattern, ok := strings.CutSuffix(pattern, "/"); ok {
			parts := strings.Split(name, "/")
			for i := 1; i < len(parts); i++ {
				matched, err := doublestar.Match(dirPattern, strings.Join(parts[:i], "/"))
				if err != nil {
					return false, err
				}
				if matched {
					return true, nil
				}
			}
			continue
		}

		matched, err := doublestar.Match(pattern, name)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// IsExcludedDir reports whether a directory is named by a trailing-slash
// pattern, so that nothing below it needs to be visited.
func IsExcludedDir(name string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		dirPattern, ok := strings.CutSuffix(pattern, "/")
		if !ok {
			continue
		}
		matched, err := doublestar.Match(dirPattern, name)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// ValidateExcludes rejects patterns that can never match.
func ValidateExcludes(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(strings.TrimSuffix(pattern, "/")) {
			return &InvalidPatternError{Pattern: pattern}
		}
	}
	return nil
}

type InvalidPatternError struct {
	Pattern string
}

func (e *InvalidPatternError) Error() string {
	return "invalid exclude pattern: " + strconv.Quote(e.Pattern)
}
