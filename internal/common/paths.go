package common

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CleanPath resolves path to a clean absolute path. Relative paths that climb
// above the working directory are rejected.
func CleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("invalid path: empty")
	}
	cleaned := filepath.Clean(path)
	if escapes(cleaned) {
		return "", fmt.Errorf("invalid path: contains directory traversal")
	}

	if !filepath.IsAbs(cleaned) {
		abs, err := filepath.Abs(cleaned)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		cleaned = abs
	}
	return cleaned, nil
}

// ValidatePath ensures path is baseDir or lies below it.
func ValidatePath(path, baseDir string) (string, error) {
	cleanedPath, err := CleanPath(path)
	if err != nil {
		return "", err
	}
	cleanedBase, err := CleanPath(baseDir)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(cleanedBase, cleanedPath)
	if err != nil || escapes(rel) {
		return "", fmt.Errorf("path %s is outside %s", cleanedPath, cleanedBase)
	}
	return cleanedPath, nil
}

// JoinPath joins elements onto base and rejects results outside base.
func JoinPath(base string, elements ...string) (string, error) {
	cleanedBase, err := CleanPath(base)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(append([]string{cleanedBase}, elements...)...)
	return ValidatePath(joined, cleanedBase)
}

// escapes reports whether a cleaned relative path climbs above its origin.
func escapes(cleaned string) bool {
	return cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator))
}
