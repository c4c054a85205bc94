package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// caseInsensitive reports whether the default filesystem of this OS folds case.
func caseInsensitive() bool {
	return runtime.GOOS == "darwin" || runtime.GOOS == "windows"
}

// resolve returns path absolute with symlinks evaluated. Paths that do not
// exist yet are returned absolute but unresolved.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// NormalizeForLookup returns an absolute, symlink-free path suitable as a
// map key. On case-insensitive systems it is lowercased as well.
func NormalizeForLookup(path string) (string, error) {
	resolved, err := resolve(path)
	if err != nil {
		return "", err
	}
	if caseInsensitive() {
		return strings.ToLower(resolved), nil
	}
	return resolved, nil
}

// ComparePaths reports whether two paths name the same location.
func ComparePaths(path1, path2 string) (bool, error) {
	norm1, err := NormalizeForLookup(path1)
	if err != nil {
		return false, err
	}
	norm2, err := NormalizeForLookup(path2)
	if err != nil {
		return false, err
	}
	return norm1 == norm2, nil
}

// CanonicalPath returns the absolute, symlink-free path spelled with the case
// stored on disk. Event streams report paths in that form, so watch roots
// must be canonical for records to be matched back to the root that holds
// them: /users/me/src becomes /Users/me/src on macOS.
//
// filepath.EvalSymlinks keeps the caller's case on macOS, so each component
// is looked up in its parent directory.
func CanonicalPath(path string) (string, error) {
	resolved, err := resolve(path)
	if err != nil {
		return "", err
	}
	if !caseInsensitive() || resolved == "/" {
		return resolved, nil
	}

	result := "/"
	for _, part := range strings.Split(resolved, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		result = filepath.Join(result, lookupName(result, part))
	}
	return result, nil
}

// lookupName returns the entry of dir matching name case-insensitively, or
// name itself when dir cannot be read or has no such entry.
func lookupName(dir, name string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return name
	}
	for _, entry := range entries {
		if entry.Name() == name {
			return name
		}
	}
	for _, entry := range entries {
		if strings.EqualFold(entry.Name(), name) {
			return entry.Name()
		}
	}
	return name
}
