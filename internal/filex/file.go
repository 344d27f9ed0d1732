// Package filex contains small filesystem helpers used by the CLI.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the parent directory of path (with all
// intermediate directories) so the file can be written afterwards.
// It returns the cleaned path.
func EnsureParentDir(path string) (string, error) {
	path = filepath.Clean(path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return path, nil
}
