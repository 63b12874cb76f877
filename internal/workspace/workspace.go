// Package workspace manages the scratch directory a run works in.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	gitDir   = "git"
	buildDir = "build"
)

// Workspace is a scoped working directory. It is wiped and recreated when acquired and
// wiped again when released. A crashed process leaves it behind.
type Workspace struct {
	Root string
}

// Acquire wipes root and recreates it with its git and build subdirectories.
func Acquire(root string) (*Workspace, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("failed to wipe workspace %s: %w", root, err)
	}

	w := &Workspace{Root: root}
	for _, dir := range []string{w.GitDir(), w.BuildDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}

	return w, nil
}

// GitDir is where the repository is checked out.
func (w *Workspace) GitDir() string {
	return filepath.Join(w.Root, gitDir)
}

// BuildDir is where packages are written.
func (w *Workspace) BuildDir() string {
	return filepath.Join(w.Root, buildDir)
}

// Path joins elem onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Root}, elem...)...)
}

// Release wipes the workspace. It is safe to call more than once.
func (w *Workspace) Release() error {
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("failed to wipe workspace %s: %w", w.Root, err)
	}

	return nil
}

func checkRoot(root string) error {
	if root == "" {
		return errors.New("workspace root is required")
	}

	clean := filepath.Clean(root)
	if clean == string(filepath.Separator) || clean == "." {
		return fmt.Errorf("refusing to use %q as workspace root", root)
	}
	if home, err := os.UserHomeDir(); err == nil && clean == filepath.Clean(home) {
		return fmt.Errorf("refusing to use home directory %q as workspace root", root)
	}

	return nil
}
