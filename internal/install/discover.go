package install

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ownerExec is the owner-execute permission bit.
const ownerExec = 0100

// errFound stops the walk once an executable is located.
var errFound = errors.New("found")

// FindExecutable walks dir depth-first in lexical order and returns the
// first regular file whose owner-execute bit is set. Symlinks are not
// followed. found is false when the tree holds no such file.
func FindExecutable(dir string) (path string, found bool, err error) {
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode().Perm()&ownerExec != 0 {
			path = p
			return errFound
		}
		return nil
	})

	switch {
	case errors.Is(walkErr, errFound):
		return path, true, nil
	case walkErr != nil:
		return "", false, fmt.Errorf("search %s for executables: %w", dir, walkErr)
	default:
		return "", false, nil
	}
}

// Link points linkPath at target, replacing any file or symlink already at
// linkPath. The parent directory is created if needed.
func Link(target, linkPath string) error {
	if err := os.MkdirAll(filepath.Dir(linkPath), 0755); err != nil {
		return fmt.Errorf("create link dir: %w", err)
	}

	if fi, err := os.Lstat(linkPath); err == nil {
		if fi.IsDir() {
			return fmt.Errorf("cannot replace directory %s with a symlink", linkPath)
		}
		if err := os.Remove(linkPath); err != nil {
			return fmt.Errorf("remove existing %s: %w", linkPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", linkPath, err)
	}

	if err := os.Symlink(target, linkPath); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}
	return nil
}
