package install

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Extractor unpacks archives into a destination directory. Entries that
// would land outside the destination are rejected.
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractTarGz extracts a .tar.gz archive to a destination directory
func (e *Extractor) ExtractTarGz(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	root, err := prepareRoot(destDir)
	if err != nil {
		return err
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := entryPath(root, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := writeFile(target, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := writeSymlink(root, target, header.Linkname); err != nil {
				return err
			}

		default:
			// Hard links, devices and fifos are not needed to run a tool.
			continue
		}
	}

	return nil
}

// ExtractZip extracts a .zip archive to a destination directory
func (e *Extractor) ExtractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	root, err := prepareRoot(destDir)
	if err != nil {
		return err
	}

	for _, f := range reader.File {
		target, err := entryPath(root, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case mode&os.ModeSymlink != 0:
			if err := extractZipSymlink(root, target, f); err != nil {
				return err
			}

		case mode.IsRegular():
			if err := extractZipFile(target, f); err != nil {
				return err
			}
		}
	}

	return nil
}

func extractZipFile(target string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		// Archives created without unix attributes carry no mode bits.
		perm = 0644
	}
	return writeFile(target, rc, perm)
}

func extractZipSymlink(root, target string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	linkname, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read symlink %s: %w", f.Name, err)
	}
	return writeSymlink(root, target, string(linkname))
}

// writeSymlink creates target -> linkname after checking that linkname
// resolves inside root. An existing file or link at target is replaced.
func writeSymlink(root, target, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("illegal symlink %s -> %s", target, linkname)
	}
	if _, err := resolveInside(root, filepath.Dir(target), linkname); err != nil {
		return fmt.Errorf("illegal symlink %s -> %s: %w", target, linkname, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	if err := clearEntry(target); err != nil {
		return err
	}
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("create symlink %s: %w", target, err)
	}
	return nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	// A link left by an earlier extraction must not be written through.
	if err := clearEntry(target); err != nil {
		return err
	}

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}

	// OpenFile applies the umask; restore the archived bits so the
	// owner-execute check sees what the archive declared.
	if err := os.Chmod(target, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", target, err)
	}
	return nil
}

// maxLinkHops bounds symlink resolution, matching Linux's MAXSYMLINKS.
const maxLinkHops = 40

// prepareRoot creates destDir and returns its fully resolved path.
func prepareRoot(destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create dest dir: %w", err)
	}
	root, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return "", fmt.Errorf("resolve dest dir: %w", err)
	}
	return root, nil
}

// entryPath returns where the archive entry name lands under root. Its
// parent directories are resolved against what is already on disk, so
// links extracted earlier in the same archive cannot redirect it.
func entryPath(root, name string) (string, error) {
	clean := strings.TrimRight(filepath.ToSlash(name), "/")
	dir, base := path.Split(clean)
	parent, err := resolveInside(root, root, dir)
	if err != nil {
		return "", fmt.Errorf("illegal file path %s: %w", name, err)
	}
	switch base {
	case "", ".":
		return parent, nil
	case "..":
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	return filepath.Join(parent, base), nil
}

// resolveInside walks rel from the directory from, following symlinks that
// exist on disk one component at a time. Components that do not exist yet
// are taken literally. Any step leaving root is an error.
func resolveInside(root, from, rel string) (string, error) {
	cur := from
	parts := strings.Split(filepath.ToSlash(rel), "/")
	hops := 0

	for len(parts) > 0 {
		part := parts[0]
		parts = parts[1:]

		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
			if !within(root, cur) {
				return "", errEscapesRoot
			}
			continue
		}

		next := filepath.Join(cur, part)
		fi, err := os.Lstat(next)
		if err != nil {
			if os.IsNotExist(err) {
				cur = next
				continue
			}
			return "", err
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			cur = next
			continue
		}

		hops++
		if hops > maxLinkHops {
			return "", fmt.Errorf("too many levels of symbolic links at %s", next)
		}
		link, err := os.Readlink(next)
		if err != nil {
			return "", err
		}
		if filepath.IsAbs(link) {
			return "", errEscapesRoot
		}
		// The link resolves relative to the directory holding it, which is cur.
		parts = append(strings.Split(filepath.ToSlash(link), "/"), parts...)
	}

	if !within(root, cur) {
		return "", errEscapesRoot
	}
	return cur, nil
}

var errEscapesRoot = errors.New("path escapes the destination directory")

// clearEntry removes a file or symlink at target so it can be recreated.
func clearEntry(target string) error {
	fi, err := os.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("inspect %s: %w", target, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", target)
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("replace %s: %w", target, err)
	}
	return nil
}

func within(root, p string) bool {
	root = filepath.Clean(root)
	return p == root || strings.HasPrefix(p, root+string(os.PathSeparator))
}
