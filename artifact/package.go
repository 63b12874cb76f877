package artifact

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// zipEpoch is stamped on every entry so that packaging the same tree twice yields the same
// bytes, and therefore the same digest.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrNothingToPackage is returned when none of the include paths exist.
var ErrNothingToPackage = errors.New("nothing to package")

// Package zips the include paths (files or directories, relative to srcDir) into a package
// named name and writes it to outPath. Entries are written in lexical order with a fixed
// timestamp.
func Package(srcDir string, includes []string, name, outPath string) (*Artifact, error) {
	var buf bytes.Buffer
	if err := writeZip(&buf, srcDir, includes); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create package directory: %w", err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write package %s: %w", outPath, err)
	}

	a := New(name, buf.Bytes())
	a.Path = outPath

	return a, nil
}

func writeZip(w io.Writer, srcDir string, includes []string) error {
	zw := zip.NewWriter(w)

	var written int
	for _, inc := range includes {
		root := filepath.Join(srcDir, inc)
		if _, err := os.Lstat(root); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(srcDir, path)
			if err != nil {
				return err
			}
			if err = addEntry(zw, path, filepath.ToSlash(rel)); err != nil {
				return fmt.Errorf("failed to add %s: %w", rel, err)
			}
			written++

			return nil
		})
		if err != nil {
			return err
		}
	}

	if written == 0 {
		return fmt.Errorf("%w: %v in %s", ErrNothingToPackage, includes, srcDir)
	}

	return zw.Close()
}

func addEntry(zw *zip.Writer, path, name string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	hdr.Modified = zipEpoch

	ew, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	// Symlinks are stored as links, with the target as content.
	if info.Mode()&os.ModeSymlink != 0 {
		target, lerr := os.Readlink(path)
		if lerr != nil {
			return lerr
		}
		_, err = io.WriteString(ew, target)

		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(ew, f)

	return err
}
