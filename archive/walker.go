// Package archive iterates document sources batched inside zip archives.
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"
)

// WalkFunc is called once for every matching file entry. The archive argument
// is the path Walk was given, file is the entry itself. Returning an error
// stops the walk.
type WalkFunc func(archive string, file *zip.File) error

// Walk visits every regular file under the given path prefix inside the
// archive. An entry whose name is absolute or escapes upward fails the whole
// walk, such archives are not trusted.
func Walk(archive, prefix string, fn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !safeEntryName(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := fn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

func safeEntryName(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
