// Package walk enumerates the regular files under an input directory
// tree, the trivial collaborator named in spec.md §1.
package walk

import (
	"io/fs"
	"path/filepath"
)

// dsStore is filtered at walk time so it never occupies a work-queue slot.
const dsStore = ".DS_Store"

// File is one regular file discovered under the input root.
type File struct {
	// AbsPath is the absolute filesystem path.
	AbsPath string
	// Size is the file's byte size as reported by Lstat at walk time.
	Size int64
}

// Walk recursively enumerates regular files under root. Directories are
// traversed but not emitted. Symlinks are skipped, not followed — an
// explicit choice documented in SPEC_FULL.md §4.1. Files named exactly
// ".DS_Store" are omitted.
func Walk(root string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if d.Name() == dsStore {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{AbsPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
