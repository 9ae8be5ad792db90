package csvmigrate

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
)

type fsFileProvider struct {
	fs      fs.FS
	include func(path string, entry os.DirEntry) bool
}

// NewDirectoryFileProvider creates a [FileProvider] that lists files from a
// directory tree, sorted by name. Only files with the ".mig.yaml" extension
// are returned.
func NewDirectoryFileProvider(rootDir string, options ...FSFileProviderOption) FileProvider {
	return NewFSFileProvider(os.DirFS(rootDir), options...)
}

// NewFSFileProvider creates a [FileProvider] that lists files from a [fs.FS],
// sorted by name. Only files with the ".mig.yaml" extension are returned.
func NewFSFileProvider(fs fs.FS, options ...FSFileProviderOption) FileProvider {
	ret := &fsFileProvider{
		fs: fs,
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.include == nil {
		ret.include = func(string, os.DirEntry) bool {
			return true
		}
	}
	return ret
}

type FSFileProviderOption func(*fsFileProvider)

// WithDirectoryIncludeFunc sets a callback to choose the files that will be
// read. Check [os.DirEntry.IsDir] to detect files or directories.
func WithDirectoryIncludeFunc(include func(path string, entry os.DirEntry) bool) FSFileProviderOption {
	return func(provider *fsFileProvider) {
		provider.include = include
	}
}

func (d fsFileProvider) Load(f FileProviderCallback) error {
	return d.loadFiles(".", f)
}

func (d fsFileProvider) loadFiles(currentPath string, f FileProviderCallback) error {
	files, err := d.readDirSorted(currentPath)
	if err != nil {
		return fmt.Errorf("error reading directory '%s': %w", currentPath, err)
	}

	var dirs []string

	for _, file := range files {
		if !d.include(currentPath, file) {
			continue
		}

		fullPath := path.Join(currentPath, file.Name())

		if file.IsDir() {
			dirs = append(dirs, file.Name())
			continue
		}

		if strings.HasSuffix(file.Name(), ".mig.yaml") {
			localFile, err := d.fs.Open(fullPath)
			if err != nil {
				return fmt.Errorf("error opening file '%s': %w", fullPath, err)
			}

			err = f(FileInfo{
				Name: fullPath,
				File: localFile,
			})

			fileErr := localFile.Close()
			if fileErr != nil {
				return errors.Join(fmt.Errorf("error closing file '%s': %w", fullPath, fileErr), err)
			}

			if err != nil {
				return fmt.Errorf("error processing file '%s': %w", fullPath, err)
			}
		}
	}

	for _, dir := range dirs {
		err := d.loadFiles(path.Join(currentPath, dir), f)
		if err != nil {
			return err
		}
	}

	return nil
}

func (d fsFileProvider) readDirSorted(currentPath string) ([]os.DirEntry, error) {
	files, err := fs.ReadDir(d.fs, currentPath)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(files, func(a, b os.DirEntry) int {
		return cmp.Compare(a.Name(), b.Name())
	})

	return files, err
}

// NewStringFileProvider creates a [FileProvider] that simulates a file for
// each string, in the array order.
func NewStringFileProvider(files []string) FileProvider {
	return &stringFileProvider{files: files}
}

type stringFileProvider struct {
	files []string
}

func (s stringFileProvider) Load(callback FileProviderCallback) error {
	digitSize := fmt.Sprintf("%d", len(s.files))
	fileFmt := fmt.Sprintf("%%0%dd-file.mig.yaml", len(digitSize)+1)

	for idx, data := range s.files {
		err := callback(FileInfo{
			Name: fmt.Sprintf(fileFmt, idx),
			File: strings.NewReader(data),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
