// Package storage keeps exported room transcripts on an afero filesystem, so
// the CLI writes to disk in production and to memory in tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidName is returned for transcript names that would escape the
// archive directory.
var ErrInvalidName = errors.New("invalid transcript name")

// Archive stores transcripts as files under a root directory.
type Archive struct {
	fs   afero.Fs
	root string
}

// NewArchive creates an Archive rooted at dir on fsys.
func NewArchive(fsys afero.Fs, dir string) *Archive {
	return &Archive{fs: fsys, root: filepath.Clean(dir)}
}

// Root returns the directory transcripts are written to.
func (a *Archive) Root() string {
	return a.root
}

func (a *Archive) path(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(a.root, base), nil
}

// Save writes the content of the reader to the transcript name, replacing
// any previous one.
func (a *Archive) Save(ctx context.Context, name string, reader io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := a.path(name)
	if err != nil {
		return 0, err
	}
	if err := a.fs.MkdirAll(a.root, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create archive dir: %w", err)
	}

	f, err := a.fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create transcript: %w", err)
	}
	defer f.Close()
	return io.Copy(f, reader)
}

// Open opens the transcript name for reading.
func (a *Archive) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	path, err := a.path(name)
	if err != nil {
		return nil, err
	}
	return a.fs.OpenFile(path, os.O_RDONLY, 0)
}

// Delete removes the transcript name.
func (a *Archive) Delete(ctx context.Context, name string) error {
	path, err := a.path(name)
	if err != nil {
		return err
	}
	return a.fs.Remove(path)
}

// List returns the names of the stored transcripts, sorted. A missing
// archive directory is an empty archive.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	entries, err := afero.ReadDir(a.fs, a.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
