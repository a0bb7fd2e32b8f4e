// Package fileset moves files between the source tree, the transforms and
// the build tree. A FileSet is the unit every transform consumes and returns.
package fileset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sjc5/kit/pkg/fsutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrIO marks filesystem failures. These are never recovered from.
var ErrIO = errors.New("io error")

const readConcurrency = 8

type File struct {
	// Path is slash-separated and relative to the root the set was read from
	// (or, for transform output, relative to the build tree).
	Path string

	// Src is the OS path of the file on disk. Set only for files read from
	// the source tree.
	Src string

	// Data is nil for reference-only files, which are copied from Src
	// without being buffered.
	Data []byte
}

type FileSet []File

func (s FileSet) Lookup(p string) (File, bool) {
	p = path.Clean(p)
	for _, f := range s {
		if f.Path == p {
			return f, true
		}
	}
	return File{}, false
}

func (s FileSet) Paths() []string {
	paths := make([]string, 0, len(s))
	for _, f := range s {
		paths = append(paths, f.Path)
	}
	return paths
}

// Match returns the sorted, de-duplicated set of regular files under root
// that match any of the doublestar patterns. A missing root matches nothing.
func Match(root string, patterns ...string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioErr("stat", root, err)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			if errors.Is(err, doublestar.ErrBadPattern) {
				return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
			return nil, ioErr("glob", filepath.Join(root, pattern), err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Read loads every matching file into memory.
func Read(root string, patterns ...string) (FileSet, error) {
	paths, err := Match(root, patterns...)
	if err != nil {
		return nil, err
	}

	set := make(FileSet, len(paths))
	g := new(errgroup.Group)
	g.SetLimit(readConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			src := filepath.Join(root, filepath.FromSlash(p))
			data, err := os.ReadFile(src)
			if err != nil {
				return ioErr("read", src, err)
			}
			set[i] = File{Path: p, Src: src, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

// Refs is like Read but leaves Data empty.
func Refs(root string, patterns ...string) (FileSet, error) {
	paths, err := Match(root, patterns...)
	if err != nil {
		return nil, err
	}
	set := make(FileSet, 0, len(paths))
	for _, p := range paths {
		set = append(set, File{Path: p, Src: filepath.Join(root, filepath.FromSlash(p))})
	}
	return set, nil
}

// WriteTo writes the set under dir, creating directories as needed. Files
// with nil Data are copied from Src. sem bounds the number of files open at
// once and may be shared between concurrent writers.
func (s FileSet) WriteTo(dir string, sem *semaphore.Weighted) error {
	if sem == nil {
		sem = semaphore.NewWeighted(int64(len(s)) + 1)
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(s))

	for _, f := range s {
		wg.Add(1)
		go func(f File) {
			defer wg.Done()
			if err := sem.Acquire(context.Background(), 1); err != nil {
				errChan <- fmt.Errorf("error acquiring semaphore: %w", err)
				return
			}
			defer sem.Release(1)
			if err := writeFile(dir, f); err != nil {
				errChan <- err
			}
		}(f)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func writeFile(dir string, f File) error {
	if !fs.ValidPath(f.Path) {
		return fmt.Errorf("invalid output path %q", f.Path)
	}
	dest := filepath.Join(dir, filepath.FromSlash(f.Path))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return ioErr("mkdir", filepath.Dir(dest), err)
	}
	if f.Data == nil && f.Src != "" {
		if err := fsutil.CopyFile(f.Src, dest); err != nil {
			return ioErr("copy", f.Src, err)
		}
		return nil
	}
	if err := os.WriteFile(dest, f.Data, 0644); err != nil {
		return ioErr("write", dest, err)
	}
	return nil
}

func ioErr(op, p string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, p, err)
}
