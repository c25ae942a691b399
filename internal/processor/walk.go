package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/afero"

	"dupdup/internal/scanerr"
)

var errInvalidPath = errors.New("path is not valid UTF-8")

// excludeSet matches paths by absolute location, indexed by base name so
// most walked paths never need resolving.
type excludeSet map[string][]string

func newExcludeSet(paths []string) excludeSet {
	set := excludeSet{}
	for _, path := range paths {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = filepath.Clean(path)
		}
		base := filepath.Base(abs)
		set[base] = append(set[base], abs)
	}
	return set
}

func (s excludeSet) contains(path string) bool {
	candidates, ok := s[filepath.Base(path)]
	if !ok {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	for _, c := range candidates {
		if c == abs {
			return true
		}
	}
	return false
}

// walkFiles calls visit for every regular file under root in lexical order.
// Directories, excluded paths and other non-regular entries (symlinks,
// devices, sockets) are skipped. Entries that cannot be enumerated or whose
// path cannot be represented in a report are handed to visit as errors and
// the walk goes on.
func walkFiles(ctx context.Context, fsys afero.Fs, root string, exclude excludeSet, visit func(Job) error) error {
	return afero.Walk(fsys, root, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return visit(Job{Path: path, Err: scanerr.Enumeration(path, walkErr)})
		}
		if info.IsDir() || !info.Mode().IsRegular() || exclude.contains(path) {
			return nil
		}
		if !utf8.ValidString(path) {
			return visit(Job{Path: path, Err: scanerr.Encode(path, errInvalidPath)})
		}
		return visit(Job{Path: path, Size: info.Size()})
	})
}

// countFiles totals the regular files under root. Errors are ignored here;
// the hashing walk reports them.
func countFiles(ctx context.Context, fsys afero.Fs, root string, exclude excludeSet) (int, error) {
	count := 0
	err := walkFiles(ctx, fsys, root, exclude, func(job Job) error {
		if job.Err == nil {
			count++
		}
		return nil
	})
	return count, err
}
