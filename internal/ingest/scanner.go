// Package ingest walks a corpus root, chunks Markdown files into passages,
// and upserts them into the store.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	noteerr "github.com/noterank/noterank/internal/errors"
)

// ScanResult is one discovered file, streamed to the caller as walking
// proceeds so a large corpus never needs to be held in memory at once.
type ScanResult struct {
	Path string // relative to root
	Err  error
}

// Scan walks root recursively and streams every file whose extension
// matches ext (default ".md" is the caller's responsibility to supply).
// Symlinks that resolve outside root are skipped rather than followed.
func Scan(ctx context.Context, root, ext string) (<-chan ScanResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, noteerr.IngestIO(root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, noteerr.IngestIO(root, err)
	}
	if !info.IsDir() {
		return nil, noteerr.IngestIO(root, fmt.Errorf("not a directory"))
	}

	out := make(chan ScanResult, 64)

	go func() {
		defer close(out)

		walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err != nil {
				out <- ScanResult{Path: path, Err: noteerr.IngestIO(path, err)}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				if escapes, escErr := symlinkEscapesRoot(absRoot, path); escErr != nil || escapes {
					return nil
				}
			}

			if d.IsDir() {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(path), ext) {
				return nil
			}

			rel, err := filepath.Rel(absRoot, path)
			if err != nil {
				out <- ScanResult{Path: path, Err: noteerr.IngestIO(path, err)}
				return nil
			}
			out <- ScanResult{Path: filepath.ToSlash(rel)}
			return nil
		})

		if walkErr != nil && walkErr != context.Canceled {
			out <- ScanResult{Err: noteerr.IngestIO(absRoot, walkErr)}
		}
	}()

	return out, nil
}

// symlinkEscapesRoot reports whether the symlink at path resolves to a
// target outside root.
func symlinkEscapesRoot(root, path string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return true, err
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return true, err
	}
	return strings.HasPrefix(rel, ".."), nil
}
