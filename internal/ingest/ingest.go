package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	noteerr "github.com/noterank/noterank/internal/errors"
	"github.com/noterank/noterank/internal/store"
)

// Options configures a build's ingestion phase.
type Options struct {
	Root      string
	Extension string // default ".md"
	Strict    bool   // when true, invalid UTF-8 fails the file instead of skipping it
}

// Result summarizes one ingestion run.
type Result struct {
	FilesScanned int
	FilesChanged int
	FilesSkipped int
	FilesFailed  int
	Passages     int
}

// Run walks Options.Root, chunks every matching file, and upserts changed
// files into s. Unchanged files (same content hash) are skipped entirely,
// including a skip of the chunk-and-reinsert work. Each file commits in its
// own transaction (store.ReplaceFile), so a failure partway through the
// corpus never leaves a half-indexed file.
func Run(ctx context.Context, s *store.Store, opts Options) (Result, error) {
	ext := opts.Extension
	if ext == "" {
		ext = ".md"
	}

	var res Result

	files, err := Scan(ctx, opts.Root, ext)
	if err != nil {
		return res, err
	}

	for sr := range files {
		select {
		case <-ctx.Done():
			return res, noteerr.RequestCancelled(ctx.Err())
		default:
		}

		if sr.Err != nil {
			res.FilesFailed++
			slog.Warn("ingest_scan_error", slog.String("error", sr.Err.Error()))
			continue
		}

		res.FilesScanned++
		changed, err := ingestOne(ctx, s, opts.Root, sr.Path, opts.Strict)
		if err != nil {
			res.FilesFailed++
			slog.Warn("ingest_file_error", slog.String("path", sr.Path), slog.String("error", err.Error()))
			continue
		}
		if changed == nil {
			res.FilesSkipped++
			continue
		}
		res.FilesChanged++
		res.Passages += len(changed)
	}

	return res, nil
}

// ingestOne ingests a single file, returning the inserted passages, or nil
// (not an error) if the file's content hash is unchanged.
func ingestOne(ctx context.Context, s *store.Store, root, relPath string, strict bool) ([]store.Passage, error) {
	absPath := filepath.Join(root, filepath.FromSlash(relPath))

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, noteerr.IngestIO(relPath, err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, noteerr.IngestIO(relPath, err)
	}

	if !utf8.Valid(raw) {
		if strict {
			return nil, noteerr.IngestDecode(relPath, nil)
		}
		slog.Warn("ingest_invalid_utf8_skipped", slog.String("path", relPath))
		return nil, nil
	}
	text := string(raw)

	hash := ContentHash(text)
	existing, err := s.GetFileByPath(ctx, relPath)
	if err != nil {
		return nil, noteerr.IngestIO(relPath, err)
	}
	if existing != nil && existing.Hash == hash {
		return nil, nil
	}

	chunks := Chunk(text)
	passages := ToStorePassages(relPath, chunks)

	f := store.File{
		Path:  relPath,
		MTime: info.ModTime().UTC(),
		Size:  info.Size(),
		Hash:  hash,
	}

	inserted, err := s.ReplaceFile(ctx, f, passages)
	if err != nil {
		return nil, noteerr.IngestParse(relPath, err)
	}
	return inserted, nil
}
