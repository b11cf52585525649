package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeCorpusHash derives a single digest over every tracked file's
// (path, content hash), sorted by path for determinism. The embed build
// writes this under StateKeyCorpusHash so the clusterer can derive a
// reproducible RNG seed from it.
func (s *Store) ComputeCorpusHash(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, hash FROM files ORDER BY path`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	h := sha256.New()
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return "", err
		}
		h.Write([]byte(path))
		h.Write([]byte{0})
		h.Write([]byte(hash))
		h.Write([]byte{0})
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PassagesMissingEmbedding returns every passage that has no embedding row
// for model, ordered by id. Used by the embed build to resume after an
// interruption without re-embedding already-completed passages.
func (s *Store) PassagesMissingEmbedding(ctx context.Context, model string) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.file_path, c.heading, c.has_heading, c.ordinal, c.content, c.content_len
		FROM chunks c
		LEFT JOIN embeddings e ON e.chunk_id = c.id AND e.model = ?
		WHERE e.chunk_id IS NULL
		ORDER BY c.id`, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Passage
	for rows.Next() {
		var p Passage
		var hasHeading int
		if err := rows.Scan(&p.ID, &p.FilePath, &p.Heading, &hasHeading, &p.Ordinal, &p.Content, &p.ContentLen); err != nil {
			return nil, err
		}
		p.HasHeading = hasHeading != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPassages returns the total number of persisted passages.
func (s *Store) CountPassages(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}
