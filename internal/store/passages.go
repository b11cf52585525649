package store

import (
	"context"
	"database/sql"
)

// ReplaceFile atomically upserts a file's metadata and replaces all of its
// passages (and, by FK cascade, their embeddings) in a single transaction,
// then reindexes the new passages in the lexical index. Callers should only
// invoke this when the file's content hash has changed (or is new); the
// ingestor is responsible for that skip check.
func (s *Store) ReplaceFile(ctx context.Context, f File, passages []Passage) ([]Passage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO files(path, mtime, size, hash) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime, size = excluded.size, hash = excluded.hash`,
		f.Path, timeToUnix(f.MTime), f.Size, f.Hash,
	); err != nil {
		return nil, err
	}

	// Collect the old passage ids so the lexical index can be told which
	// postings to drop, then delete the rows. Cascades remove embeddings
	// and any cluster membership for those ids.
	oldIDs, err := s.passageIDsForFile(ctx, tx, f.Path)
	if err != nil {
		return nil, err
	}
	if len(oldIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, f.Path); err != nil {
			return nil, err
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks(file_path, heading, has_heading, ordinal, content, content_len)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	inserted := make([]Passage, len(passages))
	for i, p := range passages {
		res, err := stmt.ExecContext(ctx, f.Path, p.Heading, boolToInt(p.HasHeading), p.Ordinal, p.Content, p.ContentLen)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		p.ID = id
		p.FilePath = f.Path
		inserted[i] = p
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if len(oldIDs) > 0 {
		if err := s.lex.Delete(ctx, oldIDs); err != nil {
			return nil, err
		}
	}
	if len(inserted) > 0 {
		if err := s.lex.Index(ctx, inserted); err != nil {
			return nil, err
		}
	}

	return inserted, nil
}

func (s *Store) passageIDsForFile(ctx context.Context, tx *sql.Tx, filePath string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE file_path = ?`, filePath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetPassage fetches a single passage by id, returning (nil, nil) if absent.
func (s *Store) GetPassage(ctx context.Context, id int64) (*Passage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_path, heading, has_heading, ordinal, content, content_len FROM chunks WHERE id = ?`, id)
	p, err := scanPassage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetPassagesByFile returns a file's passages in ordinal order.
func (s *Store) GetPassagesByFile(ctx context.Context, filePath string) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path, heading, has_heading, ordinal, content, content_len
		 FROM chunks WHERE file_path = ? ORDER BY ordinal`, filePath)
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

// GetPassages batch-fetches passages by id, best-effort (missing ids are
// simply absent from the result, not an error).
func (s *Store) GetPassages(ctx context.Context, ids []int64) (map[int64]Passage, error) {
	out := make(map[int64]Passage, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders, args := intInClause(ids)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path, heading, has_heading, ordinal, content, content_len
		 FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p Passage
		var hasHeading int
		if err := rows.Scan(&p.ID, &p.FilePath, &p.Heading, &hasHeading, &p.Ordinal, &p.Content, &p.ContentLen); err != nil {
			return nil, err
		}
		p.HasHeading = hasHeading != 0
		out[p.ID] = p
	}
	return out, rows.Err()
}

func scanPassage(row *sql.Row) (*Passage, error) {
	var p Passage
	var hasHeading int
	if err := row.Scan(&p.ID, &p.FilePath, &p.Heading, &hasHeading, &p.Ordinal, &p.Content, &p.ContentLen); err != nil {
		return nil, err
	}
	p.HasHeading = hasHeading != 0
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intInClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	ph := make([]byte, 0, len(ids)*2)
	for i, id := range ids {
		if i > 0 {
			ph = append(ph, ',')
		}
		ph = append(ph, '?')
		args[i] = id
	}
	return string(ph), args
}
