package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	noteerr "github.com/noterank/noterank/internal/errors"
)

// packVector encodes a float32 slice as little-endian IEEE-754 bytes,
// dims*4 long, matching the wire-visible embedding blob format.
func packVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// unpackVector decodes a packed little-endian IEEE-754 blob back to float32.
func unpackVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// l2Normalize returns a unit-norm copy of v. A zero vector is returned
// unchanged (there is no direction to normalize to).
func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = f / norm
	}
	return out
}

// SaveEmbeddings writes (or replaces) embeddings for the given passage ids.
// Every vector is L2-normalized on write regardless of the caller's input,
// per the store's invariant that embeddings are always unit-norm.
func (s *Store) SaveEmbeddings(ctx context.Context, embeddings []Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings(chunk_id, model, dims, vec_blob) VALUES (?, ?, ?, ?)
		 ON CONFLICT(chunk_id) DO UPDATE SET model = excluded.model, dims = excluded.dims, vec_blob = excluded.vec_blob`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range embeddings {
		if e.Dims != len(e.Vector) {
			return noteerr.SearchDimensionMismatch(e.Dims, len(e.Vector))
		}
		unit := l2Normalize(e.Vector)
		if _, err := stmt.ExecContext(ctx, e.PassageID, e.Model, e.Dims, packVector(unit)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetEmbedding fetches one passage's embedding, returning (nil, nil) if absent.
func (s *Store) GetEmbedding(ctx context.Context, passageID int64) (*Embedding, error) {
	var e Embedding
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT chunk_id, model, dims, vec_blob FROM embeddings WHERE chunk_id = ?`, passageID,
	).Scan(&e.PassageID, &e.Model, &e.Dims, &blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(blob) != e.Dims*4 {
		return nil, noteerr.SearchDimensionMismatch(e.Dims*4, len(blob))
	}
	e.Vector = unpackVector(blob)
	return &e, nil
}

// GetAllEmbeddings loads every embedding in the store for the given model.
// Used to build the in-memory embedding matrix cache and to feed the
// clusterer.
func (s *Store) GetAllEmbeddings(ctx context.Context, model string) ([]Embedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, model, dims, vec_blob FROM embeddings WHERE model = ? ORDER BY chunk_id`, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		var e Embedding
		var blob []byte
		if err := rows.Scan(&e.PassageID, &e.Model, &e.Dims, &blob); err != nil {
			return nil, err
		}
		e.Vector = unpackVector(blob)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEmbeddingsForModel drops every embedding not written by the given
// model identifier, implementing the "invalidated when model id changes"
// lifecycle rule.
func (s *Store) DeleteEmbeddingsForModel(ctx context.Context, keepModel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE model != ?`, keepModel)
	return err
}
