package store

import (
	"context"
	"database/sql"
)

// ReplaceClusters atomically drops every cluster row for method and writes
// the new clusters and their membership, so a clustering run never leaves
// a mix of old and new rows for the same method.
func (s *Store) ReplaceClusters(ctx context.Context, method string, clusters []Cluster, members map[int64][]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	oldIDs, err := queryInt64Column(ctx, tx, `SELECT id FROM clusters WHERE method = ?`, method)
	if err != nil {
		return err
	}
	if len(oldIDs) > 0 {
		ph, args := intInClause(oldIDs)
		if _, err := tx.ExecContext(ctx, `DELETE FROM clusters WHERE id IN (`+ph+`)`, args...); err != nil {
			return err
		}
	}

	insertCluster, err := tx.PrepareContext(ctx,
		`INSERT INTO clusters(method, k, name, summary, size, centroid_blob) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertCluster.Close()

	insertMember, err := tx.PrepareContext(ctx,
		`INSERT INTO cluster_members(cluster_id, chunk_id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer insertMember.Close()

	for i, c := range clusters {
		res, err := insertCluster.ExecContext(ctx, method, c.K, c.Name, nullableString(c.Summary), c.Size, packVector(c.Centroid))
		if err != nil {
			return err
		}
		clusterID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, passageID := range members[int64(i)] {
			if _, err := insertMember.ExecContext(ctx, clusterID, passageID); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func queryInt64Column(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListClusters returns every persisted cluster, most-recent method only
// (callers pass the active method name).
func (s *Store) ListClusters(ctx context.Context, method string) ([]Cluster, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, k, name, summary, size, centroid_blob FROM clusters WHERE method = ? ORDER BY id`, method)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cluster
	for rows.Next() {
		c, err := scanClusterRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCluster fetches one cluster by id, returning (nil, nil) if absent.
func (s *Store) GetCluster(ctx context.Context, id int64) (*Cluster, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, method, k, name, summary, size, centroid_blob FROM clusters WHERE id = ?`, id)
	var c Cluster
	var summary sql.NullString
	var blob []byte
	if err := row.Scan(&c.ID, &c.Method, &c.K, &c.Name, &summary, &c.Size, &blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.Summary = summary.String
	c.Centroid = unpackVector(blob)
	return &c, nil
}

func scanClusterRow(rows *sql.Rows) (Cluster, error) {
	var c Cluster
	var summary sql.NullString
	var blob []byte
	if err := rows.Scan(&c.ID, &c.Method, &c.K, &c.Name, &summary, &c.Size, &blob); err != nil {
		return c, err
	}
	c.Summary = summary.String
	c.Centroid = unpackVector(blob)
	return c, nil
}

// ClusterOfPassage returns the id of the cluster containing passageID, or
// (0, false) if the passage is unclustered.
func (s *Store) ClusterOfPassage(ctx context.Context, passageID int64) (int64, bool, error) {
	var clusterID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT cluster_id FROM cluster_members WHERE chunk_id = ?`, passageID).Scan(&clusterID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return clusterID, true, nil
}

// ClusterMembers returns every passage id belonging to clusterID.
func (s *Store) ClusterMembers(ctx context.Context, clusterID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id FROM cluster_members WHERE cluster_id = ? ORDER BY chunk_id`, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
