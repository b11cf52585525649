package store

import (
	"context"
	"database/sql"
)

// SaveModule inserts or updates a module by name, returning its id.
func (s *Store) SaveModule(ctx context.Context, m Module) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO modules(name, description) VALUES (?, ?)`, m.Name, m.Description)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetFileModule assigns at most one module to filePath, replacing any prior
// assignment.
func (s *Store) SetFileModule(ctx context.Context, fm FileModule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_modules(file_path, module_id, score) VALUES (?, ?, ?)
		 ON CONFLICT(file_path) DO UPDATE SET module_id = excluded.module_id, score = excluded.score`,
		fm.FilePath, fm.ModuleID, fm.Score)
	return err
}

// GetFileModule returns a file's assigned module, (nil, nil) if unassigned.
func (s *Store) GetFileModule(ctx context.Context, filePath string) (*FileModule, error) {
	var fm FileModule
	err := s.db.QueryRowContext(ctx,
		`SELECT file_path, module_id, score FROM file_modules WHERE file_path = ?`, filePath,
	).Scan(&fm.FilePath, &fm.ModuleID, &fm.Score)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fm, nil
}
