package store

import (
	"context"
	"database/sql"
	"strings"
)

// sqliteFTS implements InvertedIndex using a SQLite FTS5 external-content
// virtual table over the chunks table, kept in sync by triggers so deletes
// and updates to chunks never require a separate reindex step. This is the
// default lexical backend (single-file store requirement).
type sqliteFTS struct {
	db *sql.DB
}

var _ InvertedIndex = (*sqliteFTS)(nil)

func newSQLiteFTS(db *sql.DB) (*sqliteFTS, error) {
	f := &sqliteFTS{db: db}
	if err := f.initSchema(); err != nil {
		return nil, err
	}
	return f, nil
}

// initSchema creates an external-content FTS5 table over chunks plus
// triggers that keep it synchronized with insert/update/delete. remove_diacritics
// is pinned to 0 so Chinese text isn't corrupted by Latin-diacritic folding.
func (f *sqliteFTS) initSchema() error {
	schema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS passage_fts USING fts5(
		heading,
		file_path,
		content,
		content='chunks',
		content_rowid='id',
		tokenize='unicode61 remove_diacritics 0'
	);

	CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
		INSERT INTO passage_fts(rowid, heading, file_path, content)
		VALUES (new.id, new.heading, new.file_path, new.content);
	END;

	CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
		INSERT INTO passage_fts(passage_fts, rowid, heading, file_path, content)
		VALUES ('delete', old.id, old.heading, old.file_path, old.content);
	END;

	CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
		INSERT INTO passage_fts(passage_fts, rowid, heading, file_path, content)
		VALUES ('delete', old.id, old.heading, old.file_path, old.content);
		INSERT INTO passage_fts(rowid, heading, file_path, content)
		VALUES (new.id, new.heading, new.file_path, new.content);
	END;
	`
	_, err := f.db.Exec(schema)
	return err
}

// Index is a no-op: the triggers installed in initSchema keep passage_fts
// synchronized with chunks automatically on every insert made by
// Store.ReplaceFile. It exists so sqliteFTS satisfies InvertedIndex and so
// a future backend without trigger support has a natural seam.
func (f *sqliteFTS) Index(ctx context.Context, passages []Passage) error {
	return nil
}

// Delete is likewise a no-op here: deleting the backing chunks rows fires
// the chunks_ad trigger, which removes the corresponding postings.
func (f *sqliteFTS) Delete(ctx context.Context, passageIDs []int64) error {
	return nil
}

// Search runs a field-weighted FTS5 MATCH query and returns hits ordered
// best-first. The score used is the raw bm25() output, NOT negated: raw
// FTS5 bm25 values are already negative-log-like (closer to zero is
// better, weaker or more dispersed evidence pushes further negative), and
// downstream fusion depends on that raw scale. Field weights
// (heading >= file_path > content) are passed to bm25() directly rather
// than tuned at the app level.
func (f *sqliteFTS) Search(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []LexicalHit{}, nil
	}

	matchQuery := buildMatchQuery(q)
	if matchQuery == "" {
		return []LexicalHit{}, nil
	}

	rows, err := f.db.QueryContext(ctx, `
		SELECT rowid, bm25(passage_fts, 3.0, 2.0, 1.0) AS score
		FROM passage_fts
		WHERE passage_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`, matchQuery, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []LexicalHit{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.PassageID, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if hits == nil {
		hits = []LexicalHit{}
	}
	return hits, rows.Err()
}

// buildMatchQuery normalizes and escapes free text into an FTS5 MATCH
// expression: a disjunction of normalized tokens, with quoted phrases
// passed through as phrase matches, still OR'd against the other terms.
// Every term is individually quoted so punctuation in notes text can't
// break the query syntax.
func buildMatchQuery(raw string) string {
	var b strings.Builder
	i := 0
	n := len(raw)
	first := true
	writeTerm := func(term string) {
		if term == "" {
			return
		}
		if !first {
			b.WriteString(" OR ")
		}
		b.WriteString(`"` + strings.ReplaceAll(term, `"`, `""`) + `"`)
		first = false
	}
	for i < n {
		for i < n && raw[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}
		if raw[i] == '"' {
			end := strings.IndexByte(raw[i+1:], '"')
			var term string
			if end < 0 {
				term = normalizeText(raw[i+1:])
				i = n
			} else {
				term = normalizeText(raw[i+1 : i+1+end])
				i = i + 1 + end + 1
			}
			writeTerm(term)
			continue
		}
		start := i
		for i < n && raw[i] != ' ' {
			i++
		}
		writeTerm(normalizeText(raw[start:i]))
	}
	return b.String()
}

func (f *sqliteFTS) Close() error {
	return nil
}
