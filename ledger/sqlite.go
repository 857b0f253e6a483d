package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists one JSON document per instrument in a local SQLite
// file. Each Upsert is a single transactional statement, so a record is
// either fully written or untouched.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadAll() (map[string]*Record, error) {
	rows, err := s.db.Query(`SELECT instrument_id, doc FROM positions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]*Record{}
	for rows.Next() {
		var instrumentID, doc string
		if err := rows.Scan(&instrumentID, &doc); err != nil {
			return nil, err
		}
		rec := &Record{}
		if err := json.Unmarshal([]byte(doc), rec); err != nil {
			return nil, fmt.Errorf("decode record %q: %w", instrumentID, err)
		}
		out[instrumentID] = rec
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Upsert(r *Record) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", r.ID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO positions (instrument_id, doc, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(instrument_id) DO UPDATE SET
			doc = excluded.doc,
			updated_at = excluded.updated_at`,
		r.ID, string(doc), time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
