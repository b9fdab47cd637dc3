package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps every chain in a single blocks table keyed by
// (chain_id, index). The index column is a reserved word in SQLite and is
// quoted throughout.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: opening sqlite at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("storage: pinging sqlite: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("storage: creating tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS blocks (
            chain_id      TEXT NOT NULL,
            "index"       INTEGER NOT NULL,
            data          TEXT NOT NULL,
            created_at    INTEGER NOT NULL,
            previous_hash TEXT NOT NULL,
            nonce         INTEGER NOT NULL,
            difficulty    INTEGER NOT NULL,
            hash          TEXT NOT NULL,
            PRIMARY KEY (chain_id, "index")
        )
    `)
	return err
}

func (s *SQLiteStore) SaveBlock(chainID string, rec *BlockRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT OR REPLACE INTO blocks
            (chain_id, "index", data, created_at, previous_hash, nonce, difficulty, hash)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, chainID, rec.Index, rec.Data, rec.CreatedAt, rec.PrevHash, rec.Nonce, rec.Difficulty, rec.Hash)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetBlock(chainID string, index int) (*BlockRecord, error) {
	var rec BlockRecord
	err := s.db.QueryRow(`
        SELECT "index", data, created_at, previous_hash, nonce, difficulty, hash
        FROM blocks
        WHERE chain_id = ? AND "index" = ?
    `, chainID, index).Scan(
		&rec.Index,
		&rec.Data,
		&rec.CreatedAt,
		&rec.PrevHash,
		&rec.Nonce,
		&rec.Difficulty,
		&rec.Hash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		known, kerr := s.chainExists(chainID)
		if kerr != nil {
			return nil, kerr
		}
		if !known {
			return nil, ErrChainUnknown
		}
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) GetBlocks(chainID string) ([]*BlockRecord, error) {
	rows, err := s.db.Query(`
        SELECT "index", data, created_at, previous_hash, nonce, difficulty, hash
        FROM blocks
        WHERE chain_id = ?
        ORDER BY "index"
    `, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*BlockRecord
	for rows.Next() {
		var rec BlockRecord
		if err := rows.Scan(
			&rec.Index,
			&rec.Data,
			&rec.CreatedAt,
			&rec.PrevHash,
			&rec.Nonce,
			&rec.Difficulty,
			&rec.Hash,
		); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrChainUnknown
	}
	return recs, nil
}

func (s *SQLiteStore) ListChains() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT chain_id FROM blocks ORDER BY chain_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) chainExists(chainID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM blocks WHERE chain_id = ? LIMIT 1`, chainID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
