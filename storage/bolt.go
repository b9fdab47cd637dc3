package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
)

// tailKey marks the latest block index inside each chain bucket. Block keys
// are always 8 bytes, so the single-byte marker never collides with them.
var tailKey = []byte("l")

// BoltStore keeps one bucket per chain inside a single bolt file. Blocks
// are gob-encoded under their big-endian index.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the bolt file at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating bolt dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: opening bolt at %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveBlock(chainID string, rec *BlockRecord) error {
	encoded, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(chainID))
		if err != nil {
			return err
		}
		if err := b.Put(indexBytes(rec.Index), encoded); err != nil {
			return err
		}
		return b.Put(tailKey, indexBytes(rec.Index))
	})
}

func (s *BoltStore) GetBlock(chainID string, index int) (*BlockRecord, error) {
	var rec *BlockRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(chainID))
		if b == nil {
			return ErrChainUnknown
		}

		raw := b.Get(indexBytes(index))
		if raw == nil {
			return ErrBlockNotFound
		}

		var err error
		rec, err = decodeRecord(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BoltStore) GetBlocks(chainID string) ([]*BlockRecord, error) {
	var recs []*BlockRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(chainID))
		if b == nil {
			return ErrChainUnknown
		}

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if bytes.Equal(k, tailKey) {
				continue
			}
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *BoltStore) ListChains() ([]string, error) {
	var ids []string

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			ids = append(ids, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
