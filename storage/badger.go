package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger"
)

// BadgerStore is the default engine. Blocks are gob-encoded values keyed by
// chain identifier and big-endian index; each chain additionally keeps a
// marker holding its tail index, written in the same transaction as the
// block it points at.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database rooted at path.
func OpenBadger(path string) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating badger dir: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Dir = path
	opts.ValueDir = path

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: opening badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) SaveBlock(chainID string, rec *BlockRecord) error {
	encoded, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(chainID, rec.Index), encoded); err != nil {
			return err
		}
		return txn.Set(chainKey(chainID), indexBytes(rec.Index))
	})
}

func (s *BadgerStore) GetBlock(chainID string, index int) (*BlockRecord, error) {
	var rec *BlockRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(chainID, index))
		if errors.Is(err, badger.ErrKeyNotFound) {
			if _, cerr := txn.Get(chainKey(chainID)); errors.Is(cerr, badger.ErrKeyNotFound) {
				return ErrChainUnknown
			}
			return ErrBlockNotFound
		}
		if err != nil {
			return err
		}

		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = decodeRecord(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BadgerStore) GetBlocks(chainID string) ([]*BlockRecord, error) {
	var recs []*BlockRecord

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := blockPrefix(chainID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decodeRecord(raw)
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
	if len(recs) == 0 {
		return nil, ErrChainUnknown
	}
	return recs, nil
}

func (s *BadgerStore) ListChains() ([]string, error) {
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(chainKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().KeyCopy(nil))
			ids = append(ids, strings.TrimPrefix(key, chainKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
