// Package storage persists chain blocks keyed by chain identifier and
// block index. Three interchangeable engines are provided: badger (the
// default), bolt and sqlite. Every engine returns blocks in ascending
// index order so a chain can be rebuilt exactly as it was appended.
package storage

import (
	"errors"
	"fmt"
)

// BlockRecord is the storage shape of a single block. It mirrors the chain
// entity field for field but keeps the engines free of any dependency on
// the in-memory types.
type BlockRecord struct {
	Index      int    `json:"index"`
	Data       string `json:"data"`
	CreatedAt  int64  `json:"created_at"`
	PrevHash   string `json:"previous_hash"`
	Nonce      int    `json:"nonce"`
	Difficulty int    `json:"difficulty"`
	Hash       string `json:"hash"`
}

// Store is the persistence contract shared by all engines.
type Store interface {
	// SaveBlock durably writes one block of the given chain. Writing the
	// same index twice overwrites the earlier record.
	SaveBlock(chainID string, rec *BlockRecord) error

	// GetBlock fetches a single block by index.
	GetBlock(chainID string, index int) (*BlockRecord, error)

	// GetBlocks returns every block of the chain in ascending index order.
	GetBlocks(chainID string) ([]*BlockRecord, error)

	// ListChains returns the identifiers of every stored chain.
	ListChains() ([]string, error)

	Close() error
}

var (
	// ErrBlockNotFound is returned when a chain holds no block at the
	// requested index.
	ErrBlockNotFound = errors.New("storage: block not found")

	// ErrChainUnknown is returned when no blocks exist under the given
	// chain identifier.
	ErrChainUnknown = errors.New("storage: chain unknown")
)

// Supported engine names.
const (
	EngineBadger = "badger"
	EngineBolt   = "bolt"
	EngineSQLite = "sqlite"
)

// Config selects and locates a storage engine.
type Config struct {
	Engine string
	Path   string
}

// Open constructs the engine named by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Engine {
	case EngineBadger:
		return OpenBadger(cfg.Path)
	case EngineBolt:
		return OpenBolt(cfg.Path)
	case EngineSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("storage: unknown engine %q", cfg.Engine)
	}
}
