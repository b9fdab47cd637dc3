// Package ledger manages a set of named chains on top of a storage engine.
// It is the layer responsible for everything the core chain type leaves to
// its caller: persisting blocks as they are created, rebuilding chains from
// storage in index order, serializing access per chain and validating
// append input before the mining loop is entered.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Perafan18/chain-forge/blockchain"
	"github.com/Perafan18/chain-forge/chainid"
	"github.com/Perafan18/chain-forge/storage"
)

var (
	// ErrChainNotFound is returned for identifiers with no stored chain.
	ErrChainNotFound = errors.New("ledger: chain not found")

	// ErrBlockNotFound is returned for indexes beyond a chain's tail.
	ErrBlockNotFound = errors.New("ledger: block not found")

	// ErrEmptyData rejects appends with an empty payload.
	ErrEmptyData = errors.New("ledger: block data must not be empty")

	// ErrBadDifficulty rejects appends outside the configured range.
	ErrBadDifficulty = errors.New("ledger: difficulty out of range")
)

// Config bounds the difficulty accepted by AppendBlock. A zero value falls
// back to a default of 2 and a ceiling of 10.
type Config struct {
	DefaultDifficulty int
	MaxDifficulty     int
}

// managedChain pairs an in-memory chain with the mutex serializing every
// operation on it. Distinct chains mine concurrently; a single chain never
// does.
type managedChain struct {
	mu    sync.Mutex
	chain *blockchain.Chain
}

// Service owns the loaded chains and the store beneath them.
type Service struct {
	store storage.Store
	cfg   Config

	mu     sync.RWMutex
	chains map[string]*managedChain
}

// ChainInfo describes a freshly created chain.
type ChainInfo struct {
	ID      string
	Genesis *blockchain.Block
}

// New builds a service over the given store.
func New(store storage.Store, cfg Config) *Service {
	if cfg.DefaultDifficulty == 0 {
		cfg.DefaultDifficulty = 2
	}
	if cfg.MaxDifficulty == 0 {
		cfg.MaxDifficulty = 10
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		chains: make(map[string]*managedChain),
	}
}

// CreateChain constructs a chain, persists its genesis block and registers
// it under a freshly minted identifier.
func (s *Service) CreateChain() (*ChainInfo, error) {
	id, err := chainid.New()
	if err != nil {
		return nil, fmt.Errorf("ledger: minting chain id: %w", err)
	}

	chain, err := blockchain.New()
	if err != nil {
		return nil, err
	}

	genesis := chain.Blocks[0]
	if err := s.store.SaveBlock(id, blockToRecord(genesis)); err != nil {
		return nil, fmt.Errorf("ledger: persisting genesis: %w", err)
	}

	s.mu.Lock()
	s.chains[id] = &managedChain{chain: chain}
	s.mu.Unlock()

	return &ChainInfo{ID: id, Genesis: genesis}, nil
}

// AppendBlock validates the input, mines a block carrying data onto the
// chain and persists it. A zero difficulty means the caller left it out and
// the configured default is used instead. The call blocks for the duration
// of the mining loop and holds the chain's lock throughout, so concurrent
// appends to one chain queue up while other chains stay unaffected.
func (s *Service) AppendBlock(id, data string, difficulty int) (*blockchain.Block, error) {
	if data == "" {
		return nil, ErrEmptyData
	}
	if difficulty == 0 {
		difficulty = s.cfg.DefaultDifficulty
	}
	if difficulty < 1 || difficulty > s.cfg.MaxDifficulty {
		return nil, fmt.Errorf("%w: %d not in [1,%d]", ErrBadDifficulty, difficulty, s.cfg.MaxDifficulty)
	}

	mc, err := s.getChain(id)
	if err != nil {
		return nil, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	block, err := mc.chain.AddBlock(data, difficulty)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveBlock(id, blockToRecord(block)); err != nil {
		return nil, fmt.Errorf("ledger: persisting block %d: %w", block.Index, err)
	}
	return block, nil
}

// GetChain returns a snapshot of the chain's blocks in index order.
func (s *Service) GetChain(id string) ([]*blockchain.Block, error) {
	mc, err := s.getChain(id)
	if err != nil {
		return nil, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	blocks := make([]*blockchain.Block, len(mc.chain.Blocks))
	copy(blocks, mc.chain.Blocks)
	return blocks, nil
}

// GetBlock fetches a single block. Chains already in memory are read
// directly; otherwise the block comes from the store without forcing a
// full rehydration.
func (s *Service) GetBlock(id string, index int) (*blockchain.Block, error) {
	s.mu.RLock()
	mc, ok := s.chains[id]
	s.mu.RUnlock()

	if ok {
		mc.mu.Lock()
		defer mc.mu.Unlock()
		if index < 0 || index >= len(mc.chain.Blocks) {
			return nil, ErrBlockNotFound
		}
		return mc.chain.Blocks[index], nil
	}

	rec, err := s.store.GetBlock(id, index)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrChainUnknown):
			return nil, ErrChainNotFound
		case errors.Is(err, storage.ErrBlockNotFound):
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return recordToBlock(rec), nil
}

// Validate reports whether the chain passes its integrity check.
func (s *Service) Validate(id string) (bool, error) {
	mc, err := s.getChain(id)
	if err != nil {
		return false, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.chain.IsValid(), nil
}

// ListChains returns the identifiers of every persisted chain.
func (s *Service) ListChains() ([]string, error) {
	return s.store.ListChains()
}

// getChain returns the managed chain for id, rehydrating it from the store
// on first touch.
func (s *Service) getChain(id string) (*managedChain, error) {
	s.mu.RLock()
	mc, ok := s.chains[id]
	s.mu.RUnlock()
	if ok {
		return mc, nil
	}

	recs, err := s.store.GetBlocks(id)
	if err != nil {
		if errors.Is(err, storage.ErrChainUnknown) {
			return nil, ErrChainNotFound
		}
		return nil, err
	}

	blocks := make([]*blockchain.Block, 0, len(recs))
	for _, rec := range recs {
		blocks = append(blocks, recordToBlock(rec))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if mc, ok := s.chains[id]; ok {
		// Another caller rehydrated while we read the store.
		return mc, nil
	}
	mc = &managedChain{chain: blockchain.FromBlocks(blocks)}
	s.chains[id] = mc
	return mc, nil
}

func blockToRecord(b *blockchain.Block) *storage.BlockRecord {
	return &storage.BlockRecord{
		Index:      b.Index,
		Data:       b.Data,
		CreatedAt:  b.CreatedAt,
		PrevHash:   b.PrevHash,
		Nonce:      b.Nonce,
		Difficulty: b.Difficulty,
		Hash:       b.Hash,
	}
}

func recordToBlock(rec *storage.BlockRecord) *blockchain.Block {
	return &blockchain.Block{
		Index:      rec.Index,
		Data:       rec.Data,
		CreatedAt:  rec.CreatedAt,
		PrevHash:   rec.PrevHash,
		Nonce:      rec.Nonce,
		Difficulty: rec.Difficulty,
		Hash:       rec.Hash,
	}
}
