package ledger

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/Perafan18/chain-forge/blockchain"
	"github.com/Perafan18/chain-forge/chainid"
	"github.com/Perafan18/chain-forge/storage"
)

// memStore is an in-memory storage.Store for exercising the service without
// touching disk.
type memStore struct {
	mu     sync.Mutex
	chains map[string]map[int]*storage.BlockRecord
}

func newMemStore() *memStore {
	return &memStore{chains: make(map[string]map[int]*storage.BlockRecord)}
}

func (m *memStore) SaveBlock(chainID string, rec *storage.BlockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chains[chainID] == nil {
		m.chains[chainID] = make(map[int]*storage.BlockRecord)
	}
	clone := *rec
	m.chains[chainID][rec.Index] = &clone
	return nil
}

func (m *memStore) GetBlock(chainID string, index int) (*storage.BlockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blocks, ok := m.chains[chainID]
	if !ok {
		return nil, storage.ErrChainUnknown
	}
	rec, ok := blocks[index]
	if !ok {
		return nil, storage.ErrBlockNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *memStore) GetBlocks(chainID string) ([]*storage.BlockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blocks, ok := m.chains[chainID]
	if !ok {
		return nil, storage.ErrChainUnknown
	}
	recs := make([]*storage.BlockRecord, 0, len(blocks))
	for _, rec := range blocks {
		clone := *rec
		recs = append(recs, &clone)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Index < recs[j].Index })
	return recs, nil
}

func (m *memStore) ListChains() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.chains))
	for id := range m.chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) Close() error { return nil }

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	return New(store, Config{DefaultDifficulty: 1, MaxDifficulty: 10}), store
}

func TestCreateChainPersistsGenesis(t *testing.T) {
	svc, store := newTestService(t)

	info, err := svc.CreateChain()
	if err != nil {
		t.Fatalf("creating chain: %v", err)
	}
	if !chainid.Valid(info.ID) {
		t.Fatalf("chain id %q should validate", info.ID)
	}
	if info.Genesis.Index != 0 || info.Genesis.Data != blockchain.GenesisData {
		t.Fatalf("unexpected genesis block: %+v", info.Genesis)
	}

	recs, err := store.GetBlocks(info.ID)
	if err != nil {
		t.Fatalf("reading back genesis: %v", err)
	}
	if len(recs) != 1 || recs[0].Hash != info.Genesis.Hash {
		t.Fatalf("persisted genesis mismatch: %+v", recs)
	}
}

func TestAppendBlockRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	info, err := svc.CreateChain()
	if err != nil {
		t.Fatalf("creating chain: %v", err)
	}

	if _, err := svc.AppendBlock(info.ID, "", 1); !errors.Is(err, ErrEmptyData) {
		t.Fatalf("empty data: expected ErrEmptyData, got %v", err)
	}
	if _, err := svc.AppendBlock(info.ID, "data", 11); !errors.Is(err, ErrBadDifficulty) {
		t.Fatalf("difficulty 11: expected ErrBadDifficulty, got %v", err)
	}
	if _, err := svc.AppendBlock(info.ID, "data", -1); !errors.Is(err, ErrBadDifficulty) {
		t.Fatalf("difficulty -1: expected ErrBadDifficulty, got %v", err)
	}

	unknown, err := chainid.New()
	if err != nil {
		t.Fatalf("minting id: %v", err)
	}
	if _, err := svc.AppendBlock(unknown, "data", 1); !errors.Is(err, ErrChainNotFound) {
		t.Fatalf("unknown chain: expected ErrChainNotFound, got %v", err)
	}
}

func TestAppendBlockSubstitutesDefaultDifficulty(t *testing.T) {
	svc, _ := newTestService(t)
	info, err := svc.CreateChain()
	if err != nil {
		t.Fatalf("creating chain: %v", err)
	}

	block, err := svc.AppendBlock(info.ID, "data", 0)
	if err != nil {
		t.Fatalf("appending: %v", err)
	}
	if block.Difficulty != 1 {
		t.Fatalf("expected the configured default difficulty 1, got %d", block.Difficulty)
	}
	if !strings.HasPrefix(block.Hash, "0") {
		t.Fatalf("mined hash %q misses its target", block.Hash)
	}
}

func TestAppendBlockPersistsAndLinks(t *testing.T) {
	svc, store := newTestService(t)
	info, err := svc.CreateChain()
	if err != nil {
		t.Fatalf("creating chain: %v", err)
	}

	block, err := svc.AppendBlock(info.ID, "payload", 1)
	if err != nil {
		t.Fatalf("appending: %v", err)
	}
	if block.Index != 1 || block.PrevHash != info.Genesis.Hash {
		t.Fatalf("block not linked to genesis: %+v", block)
	}

	rec, err := store.GetBlock(info.ID, 1)
	if err != nil {
		t.Fatalf("reading back block: %v", err)
	}
	if rec.Hash != block.Hash || rec.Data != "payload" {
		t.Fatalf("persisted block mismatch: %+v", rec)
	}
}

func TestRehydratesFromStore(t *testing.T) {
	store := newMemStore()

	// Persist a chain through one service, then continue it from another
	// with an empty registry, as a process restart would.
	first := New(store, Config{DefaultDifficulty: 1})
	info, err := first.CreateChain()
	if err != nil {
		t.Fatalf("creating chain: %v", err)
	}
	tail, err := first.AppendBlock(info.ID, "before restart", 1)
	if err != nil {
		t.Fatalf("appending: %v", err)
	}

	second := New(store, Config{DefaultDifficulty: 1})
	valid, err := second.Validate(info.ID)
	if err != nil {
		t.Fatalf("validating rehydrated chain: %v", err)
	}
	if !valid {
		t.Fatalf("rehydrated chain should validate")
	}

	block, err := second.AppendBlock(info.ID, "after restart", 1)
	if err != nil {
		t.Fatalf("appending after restart: %v", err)
	}
	if block.Index != 2 || block.PrevHash != tail.Hash {
		t.Fatalf("append did not continue from the persisted tail: %+v", block)
	}
}

func TestGetBlockReadsStoreWithoutLoading(t *testing.T) {
	store := newMemStore()
	first := New(store, Config{})
	info, err := first.CreateChain()
	if err != nil {
		t.Fatalf("creating chain: %v", err)
	}

	second := New(store, Config{})
	block, err := second.GetBlock(info.ID, 0)
	if err != nil {
		t.Fatalf("getting block: %v", err)
	}
	if block.Data != blockchain.GenesisData {
		t.Fatalf("unexpected block: %+v", block)
	}
	if len(second.chains) != 0 {
		t.Fatalf("single block read should not rehydrate the whole chain")
	}

	if _, err := second.GetBlock(info.ID, 5); !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestValidateDetectsTamperAndFreezesAppends(t *testing.T) {
	svc, _ := newTestService(t)
	info, err := svc.CreateChain()
	if err != nil {
		t.Fatalf("creating chain: %v", err)
	}
	if _, err := svc.AppendBlock(info.ID, "honest", 1); err != nil {
		t.Fatalf("appending: %v", err)
	}

	blocks, err := svc.GetChain(info.ID)
	if err != nil {
		t.Fatalf("getting chain: %v", err)
	}
	blocks[1].Data = "TAMPERED"

	valid, err := svc.Validate(info.ID)
	if err != nil {
		t.Fatalf("validating: %v", err)
	}
	if valid {
		t.Fatalf("tampered chain should not validate")
	}

	if _, err := svc.AppendBlock(info.ID, "more", 1); !errors.Is(err, blockchain.ErrChainInvalid) {
		t.Fatalf("expected ErrChainInvalid, got %v", err)
	}
}

func TestListChains(t *testing.T) {
	svc, _ := newTestService(t)

	a, err := svc.CreateChain()
	if err != nil {
		t.Fatalf("creating chain: %v", err)
	}
	b, err := svc.CreateChain()
	if err != nil {
		t.Fatalf("creating chain: %v", err)
	}

	ids, err := svc.ListChains()
	if err != nil {
		t.Fatalf("listing chains: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 chains, got %v", ids)
	}
	seen := map[string]bool{ids[0]: true, ids[1]: true}
	if !seen[a.ID] || !seen[b.ID] {
		t.Fatalf("listing missed a chain: %v", ids)
	}
}
