package storage

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func engineConfig(t *testing.T, engine string) Config {
	t.Helper()
	dir := t.TempDir()

	switch engine {
	case EngineBadger:
		return Config{Engine: engine, Path: filepath.Join(dir, "badger")}
	case EngineBolt:
		return Config{Engine: engine, Path: filepath.Join(dir, "chains.db")}
	case EngineSQLite:
		return Config{Engine: engine, Path: filepath.Join(dir, "chains.sqlite")}
	default:
		t.Fatalf("unknown engine %q", engine)
		return Config{}
	}
}

func openTestStore(t *testing.T, engine string) Store {
	t.Helper()
	st, err := Open(engineConfig(t, engine))
	if err != nil {
		t.Fatalf("opening %s store: %v", engine, err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("closing %s store: %v", engine, err)
		}
	})
	return st
}

func forEachEngine(t *testing.T, fn func(t *testing.T, st Store)) {
	for _, engine := range []string{EngineBadger, EngineBolt, EngineSQLite} {
		engine := engine
		t.Run(engine, func(t *testing.T) {
			fn(t, openTestStore(t, engine))
		})
	}
}

func record(index int) *BlockRecord {
	return &BlockRecord{
		Index:      index,
		Data:       "payload " + string(rune('a'+index)),
		CreatedAt:  1700000000 + int64(index),
		PrevHash:   "prev",
		Nonce:      index * 7,
		Difficulty: 1,
		Hash:       "hash",
	}
}

func mustSave(t *testing.T, st Store, chainID string, rec *BlockRecord) {
	t.Helper()
	if err := st.SaveBlock(chainID, rec); err != nil {
		t.Fatalf("saving block %d: %v", rec.Index, err)
	}
}

func TestSaveAndGetBlock(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st Store) {
		want := record(3)
		mustSave(t, st, "alpha", want)

		got, err := st.GetBlock("alpha", 3)
		if err != nil {
			t.Fatalf("getting block: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("stored %+v, loaded %+v", want, got)
		}
	})
}

func TestGetBlocksAscendingOrder(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st Store) {
		// Saved out of order on purpose; reads must come back sorted.
		for _, index := range []int{2, 0, 3, 1} {
			mustSave(t, st, "alpha", record(index))
		}

		recs, err := st.GetBlocks("alpha")
		if err != nil {
			t.Fatalf("getting blocks: %v", err)
		}
		if len(recs) != 4 {
			t.Fatalf("expected 4 blocks, got %d", len(recs))
		}
		for i, rec := range recs {
			if rec.Index != i {
				t.Fatalf("position %d holds index %d", i, rec.Index)
			}
		}
	})
}

func TestNotFoundSentinels(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st Store) {
		if _, err := st.GetBlocks("ghost"); !errors.Is(err, ErrChainUnknown) {
			t.Fatalf("expected ErrChainUnknown, got %v", err)
		}
		if _, err := st.GetBlock("ghost", 0); !errors.Is(err, ErrChainUnknown) {
			t.Fatalf("expected ErrChainUnknown, got %v", err)
		}

		mustSave(t, st, "alpha", record(0))
		if _, err := st.GetBlock("alpha", 9); !errors.Is(err, ErrBlockNotFound) {
			t.Fatalf("expected ErrBlockNotFound, got %v", err)
		}
	})
}

func TestOverwriteSameIndex(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st Store) {
		mustSave(t, st, "alpha", record(0))

		changed := record(0)
		changed.Data = "rewritten"
		mustSave(t, st, "alpha", changed)

		got, err := st.GetBlock("alpha", 0)
		if err != nil {
			t.Fatalf("getting block: %v", err)
		}
		if got.Data != "rewritten" {
			t.Fatalf("expected the overwritten record, got %q", got.Data)
		}

		recs, err := st.GetBlocks("alpha")
		if err != nil {
			t.Fatalf("getting blocks: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("overwrite must not grow the chain, got %d blocks", len(recs))
		}
	})
}

func TestListChains(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st Store) {
		ids, err := st.ListChains()
		if err != nil {
			t.Fatalf("listing chains: %v", err)
		}
		if len(ids) != 0 {
			t.Fatalf("fresh store should list no chains, got %v", ids)
		}

		mustSave(t, st, "beta", record(0))
		mustSave(t, st, "alpha", record(0))
		mustSave(t, st, "alpha", record(1))

		ids, err = st.ListChains()
		if err != nil {
			t.Fatalf("listing chains: %v", err)
		}
		if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
			t.Fatalf("expected [alpha beta], got %v", ids)
		}
	})
}

func TestReopenKeepsBlocks(t *testing.T) {
	for _, engine := range []string{EngineBadger, EngineBolt, EngineSQLite} {
		engine := engine
		t.Run(engine, func(t *testing.T) {
			cfg := engineConfig(t, engine)

			st, err := Open(cfg)
			if err != nil {
				t.Fatalf("opening store: %v", err)
			}
			mustSave(t, st, "alpha", record(0))
			mustSave(t, st, "alpha", record(1))
			if err := st.Close(); err != nil {
				t.Fatalf("closing store: %v", err)
			}

			st, err = Open(cfg)
			if err != nil {
				t.Fatalf("reopening store: %v", err)
			}
			defer st.Close()

			recs, err := st.GetBlocks("alpha")
			if err != nil {
				t.Fatalf("getting blocks after reopen: %v", err)
			}
			if len(recs) != 2 || recs[1].Index != 1 {
				t.Fatalf("reopened store lost blocks: %+v", recs)
			}
		})
	}
}

func TestOpenRejectsUnknownEngine(t *testing.T) {
	if _, err := Open(Config{Engine: "leveldb", Path: t.TempDir()}); err == nil {
		t.Fatalf("unknown engine should be rejected")
	}
}
