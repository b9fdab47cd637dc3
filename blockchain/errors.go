package blockchain

import "errors"

var (
	// ErrChainInvalid is returned by AddBlock when the chain no longer
	// passes its integrity check; the append is refused and the chain is
	// left untouched.
	ErrChainInvalid = errors.New("blockchain: chain integrity compromised")

	// ErrEmptyChain is returned by LastBlock on a chain with no blocks.
	// Chains built through New always hold at least the genesis block, so
	// this only surfaces on misassembled rehydrations.
	ErrEmptyChain = errors.New("blockchain: chain has no blocks")

	// ErrGenesisExists guards against seeding a genesis block twice.
	ErrGenesisExists = errors.New("blockchain: genesis block already exists")
)
