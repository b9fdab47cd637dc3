package blockchain

// Chain is an append-only sequence of blocks linked by hash. It owns its
// blocks outright and performs no locking and no I/O; callers that share a
// chain across goroutines serialize access themselves, and persistence
// happens around these methods, never inside them.
type Chain struct {
	Blocks []*Block
}

// New constructs a chain and seeds it with the genesis block. The genesis
// block is never mined: its hash is computed once at difficulty zero.
func New() (*Chain, error) {
	c := &Chain{}
	if err := c.createGenesis(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromBlocks rebuilds a chain from previously persisted blocks. The caller
// supplies them in index order starting at genesis; nothing is recomputed
// or verified here, IsValid does that on demand.
func FromBlocks(blocks []*Block) *Chain {
	return &Chain{Blocks: blocks}
}

func (c *Chain) createGenesis() error {
	if len(c.Blocks) > 0 {
		return ErrGenesisExists
	}
	genesis := NewBlock(0, GenesisData, GenesisPrevHash, 0)
	genesis.Hash = genesis.ComputeHash()
	c.Blocks = append(c.Blocks, genesis)
	return nil
}

// LastBlock returns the most recently appended block.
func (c *Chain) LastBlock() (*Block, error) {
	if len(c.Blocks) == 0 {
		return nil, ErrEmptyChain
	}
	return c.Blocks[len(c.Blocks)-1], nil
}

// IsValid walks every adjacent pair of blocks and verifies the hash link,
// the stored hash against a freshly recomputed digest, and the proof of
// work. It stops at the first broken pair. A chain holding only the
// genesis block is vacuously valid.
func (c *Chain) IsValid() bool {
	for i := 1; i < len(c.Blocks); i++ {
		prev := c.Blocks[i-1]
		curr := c.Blocks[i]

		if curr.PrevHash != prev.Hash {
			return false
		}
		if curr.Hash != curr.ComputeHash() {
			return false
		}
		if !curr.IsHashValid() {
			return false
		}
	}
	return true
}

// AddBlock mines a block carrying data at the given difficulty and appends
// it to the chain. The whole chain is integrity-checked first; a chain that
// fails the check is frozen for appends (reads stay possible) and the call
// returns ErrChainInvalid with the chain unchanged. Mining blocks until a
// qualifying nonce is found and never fails on its own.
func (c *Chain) AddBlock(data string, difficulty int) (*Block, error) {
	if !c.IsValid() {
		return nil, ErrChainInvalid
	}

	last, err := c.LastBlock()
	if err != nil {
		return nil, err
	}

	block := NewBlock(last.Index+1, data, last.Hash, difficulty)
	block.Mine()

	c.Blocks = append(c.Blocks, block)
	return block, nil
}
