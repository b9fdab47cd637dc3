package blockchain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const (
	// GenesisData is the payload of every chain's first block.
	GenesisData = "Genesis Block"

	// GenesisPrevHash is the previous-hash sentinel of the first block.
	GenesisPrevHash = "0"
)

// Block is a single data-bearing unit of a chain. Once mined it is treated
// as immutable; nothing recomputes or rewrites its fields afterwards.
type Block struct {
	Index      int    `json:"index"`
	Data       string `json:"data"`
	CreatedAt  int64  `json:"created_at"`
	PrevHash   string `json:"previous_hash"`
	Nonce      int    `json:"nonce"`
	Difficulty int    `json:"difficulty"`
	Hash       string `json:"hash"`
}

// NewBlock returns an unmined block. The timestamp is pinned on the first
// hash computation, the hash itself once mining succeeds.
func NewBlock(index int, data, prevHash string, difficulty int) *Block {
	return &Block{
		Index:      index,
		Data:       data,
		PrevHash:   prevHash,
		Difficulty: difficulty,
	}
}

// checksum digests the block fields with the given payload in place of
// b.Data. The preimage concatenates the fields without separators; two
// neighbouring fields can in theory blur into each other, but the format is
// kept for hash compatibility with ledgers already on disk.
func (b *Block) checksum(data string) string {
	if b.CreatedAt == 0 {
		b.CreatedAt = time.Now().Unix()
	}
	record := strconv.Itoa(b.Index) +
		strconv.FormatInt(b.CreatedAt, 10) +
		data +
		b.PrevHash +
		strconv.Itoa(b.Nonce)
	sum := sha256.Sum256([]byte(record))
	return hex.EncodeToString(sum[:])
}

// ComputeHash returns the SHA-256 digest of the block contents as lowercase
// hex. The stored Hash field is left untouched so validators can compare a
// fresh digest against it. The creation timestamp is fixed on the first
// call and reused by every later one, which keeps repeated hashing during
// mining free of timestamp drift.
func (b *Block) ComputeHash() string {
	return b.checksum(b.Data)
}

// Mine searches for the smallest nonce whose digest carries Difficulty
// leading zero characters, then stores and returns that digest. The search
// starts at the current nonce and blocks the calling goroutine until it
// succeeds; callers bound the runtime by bounding Difficulty.
func (b *Block) Mine() string {
	target := strings.Repeat("0", b.Difficulty)
	for {
		hash := b.ComputeHash()
		if strings.HasPrefix(hash, target) {
			b.Hash = hash
			return hash
		}
		b.Nonce++
	}
}

// IsHashValid reports whether the stored hash satisfies the block's own
// difficulty target. Difficulty zero (the genesis block) always passes.
func (b *Block) IsHashValid() bool {
	return strings.HasPrefix(b.Hash, strings.Repeat("0", b.Difficulty))
}

// IsDataValid recomputes the digest with the candidate payload in place of
// the stored one and reports whether it matches the stored hash. It lets a
// caller check a claimed payload against the block without trusting either
// side: a block whose data was rewritten in place fails for the new data,
// since the stored hash still covers the old payload.
func (b *Block) IsDataValid(data string) bool {
	return b.checksum(data) == b.Hash
}
