package api

import (
	"encoding/json"
	"net/http"

	"github.com/Perafan18/chain-forge/blockchain"
)

// AddBlockRequest is the body of POST /chains/{id}/blocks. A zero or absent
// difficulty asks the server for its configured default.
type AddBlockRequest struct {
	Data       string `json:"data"`
	Difficulty int    `json:"difficulty,omitempty"`
}

// BlockResponse is the wire shape of a single block.
type BlockResponse struct {
	Index      int    `json:"index"`
	Data       string `json:"data"`
	CreatedAt  int64  `json:"created_at"`
	PrevHash   string `json:"previous_hash"`
	Nonce      int    `json:"nonce"`
	Difficulty int    `json:"difficulty"`
	Hash       string `json:"hash"`
	HashValid  bool   `json:"hash_valid"`
}

type CreateChainResponse struct {
	ID      string        `json:"id"`
	Genesis BlockResponse `json:"genesis"`
}

type ChainResponse struct {
	ID     string          `json:"id"`
	Length int             `json:"length"`
	Blocks []BlockResponse `json:"blocks"`
}

type ChainListResponse struct {
	Chains []string `json:"chains"`
}

type ValidateResponse struct {
	ID    string `json:"id"`
	Valid bool   `json:"valid"`
}

type HealthResponse struct {
	OK   bool   `json:"ok"`
	Time string `json:"time"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func newBlockResponse(b *blockchain.Block) BlockResponse {
	return BlockResponse{
		Index:      b.Index,
		Data:       b.Data,
		CreatedAt:  b.CreatedAt,
		PrevHash:   b.PrevHash,
		Nonce:      b.Nonce,
		Difficulty: b.Difficulty,
		Hash:       b.Hash,
		HashValid:  b.IsHashValid(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
