package storage

import "encoding/binary"

// Key namespaces used by the key-value engines. Block values live under
// block/<chainID>/<8-byte index>; a chain/<chainID> marker carries the tail
// index and makes chain listing a cheap prefix scan.
const (
	blockKeyPrefix = "block/"
	chainKeyPrefix = "chain/"
)

// indexBytes encodes a block index as 8 big-endian bytes so that
// lexicographic key order equals numeric index order.
func indexBytes(index int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(index))
	return buf[:]
}

func blockPrefix(chainID string) []byte {
	return []byte(blockKeyPrefix + chainID + "/")
}

func blockKey(chainID string, index int) []byte {
	return append(blockPrefix(chainID), indexBytes(index)...)
}

func chainKey(chainID string) []byte {
	return []byte(chainKeyPrefix + chainID)
}
