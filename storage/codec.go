package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// encodeRecord serializes a block record for the key-value engines.
func encodeRecord(rec *BlockRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("storage: encoding block %d: %w", rec.Index, err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(raw []byte) (*BlockRecord, error) {
	var rec BlockRecord
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("storage: decoding block: %w", err)
	}
	return &rec, nil
}
