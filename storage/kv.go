package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KVWrite is one RLP-encoded write. A nil Value deletes the key.
type KVWrite struct {
	Key   []byte
	Value interface{}
}

// KV layers RLP record encoding over a Database.
type KV struct {
	db Database
}

// NewKV wraps db.
func NewKV(db Database) *KV {
	return &KV{db: db}
}

// KVGet decodes the record under key into out. It reports false when the key is absent.
func (k *KV) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := k.db.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVPut encodes value and stores it under key.
func (k *KV) KVPut(key []byte, value interface{}) error {
	return k.KVWrite([]KVWrite{{Key: key, Value: value}})
}

// KVWrite encodes every write and commits them in one atomic batch.
func (k *KV) KVWrite(writes []KVWrite) error {
	ops := make([]Op, 0, len(writes))
	for _, w := range writes {
		if len(w.Key) == 0 {
			return fmt.Errorf("kv: key must not be empty")
		}
		if w.Value == nil {
			ops = append(ops, Op{Key: w.Key, Delete: true})
			continue
		}
		encoded, err := rlp.EncodeToBytes(w.Value)
		if err != nil {
			return fmt.Errorf("kv: encode %q: %w", w.Key, err)
		}
		ops = append(ops, Op{Key: w.Key, Value: encoded})
	}
	return k.db.Write(ops)
}
