package storage

import (
	"encoding/json"
	"errors"
)

// KV layers a JSON codec over a raw Database so module state managers can
// persist typed records under prefixed keys.
type KV struct {
	db Database
}

// NewKV wraps the provided database.
func NewKV(db Database) *KV {
	return &KV{db: db}
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (kv *KV) KVGet(key []byte, out interface{}) (bool, error) {
	if kv == nil || kv.db == nil {
		return false, errors.New("storage: kv not configured")
	}
	raw, err := kv.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVPut encodes value as JSON and stores it under key.
func (kv *KV) KVPut(key []byte, value interface{}) error {
	if kv == nil || kv.db == nil {
		return errors.New("storage: kv not configured")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return kv.db.Put(key, raw)
}
