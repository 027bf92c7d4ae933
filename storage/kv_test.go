package storage

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBPutGet(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	_, err = db.Get([]byte("missing"))
	require.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestMemDBClonesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	original := []byte("value")
	require.NoError(t, db.Put([]byte("k"), original))
	original[0] = 'x'

	stored, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), stored)
}

func TestLevelDBRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ldb")
	db, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	_, err = db.Get([]byte("missing"))
	require.True(t, errors.Is(err, ErrKeyNotFound))
}

type record struct {
	Name    string   `json:"name"`
	Balance *big.Int `json:"balance"`
}

func TestKVTypedRoundTrip(t *testing.T) {
	kv := NewKV(NewMemDB())

	in := record{Name: "alice", Balance: big.NewInt(12345)}
	require.NoError(t, kv.KVPut([]byte("rec/alice"), in))

	var out record
	ok, err := kv.KVGet([]byte("rec/alice"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in.Name, out.Name)
	require.Zero(t, in.Balance.Cmp(out.Balance))
}

func TestKVMissingKey(t *testing.T) {
	kv := NewKV(NewMemDB())

	var out record
	ok, err := kv.KVGet([]byte("absent"), &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVNilOutChecksExistence(t *testing.T) {
	kv := NewKV(NewMemDB())
	require.NoError(t, kv.KVPut([]byte("flag"), true))

	ok, err := kv.KVGet([]byte("flag"), nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = kv.KVGet([]byte("other"), nil)
	require.NoError(t, err)
	require.False(t, ok)
}
