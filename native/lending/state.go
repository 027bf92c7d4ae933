package lending

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"creditlend/crypto"
)

// engineState abstracts the persistence layer the lending engine mutates:
// positions, per-asset reserves, account balances and funder totals.
type engineState interface {
	GetPosition(addr crypto.Address, asset string) (*Position, error)
	PutPosition(pos *Position) error
	GetReserve(asset string) (*Reserve, error)
	PutReserve(r *Reserve) error
	GetBalance(addr crypto.Address, asset string) (*big.Int, error)
	PutBalance(addr crypto.Address, asset string, amount *big.Int) error
	GetFunderTotal(addr crypto.Address) (*big.Int, error)
	PutFunderTotal(addr crypto.Address, amount *big.Int) error
}

// kvStore is the subset of storage.KV the lending store depends on.
type kvStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	positionPrefix = []byte("lending/position/")
	reservePrefix  = []byte("lending/reserve/")
	balancePrefix  = []byte("lending/balance/")
	funderPrefix   = []byte("lending/funder/")
)

var errStoreNotConfigured = errors.New("lending: store not configured")

// NormalizeAsset canonicalizes asset symbols for keying and comparisons.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func positionKey(addr crypto.Address, asset string) []byte {
	return []byte(fmt.Sprintf("%s%x/%s", positionPrefix, addr.Bytes(), NormalizeAsset(asset)))
}

func reserveKey(asset string) []byte {
	return []byte(fmt.Sprintf("%s%s", reservePrefix, NormalizeAsset(asset)))
}

func balanceKey(addr crypto.Address, asset string) []byte {
	return []byte(fmt.Sprintf("%s%x/%s", balancePrefix, addr.Bytes(), NormalizeAsset(asset)))
}

func funderKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", funderPrefix, addr.Bytes()))
}

// Store persists lending state in a key-value backend.
type Store struct {
	kv kvStore
}

// NewStore constructs a store bound to the provided key-value backend.
func NewStore(kv kvStore) *Store {
	return &Store{kv: kv}
}

func (s *Store) GetPosition(addr crypto.Address, asset string) (*Position, error) {
	if s == nil || s.kv == nil {
		return nil, errStoreNotConfigured
	}
	var pos Position
	ok, err := s.kv.KVGet(positionKey(addr, asset), &pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	pos.EnsureDefaults()
	return &pos, nil
}

func (s *Store) PutPosition(pos *Position) error {
	if s == nil || s.kv == nil {
		return errStoreNotConfigured
	}
	if pos == nil {
		return errors.New("lending: nil position")
	}
	pos.EnsureDefaults()
	addr := crypto.NewAddress(crypto.UserPrefix, pos.Address[:])
	return s.kv.KVPut(positionKey(addr, pos.Asset), pos)
}

func (s *Store) GetReserve(asset string) (*Reserve, error) {
	if s == nil || s.kv == nil {
		return nil, errStoreNotConfigured
	}
	var reserve Reserve
	ok, err := s.kv.KVGet(reserveKey(asset), &reserve)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	reserve.EnsureDefaults()
	return &reserve, nil
}

func (s *Store) PutReserve(r *Reserve) error {
	if s == nil || s.kv == nil {
		return errStoreNotConfigured
	}
	if r == nil {
		return errors.New("lending: nil reserve")
	}
	r.EnsureDefaults()
	return s.kv.KVPut(reserveKey(r.Asset), r)
}

func (s *Store) GetBalance(addr crypto.Address, asset string) (*big.Int, error) {
	if s == nil || s.kv == nil {
		return nil, errStoreNotConfigured
	}
	var balance big.Int
	ok, err := s.kv.KVGet(balanceKey(addr, asset), &balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return &balance, nil
}

func (s *Store) PutBalance(addr crypto.Address, asset string, amount *big.Int) error {
	if s == nil || s.kv == nil {
		return errStoreNotConfigured
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	return s.kv.KVPut(balanceKey(addr, asset), amount)
}

func (s *Store) GetFunderTotal(addr crypto.Address) (*big.Int, error) {
	if s == nil || s.kv == nil {
		return nil, errStoreNotConfigured
	}
	var total big.Int
	ok, err := s.kv.KVGet(funderKey(addr), &total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return &total, nil
}

func (s *Store) PutFunderTotal(addr crypto.Address, amount *big.Int) error {
	if s == nil || s.kv == nil {
		return errStoreNotConfigured
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	return s.kv.KVPut(funderKey(addr), amount)
}
