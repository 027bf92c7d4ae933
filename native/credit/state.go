package credit

import (
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"creditlend/crypto"
)

// state abstracts the subset of persistence functionality required by the
// credit accumulator and score engine.
type state interface {
	GetProfile(addr crypto.Address) (*Profile, error)
	PutProfile(p *Profile) error
	PaymentHistory(addr crypto.Address) ([]PaymentRecord, error)
	AppendPayment(addr crypto.Address, rec PaymentRecord) error
	HasAssetUse(addr crypto.Address, asset string) (bool, error)
	PutAssetUse(addr crypto.Address, asset string) error
}

// kvStore is the subset of storage.KV the ledger depends on.
type kvStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	profilePrefix  = []byte("credit/profile/")
	paymentsPrefix = []byte("credit/payments/")
	assetUsePrefix = []byte("credit/assetuse/")
)

var errStoreNotConfigured = errors.New("credit: store not configured")

func profileKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", profilePrefix, addr.Bytes()))
}

func paymentsKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", paymentsPrefix, addr.Bytes()))
}

func assetUseKey(addr crypto.Address, asset string) []byte {
	normalized := strings.ToUpper(strings.TrimSpace(asset))
	digest := ethcrypto.Keccak256([]byte(normalized))
	return []byte(fmt.Sprintf("%s%x/%x", assetUsePrefix, addr.Bytes(), digest))
}

// Store persists credit profiles, payment histories and asset-usage markers
// in a key-value backend.
type Store struct {
	kv kvStore
}

// NewStore constructs a store bound to the provided key-value backend.
func NewStore(kv kvStore) *Store {
	return &Store{kv: kv}
}

func (s *Store) GetProfile(addr crypto.Address) (*Profile, error) {
	if s == nil || s.kv == nil {
		return nil, errStoreNotConfigured
	}
	var profile Profile
	ok, err := s.kv.KVGet(profileKey(addr), &profile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	profile.EnsureDefaults()
	return &profile, nil
}

func (s *Store) PutProfile(p *Profile) error {
	if s == nil || s.kv == nil {
		return errStoreNotConfigured
	}
	if p == nil {
		return errors.New("credit: nil profile")
	}
	p.EnsureDefaults()
	addr := crypto.NewAddress(crypto.UserPrefix, p.Address[:])
	return s.kv.KVPut(profileKey(addr), p)
}

func (s *Store) PaymentHistory(addr crypto.Address) ([]PaymentRecord, error) {
	if s == nil || s.kv == nil {
		return nil, errStoreNotConfigured
	}
	var history []PaymentRecord
	if _, err := s.kv.KVGet(paymentsKey(addr), &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) AppendPayment(addr crypto.Address, rec PaymentRecord) error {
	if s == nil || s.kv == nil {
		return errStoreNotConfigured
	}
	history, err := s.PaymentHistory(addr)
	if err != nil {
		return err
	}
	history = append(history, rec)
	return s.kv.KVPut(paymentsKey(addr), history)
}

func (s *Store) HasAssetUse(addr crypto.Address, asset string) (bool, error) {
	if s == nil || s.kv == nil {
		return false, errStoreNotConfigured
	}
	return s.kv.KVGet(assetUseKey(addr, asset), nil)
}

func (s *Store) PutAssetUse(addr crypto.Address, asset string) error {
	if s == nil || s.kv == nil {
		return errStoreNotConfigured
	}
	return s.kv.KVPut(assetUseKey(addr, asset), true)
}
