package credit

import (
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"creditlend/crypto"
	"creditlend/native/common"
)

const moduleName = "credit"

var (
	errNilState      = errors.New("credit: state not configured")
	errUnauthorized  = errors.New("credit: caller not authorized")
	errInvalidAmount = errors.New("credit: amount must not be negative")
	errEmptyAsset    = errors.New("credit: asset identifier required")
)

// AuthorizationPolicy restricts which caller identities may feed behavioral
// data into the accumulator.
type AuthorizationPolicy interface {
	Allowed(caller crypto.Address) bool
}

// AllowList is the default AuthorizationPolicy: an explicit set of permitted
// caller addresses managed by an administrative role.
type AllowList struct {
	mu      sync.RWMutex
	callers map[[20]byte]struct{}
}

// NewAllowList constructs an empty allow list.
func NewAllowList() *AllowList {
	return &AllowList{callers: make(map[[20]byte]struct{})}
}

func key20(addr crypto.Address) [20]byte {
	var k [20]byte
	copy(k[:], addr.Bytes())
	return k
}

// Grant admits a caller.
func (l *AllowList) Grant(caller crypto.Address) {
	if l == nil || caller.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callers[key20(caller)] = struct{}{}
}

// Revoke removes a caller.
func (l *AllowList) Revoke(caller crypto.Address) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.callers, key20(caller))
}

// Allowed reports whether the caller may mutate credit state.
func (l *AllowList) Allowed(caller crypto.Address) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.callers[key20(caller)]
	return ok
}

// Accumulator is the per-user behavioral ledger. Every mutating operation is
// gated by the authorization policy and is safe to replay for the same
// logical event.
type Accumulator struct {
	state  state
	policy AuthorizationPolicy
	pauses common.PauseView
	nowFn  func() int64
}

// NewAccumulator constructs an accumulator bound to its persistence layer and
// authorization policy.
func NewAccumulator(st state, policy AuthorizationPolicy) *Accumulator {
	return &Accumulator{
		state:  st,
		policy: policy,
		nowFn:  func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the wall clock, primarily for deterministic tests.
func (a *Accumulator) SetNowFunc(now func() int64) {
	if a == nil {
		return
	}
	if now == nil {
		a.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	a.nowFn = now
}

// SetPauses wires the governance pause switch.
func (a *Accumulator) SetPauses(p common.PauseView) {
	if a == nil {
		return
	}
	a.pauses = p
}

func (a *Accumulator) guard(caller crypto.Address) error {
	if a == nil || a.state == nil {
		return errNilState
	}
	if err := common.Guard(a.pauses, moduleName); err != nil {
		return err
	}
	if a.policy == nil || !a.policy.Allowed(caller) {
		return errUnauthorized
	}
	return nil
}

// ensureProfile loads the user's profile, creating it on first touch.
func (a *Accumulator) ensureProfile(user crypto.Address) (*Profile, error) {
	profile, err := a.state.GetProfile(user)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}
	now := a.nowFn()
	profile = &Profile{
		AccountCreationTime: now,
		LastSavingsUpdate:   now,
		CachedScore:         ScoreFloor,
	}
	copy(profile.Address[:], user.Bytes())
	profile.EnsureDefaults()
	if err := a.state.PutProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Initialize creates the user's profile if it does not already exist. It is a
// no-op for known users.
func (a *Accumulator) Initialize(caller, user crypto.Address) error {
	if err := a.guard(caller); err != nil {
		return err
	}
	_, err := a.ensureProfile(user)
	return err
}

// RecordPayment appends a repayment event to the user's history. Zero days
// late counts as on time, under thirty days as late, anything beyond as a
// default.
func (a *Accumulator) RecordPayment(caller, user crypto.Address, amount *big.Int, daysLate uint64) error {
	if err := a.guard(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	profile, err := a.ensureProfile(user)
	if err != nil {
		return err
	}
	status := ClassifyPayment(daysLate)
	rec := PaymentRecord{
		Timestamp: a.nowFn(),
		Amount:    new(big.Int).Set(amount),
		Status:    status,
		DaysLate:  daysLate,
	}
	if err := a.state.AppendPayment(user, rec); err != nil {
		return err
	}
	profile.TotalPayments++
	switch status {
	case PaymentOnTime:
		profile.OnTimePayments++
	case PaymentLate:
		profile.LatePayments++
	default:
		profile.Defaults++
	}
	return a.state.PutProfile(profile)
}

// UpdateSavings folds the elapsed time at the previous balance into the
// time-weighted integral before overwriting the current balance.
func (a *Accumulator) UpdateSavings(caller, user crypto.Address, newBalance, depositDelta *big.Int) error {
	if err := a.guard(caller); err != nil {
		return err
	}
	if newBalance == nil || newBalance.Sign() < 0 {
		return errInvalidAmount
	}
	if depositDelta == nil || depositDelta.Sign() < 0 {
		return errInvalidAmount
	}
	profile, err := a.ensureProfile(user)
	if err != nil {
		return err
	}
	now := a.nowFn()
	if elapsed := now - profile.LastSavingsUpdate; elapsed > 0 && profile.CurrentSavingsBalance.Sign() > 0 {
		weighted := new(big.Int).Mul(profile.CurrentSavingsBalance, big.NewInt(elapsed))
		profile.TimeWeightedSavings = new(big.Int).Add(profile.TimeWeightedSavings, weighted)
	}
	profile.CurrentSavingsBalance = new(big.Int).Set(newBalance)
	profile.TotalSavingsDeposited = new(big.Int).Add(profile.TotalSavingsDeposited, depositDelta)
	profile.LastSavingsUpdate = now
	return a.state.PutProfile(profile)
}

// TrackAssetUsage counts the first use of each distinct asset by the user.
// Repeated calls for the same (user, asset) pair are no-ops.
func (a *Accumulator) TrackAssetUsage(caller, user crypto.Address, asset string) error {
	if err := a.guard(caller); err != nil {
		return err
	}
	if strings.TrimSpace(asset) == "" {
		return errEmptyAsset
	}
	profile, err := a.ensureProfile(user)
	if err != nil {
		return err
	}
	seen, err := a.state.HasAssetUse(user, asset)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	if err := a.state.PutAssetUse(user, asset); err != nil {
		return err
	}
	profile.UniqueAssetsUsed++
	return a.state.PutProfile(profile)
}

// SetLiquidityProvided overwrites the liquidity-provision figure for the user.
func (a *Accumulator) SetLiquidityProvided(caller, user crypto.Address, amount *big.Int) error {
	if err := a.guard(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	profile, err := a.ensureProfile(user)
	if err != nil {
		return err
	}
	profile.LiquidityProvided = new(big.Int).Set(amount)
	return a.state.PutProfile(profile)
}
