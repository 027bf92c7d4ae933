package credit

import (
	"math/big"
	"sync"
	"time"

	"creditlend/crypto"
)

// cacheTTLSeconds is the freshness window for a cached score.
const cacheTTLSeconds int64 = 60 * 60

// ScoreEngine derives credit scores from accumulated behavioral state. Scores
// are cached per user for a short window; the recompute path is pure and can
// be exercised directly in tests without advancing the clock.
type ScoreEngine struct {
	mu    sync.RWMutex
	state state
	nowFn func() int64
}

// NewScoreEngine constructs a score engine over the shared credit state.
func NewScoreEngine(st state) *ScoreEngine {
	return &ScoreEngine{
		state: st,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the wall clock, primarily for deterministic tests.
func (e *ScoreEngine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// cacheFresh is the freshness predicate for a cached score entry.
func cacheFresh(lastUpdate, now int64) bool {
	return lastUpdate > 0 && now-lastUpdate < cacheTTLSeconds
}

// Score returns the user's credit score, serving the cached value while it is
// inside the freshness window and recomputing otherwise. Users without a
// profile receive the score of an empty profile rather than an error.
func (e *ScoreEngine) Score(user crypto.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	now := e.nowFn()

	e.mu.RLock()
	profile, err := e.state.GetProfile(user)
	if err != nil {
		e.mu.RUnlock()
		return 0, err
	}
	if profile != nil && cacheFresh(profile.LastScoreUpdate, now) {
		cached := profile.CachedScore
		e.mu.RUnlock()
		return cached, nil
	}
	e.mu.RUnlock()

	breakdown, err := e.refresh(user, now)
	if err != nil {
		return 0, err
	}
	return breakdown.Total, nil
}

// Breakdown recomputes and returns all five sub-scores plus the blended
// total. It refreshes the cache as a side effect for known users.
func (e *ScoreEngine) Breakdown(user crypto.Address) (Breakdown, error) {
	if e == nil || e.state == nil {
		return Breakdown{}, errNilState
	}
	return e.refresh(user, e.nowFn())
}

func (e *ScoreEngine) refresh(user crypto.Address, now int64) (Breakdown, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	profile, err := e.state.GetProfile(user)
	if err != nil {
		return Breakdown{}, err
	}
	if profile == nil {
		// Unknown users score as a brand new profile would; nothing is
		// persisted for them.
		empty := &Profile{AccountCreationTime: now, LastSavingsUpdate: now}
		empty.EnsureDefaults()
		return ComputeScore(empty, nil, now), nil
	}
	history, err := e.state.PaymentHistory(user)
	if err != nil {
		return Breakdown{}, err
	}
	breakdown := ComputeScore(profile, history, now)
	profile.CachedScore = breakdown.Total
	profile.LastScoreUpdate = now
	if err := e.state.PutProfile(profile); err != nil {
		return Breakdown{}, err
	}
	return breakdown, nil
}

// ComputeScore is the pure scoring function mapping accumulated behavior onto
// a score in [ScoreFloor, ScoreCeiling]. The result is in range by
// construction: every sub-score is capped at 100 and the weights sum to 100.
func ComputeScore(profile *Profile, history []PaymentRecord, now int64) Breakdown {
	b := Breakdown{
		Payment:   paymentScore(history, now),
		Savings:   savingsScore(profile, now),
		Tenure:    tenureScore(profile, now),
		Diversity: diversityScore(profile),
		Liquidity: liquidityScore(profile),
	}
	weighted := b.Payment*weightPayment +
		b.Savings*weightSavings +
		b.Tenure*weightTenure +
		b.Diversity*weightDiversity +
		b.Liquidity*weightLiquidity
	// weighted is in [0, 10000]: scale onto the 550-point band above the floor.
	b.Total = ScoreFloor + weighted*ScoreRange/10_000
	return b
}

// paymentScore is a time-decayed weighted average over the payment history.
// Recent records dominate; a record's weight decays linearly to a minimum of
// one over the 730-day window. On-time payments earn 100 points, late
// payments 80 and defaults 0. No history yields the neutral score of 50.
func paymentScore(history []PaymentRecord, now int64) uint64 {
	if len(history) == 0 {
		return neutralPaymentScore
	}
	var weightedSum, totalWeight uint64
	for i := range history {
		age := now - history[i].Timestamp
		if age < 0 {
			age = 0
		}
		weight := uint64(1)
		if age < paymentDecaySeconds {
			weight = uint64(paymentDecaySeconds - age)
		}
		points := uint64(0)
		switch history[i].Status {
		case PaymentOnTime:
			points = 100
		case PaymentLate:
			points = 80
		}
		weightedSum += points * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return neutralPaymentScore
	}
	return weightedSum / totalWeight
}

// savingsScore compares the time-weighted average balance over the account
// lifetime against the total amount ever deposited, with a 20% bonus for a
// currently positive balance.
func savingsScore(profile *Profile, now int64) uint64 {
	if profile == nil || profile.TotalSavingsDeposited == nil || profile.TotalSavingsDeposited.Sign() == 0 {
		return 0
	}
	lifetime := now - profile.AccountCreationTime
	if lifetime <= 0 {
		return 0
	}
	integral := new(big.Int)
	if profile.TimeWeightedSavings != nil {
		integral.Set(profile.TimeWeightedSavings)
	}
	if elapsed := now - profile.LastSavingsUpdate; elapsed > 0 && profile.CurrentSavingsBalance != nil && profile.CurrentSavingsBalance.Sign() > 0 {
		pending := new(big.Int).Mul(profile.CurrentSavingsBalance, big.NewInt(elapsed))
		integral.Add(integral, pending)
	}
	average := integral.Quo(integral, big.NewInt(lifetime))

	ratio := new(big.Int).Mul(average, big.NewInt(100))
	ratio.Quo(ratio, profile.TotalSavingsDeposited)
	score := ratio.Uint64()
	if !ratio.IsUint64() || score > 100 {
		score = 100
	}
	if profile.CurrentSavingsBalance != nil && profile.CurrentSavingsBalance.Sign() > 0 {
		score = score * 120 / 100
		if score > 100 {
			score = 100
		}
	}
	return score
}

// tenureScore ramps linearly from 0 to 100 over the first 180 days.
func tenureScore(profile *Profile, now int64) uint64 {
	if profile == nil || profile.AccountCreationTime <= 0 {
		return 0
	}
	ageDays := (now - profile.AccountCreationTime) / (24 * 60 * 60)
	if ageDays <= 0 {
		return 0
	}
	score := uint64(ageDays) * 100 / uint64(tenureRampDays)
	if score > 100 {
		score = 100
	}
	return score
}

func diversityScore(profile *Profile) uint64 {
	if profile == nil {
		return 0
	}
	assets := profile.UniqueAssetsUsed
	if assets > diversityTarget {
		assets = diversityTarget
	}
	return assets * 100 / diversityTarget
}

func liquidityScore(profile *Profile) uint64 {
	if profile == nil || profile.LiquidityProvided == nil || profile.LiquidityProvided.Sign() == 0 {
		return 0
	}
	return 100
}
