package credit

import "math/big"

// Score bounds and weighting constants for the multi-factor credit model.
const (
	// ScoreFloor is the minimum attainable credit score.
	ScoreFloor uint64 = 300
	// ScoreCeiling is the maximum attainable credit score.
	ScoreCeiling uint64 = 850
	// ScoreRange spans the distance between floor and ceiling.
	ScoreRange = ScoreCeiling - ScoreFloor

	weightPayment   uint64 = 35
	weightSavings   uint64 = 30
	weightTenure    uint64 = 20
	weightDiversity uint64 = 10
	weightLiquidity uint64 = 5

	// paymentDecaySeconds is the window over which payment records lose
	// weight: 730 days.
	paymentDecaySeconds int64 = 730 * 24 * 60 * 60
	// neutralPaymentScore is applied when a user has no payment history.
	neutralPaymentScore uint64 = 50
	// tenureRampDays is the account age at which the tenure sub-score
	// saturates at 100.
	tenureRampDays int64 = 180
	// diversityTarget is the unique-asset count that earns a full
	// diversity sub-score.
	diversityTarget uint64 = 5
	// lateThresholdDays separates late payments from outright defaults.
	lateThresholdDays uint64 = 30
)

// PaymentStatus classifies a recorded repayment event.
type PaymentStatus uint8

const (
	PaymentOnTime PaymentStatus = iota
	PaymentLate
	PaymentDefault
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentOnTime:
		return "on_time"
	case PaymentLate:
		return "late"
	case PaymentDefault:
		return "default"
	default:
		return "unknown"
	}
}

// ClassifyPayment maps days-late onto a payment status: zero days is on
// time, under thirty days is late, anything beyond is a default.
func ClassifyPayment(daysLate uint64) PaymentStatus {
	switch {
	case daysLate == 0:
		return PaymentOnTime
	case daysLate < lateThresholdDays:
		return PaymentLate
	default:
		return PaymentDefault
	}
}

// PaymentRecord is an immutable entry in a user's repayment history.
type PaymentRecord struct {
	Timestamp int64
	Amount    *big.Int
	Status    PaymentStatus
	DaysLate  uint64
}

// Profile accumulates the behavioral inputs feeding a user's credit score.
// One profile exists per user, created lazily on the first authorized touch
// and never deleted.
type Profile struct {
	Address crypto20 `json:"address"`

	AccountCreationTime int64 `json:"accountCreationTime"`

	TotalPayments  uint64 `json:"totalPayments"`
	OnTimePayments uint64 `json:"onTimePayments"`
	LatePayments   uint64 `json:"latePayments"`
	Defaults       uint64 `json:"defaults"`

	TotalSavingsDeposited *big.Int `json:"totalSavingsDeposited"`
	TimeWeightedSavings   *big.Int `json:"timeWeightedSavings"`
	CurrentSavingsBalance *big.Int `json:"currentSavingsBalance"`
	LastSavingsUpdate     int64    `json:"lastSavingsUpdate"`

	UniqueAssetsUsed  uint64   `json:"uniqueAssetsUsed"`
	LiquidityProvided *big.Int `json:"liquidityProvided"`

	CachedScore     uint64 `json:"cachedScore"`
	LastScoreUpdate int64  `json:"lastScoreUpdate"`
}

// crypto20 is the raw 20-byte address payload persisted with the profile.
type crypto20 [20]byte

// EnsureDefaults populates nil big.Int fields so JSON round-trips are safe.
func (p *Profile) EnsureDefaults() {
	if p == nil {
		return
	}
	if p.TotalSavingsDeposited == nil {
		p.TotalSavingsDeposited = big.NewInt(0)
	}
	if p.TimeWeightedSavings == nil {
		p.TimeWeightedSavings = big.NewInt(0)
	}
	if p.CurrentSavingsBalance == nil {
		p.CurrentSavingsBalance = big.NewInt(0)
	}
	if p.LiquidityProvided == nil {
		p.LiquidityProvided = big.NewInt(0)
	}
	if p.CachedScore < ScoreFloor {
		p.CachedScore = ScoreFloor
	}
}

// Breakdown exposes the five weighted sub-scores plus the blended total for
// downstream consumers (metadata rendering, yield boosting).
type Breakdown struct {
	Payment   uint64 `json:"payment"`
	Savings   uint64 `json:"savings"`
	Tenure    uint64 `json:"tenure"`
	Diversity uint64 `json:"diversity"`
	Liquidity uint64 `json:"liquidity"`
	Total     uint64 `json:"total"`
}
