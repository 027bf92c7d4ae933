package lending

// Collateral ratio tiers, descending by score. Values are basis points where
// 10,000 = 100%. The resolver is total and deterministic: every score in
// [300, 850] maps to exactly one tier and scores below the lowest tier fall
// through to the most conservative ratio.
const (
	ratioTierExcellent uint64 = 11_000 // score >= 800
	ratioTierVeryGood  uint64 = 12_000 // score >= 750
	ratioTierGood      uint64 = 13_000 // score >= 700
	ratioTierFair      uint64 = 14_000 // score >= 650
	ratioTierPoor      uint64 = 15_000 // score >= 600
	ratioTierBase      uint64 = 20_000 // everything below
)

// RatioForScore maps a credit score onto the required collateral ratio in
// basis points. The resolved value is snapshotted into the position at
// deposit/borrow time; withdrawals and liquidations reuse the snapshot.
func RatioForScore(score uint64) uint64 {
	switch {
	case score >= 800:
		return ratioTierExcellent
	case score >= 750:
		return ratioTierVeryGood
	case score >= 700:
		return ratioTierGood
	case score >= 650:
		return ratioTierFair
	case score >= 600:
		return ratioTierPoor
	default:
		return ratioTierBase
	}
}
