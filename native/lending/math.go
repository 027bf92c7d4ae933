package lending

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	// healthScale is the fixed-point scale for health factors: 1e18 == 1.0.
	healthScale = mustBigInt("1000000000000000000")
	// maxHealthFactor is the sentinel returned for debt-free positions.
	maxHealthFactor = mustBigInt("115792089237316195423570985008687907853269984665640564039457584007913129639935")
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// healthFactor computes collateralValue * 10000 * 1e18 / (debtValue *
// ratioBps). A position is exactly at the boundary (1e18) when its collateral
// value equals debt value times the required ratio. Debt-free positions get
// the maximum sentinel.
func healthFactor(collateralValue, debtValue *big.Int, ratioBps uint64) *big.Int {
	if debtValue == nil || debtValue.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor)
	}
	if collateralValue == nil || collateralValue.Sign() == 0 || ratioBps == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(collateralValue, basisPoints)
	num.Mul(num, healthScale)
	den := new(big.Int).Mul(debtValue, new(big.Int).SetUint64(ratioBps))
	return num.Quo(num, den)
}

// maxBorrowValue computes the total debt value a collateral value can back at
// the given required ratio: collateralValue * 10000 / ratioBps.
func maxBorrowValue(collateralValue *big.Int, ratioBps uint64) *big.Int {
	if collateralValue == nil || collateralValue.Sign() <= 0 || ratioBps == 0 {
		return big.NewInt(0)
	}
	limit := new(big.Int).Mul(collateralValue, basisPoints)
	return limit.Quo(limit, new(big.Int).SetUint64(ratioBps))
}

// bonusValue scales a debt value by (1 + bonusBps/10000) to determine the
// collateral value a liquidator is owed.
func bonusValue(debtValue *big.Int, bonusBps uint64) *big.Int {
	if debtValue == nil || debtValue.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(debtValue, new(big.Int).SetUint64(10_000+bonusBps))
	return scaled.Quo(scaled, basisPoints)
}
