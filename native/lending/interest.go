package lending

import "math/big"

const secondsPerYear = 31_536_000

// pendingInterest computes the simple, non-compounding interest owed on the
// position's principal for the elapsed time at the given annual rate:
//
//	interest = borrowed * rateBps * elapsed / (secondsPerYear * 10000)
func pendingInterest(pos *Position, rateBps uint64, now int64) *big.Int {
	if pos == nil || pos.BorrowedAmount == nil || pos.BorrowedAmount.Sign() == 0 {
		return big.NewInt(0)
	}
	elapsed := now - pos.LastUpdateTime
	if elapsed <= 0 || rateBps == 0 {
		return big.NewInt(0)
	}
	interest := new(big.Int).Mul(pos.BorrowedAmount, new(big.Int).SetUint64(rateBps))
	interest.Mul(interest, big.NewInt(elapsed))
	interest.Quo(interest, big.NewInt(secondsPerYear))
	interest.Quo(interest, basisPoints)
	return interest
}

// accrueInterest folds pending interest into the position and advances its
// clock. It must run before every state-mutating position operation so debt
// figures are current. Debt-free positions are left untouched; the clock is
// stamped when principal is first drawn.
func accrueInterest(pos *Position, rateBps uint64, now int64) {
	if pos == nil {
		return
	}
	pos.EnsureDefaults()
	if pos.BorrowedAmount.Sign() == 0 {
		return
	}
	interest := pendingInterest(pos, rateBps, now)
	if interest.Sign() > 0 {
		pos.AccruedInterest = new(big.Int).Add(pos.AccruedInterest, interest)
	}
	if now > pos.LastUpdateTime {
		pos.LastUpdateTime = now
	}
}

// simulateAccrual returns a copy of the position with pending interest
// applied, leaving the original untouched. Read-only queries use this to
// report current debt without mutating state.
func simulateAccrual(pos *Position, rateBps uint64, now int64) *Position {
	clone := pos.Clone()
	accrueInterest(clone, rateBps, now)
	return clone
}
