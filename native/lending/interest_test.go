package lending

import (
	"math/big"
	"testing"
)

func TestPendingInterestSimpleRate(t *testing.T) {
	pos := &Position{
		BorrowedAmount: big.NewInt(5000),
		LastUpdateTime: 0,
	}
	pos.EnsureDefaults()

	interest := pendingInterest(pos, 500, secondsPerYear)
	if interest.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("expected 250 over a year at 5%%, got %s", interest)
	}

	half := pendingInterest(pos, 500, secondsPerYear/2)
	if half.Cmp(big.NewInt(125)) != 0 {
		t.Fatalf("expected 125 over half a year, got %s", half)
	}
}

func TestPendingInterestEdgeCases(t *testing.T) {
	pos := &Position{BorrowedAmount: big.NewInt(5000), LastUpdateTime: 100}
	pos.EnsureDefaults()

	if interest := pendingInterest(pos, 0, 200); interest.Sign() != 0 {
		t.Fatalf("zero rate must accrue nothing, got %s", interest)
	}
	if interest := pendingInterest(pos, 500, 100); interest.Sign() != 0 {
		t.Fatalf("zero elapsed time must accrue nothing, got %s", interest)
	}
	if interest := pendingInterest(pos, 500, 50); interest.Sign() != 0 {
		t.Fatalf("clock going backwards must accrue nothing, got %s", interest)
	}

	idle := &Position{BorrowedAmount: big.NewInt(0), LastUpdateTime: 0}
	idle.EnsureDefaults()
	if interest := pendingInterest(idle, 500, secondsPerYear); interest.Sign() != 0 {
		t.Fatalf("debt-free position must accrue nothing, got %s", interest)
	}
}

func TestAccrueInterestAdvancesClock(t *testing.T) {
	pos := &Position{BorrowedAmount: big.NewInt(5000), LastUpdateTime: 0}
	pos.EnsureDefaults()

	accrueInterest(pos, 500, secondsPerYear)
	if pos.AccruedInterest.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("expected accrued 250, got %s", pos.AccruedInterest)
	}
	if pos.LastUpdateTime != secondsPerYear {
		t.Fatalf("expected clock advanced to %d, got %d", secondsPerYear, pos.LastUpdateTime)
	}

	// Re-accruing at the same instant adds nothing.
	accrueInterest(pos, 500, secondsPerYear)
	if pos.AccruedInterest.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("expected no double accrual, got %s", pos.AccruedInterest)
	}
}

func TestAccrueInterestIgnoresDebtFreePositions(t *testing.T) {
	pos := &Position{
		CollateralAmount: big.NewInt(10_000),
		BorrowedAmount:   big.NewInt(0),
		LastUpdateTime:   1_000,
	}
	pos.EnsureDefaults()

	accrueInterest(pos, 500, 1_000+secondsPerYear)
	if pos.AccruedInterest.Sign() != 0 {
		t.Fatalf("debt-free position must accrue nothing, got %s", pos.AccruedInterest)
	}
	if pos.LastUpdateTime != 1_000 {
		t.Fatalf("debt-free accrual must not touch the clock, got %d", pos.LastUpdateTime)
	}
}

func TestSimulateAccrualLeavesOriginalUntouched(t *testing.T) {
	pos := &Position{BorrowedAmount: big.NewInt(5000), LastUpdateTime: 0}
	pos.EnsureDefaults()

	clone := simulateAccrual(pos, 500, secondsPerYear)
	if clone.AccruedInterest.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("expected clone accrued 250, got %s", clone.AccruedInterest)
	}
	if pos.AccruedInterest.Sign() != 0 {
		t.Fatalf("original must stay untouched, got %s", pos.AccruedInterest)
	}
	if pos.LastUpdateTime != 0 {
		t.Fatalf("original clock must stay untouched, got %d", pos.LastUpdateTime)
	}
}

func TestHealthFactorMath(t *testing.T) {
	boundary := healthFactor(big.NewInt(12_000), big.NewInt(10_000), 12_000)
	if boundary.Cmp(healthScale) != 0 {
		t.Fatalf("expected exactly 1e18 at the boundary, got %s", boundary)
	}

	healthy := healthFactor(big.NewInt(20_000), big.NewInt(10_000), 12_000)
	if healthy.Cmp(healthScale) <= 0 {
		t.Fatalf("expected healthy factor above 1e18, got %s", healthy)
	}

	if hf := healthFactor(big.NewInt(12_000), big.NewInt(0), 12_000); hf.Cmp(maxHealthFactor) != 0 {
		t.Fatalf("expected sentinel for zero debt, got %s", hf)
	}
	if hf := healthFactor(big.NewInt(0), big.NewInt(100), 12_000); hf.Sign() != 0 {
		t.Fatalf("expected zero factor with no collateral, got %s", hf)
	}
}

func TestMaxBorrowValueRoundsDown(t *testing.T) {
	limit := maxBorrowValue(big.NewInt(10_000), 12_000)
	if limit.Cmp(big.NewInt(8333)) != 0 {
		t.Fatalf("expected 8333, got %s", limit)
	}
	if limit := maxBorrowValue(big.NewInt(0), 12_000); limit.Sign() != 0 {
		t.Fatalf("expected zero limit for zero collateral, got %s", limit)
	}
}

func TestBonusValue(t *testing.T) {
	if v := bonusValue(big.NewInt(10_000), 1000); v.Cmp(big.NewInt(11_000)) != 0 {
		t.Fatalf("expected 11000 with 10%% bonus, got %s", v)
	}
	if v := bonusValue(big.NewInt(10_000), 0); v.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected 10000 with no bonus, got %s", v)
	}
}
