package lending

import "math/big"

// Position tracks the collateral and debt of a single (user, asset) pair.
// Amounts are expressed as big integers in the asset's smallest unit.
type Position struct {
	// Address is the raw 20-byte owner identifier.
	Address [20]byte `json:"address"`
	// Asset is the normalized asset symbol the position is denominated in.
	Asset string `json:"asset"`
	// CollateralAmount is the asset amount pledged as collateral.
	CollateralAmount *big.Int `json:"collateralAmount"`
	// BorrowedAmount is the outstanding borrowed principal.
	BorrowedAmount *big.Int `json:"borrowedAmount"`
	// AccruedInterest is the simple interest accumulated since the principal
	// was last touched. Total debt is BorrowedAmount + AccruedInterest.
	AccruedInterest *big.Int `json:"accruedInterest"`
	// CollateralRatioBps is the required collateral ratio snapshotted from
	// the borrower's credit score at deposit/borrow time.
	CollateralRatioBps uint64 `json:"collateralRatioBps"`
	// LastUpdateTime is the unix timestamp of the last accrual.
	LastUpdateTime int64 `json:"lastUpdateTime"`
}

// EnsureDefaults populates nil big.Int fields so JSON round-trips are safe.
func (p *Position) EnsureDefaults() {
	if p == nil {
		return
	}
	if p.CollateralAmount == nil {
		p.CollateralAmount = big.NewInt(0)
	}
	if p.BorrowedAmount == nil {
		p.BorrowedAmount = big.NewInt(0)
	}
	if p.AccruedInterest == nil {
		p.AccruedInterest = big.NewInt(0)
	}
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{
		Address:            p.Address,
		Asset:              p.Asset,
		CollateralRatioBps: p.CollateralRatioBps,
		LastUpdateTime:     p.LastUpdateTime,
	}
	if p.CollateralAmount != nil {
		clone.CollateralAmount = new(big.Int).Set(p.CollateralAmount)
	}
	if p.BorrowedAmount != nil {
		clone.BorrowedAmount = new(big.Int).Set(p.BorrowedAmount)
	}
	if p.AccruedInterest != nil {
		clone.AccruedInterest = new(big.Int).Set(p.AccruedInterest)
	}
	clone.EnsureDefaults()
	return clone
}

// TotalDebt returns BorrowedAmount + AccruedInterest.
func (p *Position) TotalDebt() *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	debt := new(big.Int)
	if p.BorrowedAmount != nil {
		debt.Add(debt, p.BorrowedAmount)
	}
	if p.AccruedInterest != nil {
		debt.Add(debt, p.AccruedInterest)
	}
	return debt
}

// Reserve captures the per-asset accounting totals for the pool. The totals
// mirror the sums over all positions for the asset at all times.
type Reserve struct {
	Asset           string   `json:"asset"`
	Supported       bool     `json:"supported"`
	InterestRateBps uint64   `json:"interestRateBps"`
	TotalCollateral *big.Int `json:"totalCollateral"`
	TotalBorrowed   *big.Int `json:"totalBorrowed"`
}

// EnsureDefaults populates nil big.Int fields so JSON round-trips are safe.
func (r *Reserve) EnsureDefaults() {
	if r == nil {
		return
	}
	if r.TotalCollateral == nil {
		r.TotalCollateral = big.NewInt(0)
	}
	if r.TotalBorrowed == nil {
		r.TotalBorrowed = big.NewInt(0)
	}
}

// Clone returns a deep copy of the reserve.
func (r *Reserve) Clone() *Reserve {
	if r == nil {
		return nil
	}
	clone := &Reserve{
		Asset:           r.Asset,
		Supported:       r.Supported,
		InterestRateBps: r.InterestRateBps,
	}
	if r.TotalCollateral != nil {
		clone.TotalCollateral = new(big.Int).Set(r.TotalCollateral)
	}
	if r.TotalBorrowed != nil {
		clone.TotalBorrowed = new(big.Int).Set(r.TotalBorrowed)
	}
	clone.EnsureDefaults()
	return clone
}

// RiskParameters groups the governance controlled liquidation settings.
type RiskParameters struct {
	// LiquidationThreshold is the health factor below which a position may
	// be liquidated, scaled by 1e18. The default is 1.0 scaled.
	LiquidationThreshold *big.Int
	// LiquidationBonusBps is the extra collateral percentage awarded to a
	// liquidator above the repaid debt value, in basis points.
	LiquidationBonusBps uint64
}

// Clone returns a deep copy of the risk parameters.
func (p RiskParameters) Clone() RiskParameters {
	clone := RiskParameters{LiquidationBonusBps: p.LiquidationBonusBps}
	if p.LiquidationThreshold != nil {
		clone.LiquidationThreshold = new(big.Int).Set(p.LiquidationThreshold)
	}
	return clone
}
