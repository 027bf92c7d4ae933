package lending

import (
	"math/big"

	"creditlend/crypto"
	"creditlend/native/pricing"
)

// Administrative surface. Every call is restricted to the single privileged
// identity configured at construction time.

func (e *Engine) requireAdmin(caller crypto.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.admin.IsZero() || !caller.Equal(e.admin) {
		return ErrAdminOnly
	}
	return nil
}

// SetAssetSupported toggles whether the asset may be used for collateral and
// borrowing, creating its reserve on first support.
func (e *Engine) SetAssetSupported(caller crypto.Address, asset string, supported bool) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if NormalizeAsset(asset) == "" {
		return ErrUnsupportedAsset
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reserve, err := e.state.GetReserve(asset)
	if err != nil {
		return err
	}
	if reserve == nil {
		reserve = &Reserve{Asset: NormalizeAsset(asset)}
		reserve.EnsureDefaults()
	}
	reserve.Supported = supported
	return e.state.PutReserve(reserve)
}

// SetInterestRate updates the annual borrow rate for the asset, in basis
// points.
func (e *Engine) SetInterestRate(caller crypto.Address, asset string, rateBps uint64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reserve, err := e.supportedReserve(asset)
	if err != nil {
		return err
	}
	reserve.InterestRateBps = rateBps
	return e.state.PutReserve(reserve)
}

// SetLiquidationThreshold replaces the scaled health factor boundary below
// which positions become liquidatable.
func (e *Engine) SetLiquidationThreshold(caller crypto.Address, threshold *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if threshold == nil || threshold.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params.LiquidationThreshold = new(big.Int).Set(threshold)
	return nil
}

// SetLiquidationBonus replaces the liquidator bonus, in basis points.
func (e *Engine) SetLiquidationBonus(caller crypto.Address, bonusBps uint64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params.LiquidationBonusBps = bonusBps
	return nil
}

// RotateOracle swaps the valuation oracle for a replacement feed.
func (e *Engine) RotateOracle(caller crypto.Address, oracle pricing.ValuationOracle) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if oracle == nil {
		return ErrNilOracle
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.oracle = oracle
	return nil
}

// Mint credits an account balance. Operational tooling uses this to seed
// balances when running against a fresh ledger.
func (e *Engine) Mint(caller, to crypto.Address, asset string, amount *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	balance, err := e.state.GetBalance(to, asset)
	if err != nil {
		return err
	}
	return e.state.PutBalance(to, asset, new(big.Int).Add(balance, amount))
}
