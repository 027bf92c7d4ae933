package lending

import (
	"math/big"

	"creditlend/crypto"
)

// Read-only query surface. Every query simulates pending interest accrual on
// a copy of the position and leaves persisted state untouched.

// GetPosition returns the user's position for the asset with pending interest
// applied. Users without a position get an empty one.
func (e *Engine) GetPosition(user crypto.Address, asset string) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.simulatedPosition(user, asset)
}

func (e *Engine) simulatedPosition(user crypto.Address, asset string) (*Position, error) {
	reserve, err := e.state.GetReserve(asset)
	if err != nil {
		return nil, err
	}
	pos, err := e.state.GetPosition(user, asset)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Asset: NormalizeAsset(asset)}
		copy(pos.Address[:], user.Bytes())
		pos.EnsureDefaults()
		return pos, nil
	}
	rateBps := uint64(0)
	if reserve != nil {
		rateBps = reserve.InterestRateBps
	}
	return simulateAccrual(pos, rateBps, e.nowFn()), nil
}

// CalculateInterest reports the interest that would be owed if the position
// were accrued now, on top of what has already been folded in.
func (e *Engine) CalculateInterest(user crypto.Address, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.simulatedPosition(user, asset)
	if err != nil {
		return nil, err
	}
	return pos.AccruedInterest, nil
}

// HealthFactor computes the scaled health factor for the user's position.
// Debt-free positions report the maximum sentinel value.
func (e *Engine) HealthFactor(user crypto.Address, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.healthFactorLocked(user, asset)
}

func (e *Engine) healthFactorLocked(user crypto.Address, asset string) (*big.Int, error) {
	pos, err := e.simulatedPosition(user, asset)
	if err != nil {
		return nil, err
	}
	debt := pos.TotalDebt()
	if debt.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor), nil
	}
	collateralValue, err := e.valueOf(asset, pos.CollateralAmount)
	if err != nil {
		return nil, err
	}
	debtValue, err := e.valueOf(asset, debt)
	if err != nil {
		return nil, err
	}
	return healthFactor(collateralValue, debtValue, pos.CollateralRatioBps), nil
}

// IsLiquidatable reports whether the position's health factor has fallen
// below the liquidation threshold. The health factor and the threshold are
// read under the same lock so a concurrent threshold update cannot split the
// comparison.
func (e *Engine) IsLiquidatable(user crypto.Address, asset string) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	hf, err := e.healthFactorLocked(user, asset)
	if err != nil {
		return false, err
	}
	return hf.Cmp(e.params.LiquidationThreshold) < 0, nil
}

// MaxBorrowAmount computes how much more of the asset the user could borrow:
// the collateral-backed headroom capped by the pool's free liquidity. A
// position without a ratio snapshot resolves one from the current score
// without persisting it.
func (e *Engine) MaxBorrowAmount(user crypto.Address, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reserve, err := e.supportedReserve(asset)
	if err != nil {
		return nil, err
	}
	pos, err := e.simulatedPosition(user, asset)
	if err != nil {
		return nil, err
	}
	ratioBps := pos.CollateralRatioBps
	if ratioBps == 0 {
		if err := e.refreshRatio(pos, user); err != nil {
			return nil, err
		}
		ratioBps = pos.CollateralRatioBps
	}

	collateralValue, err := e.valueOf(asset, pos.CollateralAmount)
	if err != nil {
		return nil, err
	}
	debtValue, err := e.valueOf(asset, pos.TotalDebt())
	if err != nil {
		return nil, err
	}
	headroomValue := new(big.Int).Sub(maxBorrowValue(collateralValue, ratioBps), debtValue)
	if headroomValue.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	headroom, err := e.amountOf(asset, headroomValue)
	if err != nil {
		return nil, err
	}
	available, err := e.availableLiquidity(asset, reserve)
	if err != nil {
		return nil, err
	}
	if headroom.Cmp(available) > 0 {
		return available, nil
	}
	return headroom, nil
}

// GetReserve returns a copy of the asset's reserve accounting.
func (e *Engine) GetReserve(asset string) (*Reserve, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reserve, err := e.state.GetReserve(asset)
	if err != nil {
		return nil, err
	}
	if reserve == nil {
		return nil, ErrUnsupportedAsset
	}
	return reserve.Clone(), nil
}

// PoolBalance returns the asset balance held by the pool treasury.
func (e *Engine) PoolBalance(asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.GetBalance(e.moduleAddress, asset)
}

// BalanceOf returns an account's asset balance.
func (e *Engine) BalanceOf(addr crypto.Address, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.GetBalance(addr, asset)
}

// RiskParams returns a copy of the current risk parameters.
func (e *Engine) RiskParams() RiskParameters {
	if e == nil {
		return RiskParameters{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.Clone()
}
