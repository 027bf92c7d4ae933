package lending

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrNilState marks an engine used before its persistence layer is wired.
	ErrNilState = errors.New("lending engine: state not configured")
	// ErrNilOracle marks an engine used before its valuation oracle is wired.
	ErrNilOracle = errors.New("lending engine: oracle not configured")
	// ErrUnsupportedAsset rejects operations on assets the pool does not list.
	ErrUnsupportedAsset = errors.New("lending engine: asset not supported")
	// ErrInvalidAmount rejects zero or negative amounts.
	ErrInvalidAmount = errors.New("lending engine: amount must be positive")
	// ErrZeroAddress rejects unset account identifiers.
	ErrZeroAddress = errors.New("lending engine: address must not be zero")
	// ErrInsufficientBalance marks a transfer exceeding the payer's balance.
	ErrInsufficientBalance = errors.New("lending engine: insufficient balance")
	// ErrInsufficientCollateral marks withdrawals exceeding pledged collateral.
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	// ErrInsufficientLiquidity marks borrows exceeding the pool's free liquidity.
	ErrInsufficientLiquidity = errors.New("lending engine: insufficient liquidity")
	// ErrBorrowLimitExceeded marks borrows beyond the collateral-backed limit.
	ErrBorrowLimitExceeded = errors.New("lending engine: borrow limit exceeded")
	// ErrHealthCheckFailed marks withdrawals that would push the position
	// below the liquidation threshold.
	ErrHealthCheckFailed = errors.New("lending engine: position would become liquidatable")
	// ErrNoDebtToRepay rejects repayments against debt-free positions.
	ErrNoDebtToRepay = errors.New("lending engine: no outstanding debt to repay")
	// ErrNotLiquidatable rejects liquidation of healthy positions.
	ErrNotLiquidatable = errors.New("lending engine: position not liquidatable")
	// ErrAdminOnly marks administrative calls from non-privileged identities.
	ErrAdminOnly = errors.New("lending engine: caller is not the administrator")
)

// LimitError decorates a capacity-violation sentinel with the figures needed
// to reconstruct the violated limit.
type LimitError struct {
	Kind      error
	Requested *big.Int
	Available *big.Int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v: requested %s, available %s", e.Kind, e.Requested, e.Available)
}

func (e *LimitError) Unwrap() error { return e.Kind }

func limitErr(kind error, requested, available *big.Int) *LimitError {
	err := &LimitError{Kind: kind, Requested: big.NewInt(0), Available: big.NewInt(0)}
	if requested != nil {
		err.Requested = new(big.Int).Set(requested)
	}
	if available != nil {
		err.Available = new(big.Int).Set(available)
	}
	return err
}
