package lending

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"creditlend/crypto"
	"creditlend/native/common"
	"creditlend/native/pricing"
)

const moduleName = "lending"

// ScoreSource resolves a user's current credit score.
type ScoreSource interface {
	Score(user crypto.Address) (uint64, error)
}

// CreditRecorder receives the behavioral events the lending engine emits:
// repayments, liquidation penalties, borrow activity and liquidity funding.
type CreditRecorder interface {
	RecordPayment(caller, user crypto.Address, amount *big.Int, daysLate uint64) error
	TrackAssetUsage(caller, user crypto.Address, asset string) error
	SetLiquidityProvided(caller, user crypto.Address, amount *big.Int) error
}

// liquidationPenaltyDaysLate is the days-late figure stamped on the credit
// event recorded against a liquidated borrower. Fifteen days lands in the
// late band without counting as an outright default.
const liquidationPenaltyDaysLate = 15

// Engine orchestrates deposits, withdrawals, borrows, repayments and
// liquidations against the position ledger. Every public operation runs under
// a single engine-wide lock: operations are strictly serial and either fully
// commit or reject before mutating state.
type Engine struct {
	mu sync.Mutex

	state  engineState
	oracle pricing.ValuationOracle
	scores ScoreSource
	credit CreditRecorder
	pauses common.PauseView
	logger *slog.Logger

	params        RiskParameters
	moduleAddress crypto.Address
	admin         crypto.Address
	nowFn         func() int64
}

// NewEngine constructs a lending engine with the pool treasury address, the
// privileged administrative identity and the initial risk parameters.
func NewEngine(moduleAddr, admin crypto.Address, params RiskParameters) *Engine {
	cloned := params.Clone()
	if cloned.LiquidationThreshold == nil || cloned.LiquidationThreshold.Sign() == 0 {
		cloned.LiquidationThreshold = new(big.Int).Set(healthScale)
	}
	return &Engine{
		moduleAddress: moduleAddr,
		admin:         admin,
		params:        cloned,
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

// SetOracle wires the valuation oracle used for collateral and debt pricing.
func (e *Engine) SetOracle(oracle pricing.ValuationOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

// SetScoreSource wires the credit score engine consulted for ratio snapshots.
func (e *Engine) SetScoreSource(scores ScoreSource) {
	if e == nil {
		return
	}
	e.scores = scores
}

// SetCreditRecorder wires the accumulator receiving behavioral events.
func (e *Engine) SetCreditRecorder(credit CreditRecorder) {
	if e == nil {
		return
	}
	e.credit = credit
}

// SetLogger wires the logger used for dropped credit events.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	e.logger = logger
}

// SetPauses wires the governance pause switch.
func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the wall clock, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// ModuleAddress returns the pool treasury identity.
func (e *Engine) ModuleAddress() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.moduleAddress
}

// recordDropped logs a credit event the accumulator refused. Credit events
// are advisory: a rejected event never unwinds the committed ledger write.
func (e *Engine) recordDropped(event string, user crypto.Address, err error) {
	if e.logger == nil {
		return
	}
	e.logger.Warn("credit event dropped", "event", event, "user", user.String(), "error", err)
}

func (e *Engine) precheck(addr crypto.Address, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if addr.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if NormalizeAsset(asset) == "" {
		return ErrUnsupportedAsset
	}
	return nil
}

func (e *Engine) supportedReserve(asset string) (*Reserve, error) {
	reserve, err := e.state.GetReserve(asset)
	if err != nil {
		return nil, err
	}
	if reserve == nil || !reserve.Supported {
		return nil, ErrUnsupportedAsset
	}
	return reserve, nil
}

func (e *Engine) ensurePosition(addr crypto.Address, asset string) (*Position, error) {
	pos, err := e.state.GetPosition(addr, asset)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Asset: NormalizeAsset(asset), LastUpdateTime: e.nowFn()}
		copy(pos.Address[:], addr.Bytes())
	}
	pos.EnsureDefaults()
	return pos, nil
}

// transfer moves amount of asset between balance accounts, rejecting when the
// payer's balance is short.
func (e *Engine) transfer(from, to crypto.Address, asset string, amount *big.Int) error {
	fromBal, err := e.state.GetBalance(from, asset)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return limitErr(ErrInsufficientBalance, amount, fromBal)
	}
	toBal, err := e.state.GetBalance(to, asset)
	if err != nil {
		return err
	}
	if err := e.state.PutBalance(from, asset, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return e.state.PutBalance(to, asset, new(big.Int).Add(toBal, amount))
}

// refreshRatio snapshots the required collateral ratio for the user's current
// credit score into the position. Deposit and borrow refresh the snapshot;
// withdrawals and liquidations deliberately reuse the stale value.
func (e *Engine) refreshRatio(pos *Position, user crypto.Address) error {
	if e.scores == nil {
		pos.CollateralRatioBps = ratioTierBase
		return nil
	}
	score, err := e.scores.Score(user)
	if err != nil {
		return err
	}
	pos.CollateralRatioBps = RatioForScore(score)
	return nil
}

func (e *Engine) availableLiquidity(asset string, reserve *Reserve) (*big.Int, error) {
	poolBal, err := e.state.GetBalance(e.moduleAddress, asset)
	if err != nil {
		return nil, err
	}
	available := new(big.Int).Sub(poolBal, reserve.TotalCollateral)
	if available.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return available, nil
}

// DepositCollateral locks collateral for the user, refreshing the ratio
// snapshot from their current credit score.
func (e *Engine) DepositCollateral(user crypto.Address, asset string, amount *big.Int) error {
	if err := e.precheck(user, asset, amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reserve, err := e.supportedReserve(asset)
	if err != nil {
		return err
	}
	pos, err := e.ensurePosition(user, asset)
	if err != nil {
		return err
	}
	accrueInterest(pos, reserve.InterestRateBps, e.nowFn())
	if err := e.refreshRatio(pos, user); err != nil {
		return err
	}
	if err := e.transfer(user, e.moduleAddress, asset, amount); err != nil {
		return err
	}
	pos.CollateralAmount = new(big.Int).Add(pos.CollateralAmount, amount)
	reserve.TotalCollateral = new(big.Int).Add(reserve.TotalCollateral, amount)

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	return e.state.PutReserve(reserve)
}

// WithdrawCollateral releases collateral back to the user while ensuring an
// indebted position stays above the liquidation threshold. The health check
// uses the last snapshotted ratio, not a fresh score.
func (e *Engine) WithdrawCollateral(user crypto.Address, asset string, amount *big.Int) error {
	if err := e.precheck(user, asset, amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reserve, err := e.supportedReserve(asset)
	if err != nil {
		return err
	}
	pos, err := e.state.GetPosition(user, asset)
	if err != nil {
		return err
	}
	if pos == nil || pos.CollateralAmount.Cmp(amount) < 0 {
		available := big.NewInt(0)
		if pos != nil {
			available = pos.CollateralAmount
		}
		return limitErr(ErrInsufficientCollateral, amount, available)
	}
	accrueInterest(pos, reserve.InterestRateBps, e.nowFn())

	debt := pos.TotalDebt()
	if debt.Sign() > 0 {
		remaining := new(big.Int).Sub(pos.CollateralAmount, amount)
		collateralValue, err := e.valueOf(asset, remaining)
		if err != nil {
			return err
		}
		debtValue, err := e.valueOf(asset, debt)
		if err != nil {
			return err
		}
		hf := healthFactor(collateralValue, debtValue, pos.CollateralRatioBps)
		if hf.Cmp(e.params.LiquidationThreshold) < 0 {
			return ErrHealthCheckFailed
		}
	}

	if err := e.transfer(e.moduleAddress, user, asset, amount); err != nil {
		return err
	}
	pos.CollateralAmount = new(big.Int).Sub(pos.CollateralAmount, amount)
	reserve.TotalCollateral = new(big.Int).Sub(reserve.TotalCollateral, amount)

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	return e.state.PutReserve(reserve)
}

// Borrow draws asset liquidity against the user's collateral. The liquidity
// gate and the collateral-backed borrow limit are independent: both must
// pass.
func (e *Engine) Borrow(user crypto.Address, asset string, amount *big.Int) error {
	if err := e.precheck(user, asset, amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reserve, err := e.supportedReserve(asset)
	if err != nil {
		return err
	}
	pos, err := e.ensurePosition(user, asset)
	if err != nil {
		return err
	}
	accrueInterest(pos, reserve.InterestRateBps, e.nowFn())
	if err := e.refreshRatio(pos, user); err != nil {
		return err
	}

	available, err := e.availableLiquidity(asset, reserve)
	if err != nil {
		return err
	}
	if amount.Cmp(available) > 0 {
		return limitErr(ErrInsufficientLiquidity, amount, available)
	}

	collateralValue, err := e.valueOf(asset, pos.CollateralAmount)
	if err != nil {
		return err
	}
	debtValue, err := e.valueOf(asset, pos.TotalDebt())
	if err != nil {
		return err
	}
	limitValue := maxBorrowValue(collateralValue, pos.CollateralRatioBps)
	headroomValue := new(big.Int).Sub(limitValue, debtValue)
	if headroomValue.Sign() < 0 {
		headroomValue = big.NewInt(0)
	}
	amountValue, err := e.valueOf(asset, amount)
	if err != nil {
		return err
	}
	if amountValue.Cmp(headroomValue) > 0 {
		return limitErr(ErrBorrowLimitExceeded, amountValue, headroomValue)
	}

	if err := e.transfer(e.moduleAddress, user, asset, amount); err != nil {
		return err
	}
	// Interest on fresh principal runs from now, not from a stale clock left
	// over from a previously retired debt.
	if pos.BorrowedAmount.Sign() == 0 {
		pos.LastUpdateTime = e.nowFn()
	}
	pos.BorrowedAmount = new(big.Int).Add(pos.BorrowedAmount, amount)
	reserve.TotalBorrowed = new(big.Int).Add(reserve.TotalBorrowed, amount)

	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return err
	}
	if e.credit != nil {
		if err := e.credit.TrackAssetUsage(e.moduleAddress, user, asset); err != nil {
			e.recordDropped("asset_usage", user, err)
		}
	}
	return nil
}

// Repay retires debt, interest first and principal second, and records an
// on-time payment against the borrower's credit history. Overpayment is
// clamped to the outstanding debt.
func (e *Engine) Repay(user crypto.Address, asset string, amount *big.Int) (*big.Int, error) {
	if err := e.precheck(user, asset, amount); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reserve, err := e.supportedReserve(asset)
	if err != nil {
		return nil, err
	}
	pos, err := e.state.GetPosition(user, asset)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrNoDebtToRepay
	}
	accrueInterest(pos, reserve.InterestRateBps, e.nowFn())

	totalDebt := pos.TotalDebt()
	if totalDebt.Sign() == 0 {
		return nil, ErrNoDebtToRepay
	}
	actual := new(big.Int).Set(amount)
	if actual.Cmp(totalDebt) > 0 {
		actual = new(big.Int).Set(totalDebt)
	}

	if err := e.transfer(user, e.moduleAddress, asset, actual); err != nil {
		return nil, err
	}

	interestPaid := new(big.Int).Set(actual)
	if interestPaid.Cmp(pos.AccruedInterest) > 0 {
		interestPaid = new(big.Int).Set(pos.AccruedInterest)
	}
	principalPaid := new(big.Int).Sub(actual, interestPaid)
	pos.AccruedInterest = new(big.Int).Sub(pos.AccruedInterest, interestPaid)
	pos.BorrowedAmount = new(big.Int).Sub(pos.BorrowedAmount, principalPaid)
	reserve.TotalBorrowed = new(big.Int).Sub(reserve.TotalBorrowed, principalPaid)

	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return nil, err
	}
	if e.credit != nil {
		if err := e.credit.RecordPayment(e.moduleAddress, user, actual, 0); err != nil {
			e.recordDropped("payment", user, err)
		}
	}
	return actual, nil
}

// Liquidate lets a third party repay an unhealthy borrower's debt in exchange
// for collateral plus the liquidation bonus. Healthy positions reject with no
// state change, and a late-payment penalty is recorded against the borrower.
func (e *Engine) Liquidate(liquidator, borrower crypto.Address, asset string, debtAmount *big.Int) (*big.Int, *big.Int, error) {
	if err := e.precheck(liquidator, asset, debtAmount); err != nil {
		return nil, nil, err
	}
	if borrower.IsZero() {
		return nil, nil, ErrZeroAddress
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reserve, err := e.supportedReserve(asset)
	if err != nil {
		return nil, nil, err
	}
	pos, err := e.state.GetPosition(borrower, asset)
	if err != nil {
		return nil, nil, err
	}
	if pos == nil {
		return nil, nil, ErrNoDebtToRepay
	}
	accrueInterest(pos, reserve.InterestRateBps, e.nowFn())

	totalDebt := pos.TotalDebt()
	if totalDebt.Sign() == 0 {
		return nil, nil, ErrNoDebtToRepay
	}

	collateralValue, err := e.valueOf(asset, pos.CollateralAmount)
	if err != nil {
		return nil, nil, err
	}
	debtValue, err := e.valueOf(asset, totalDebt)
	if err != nil {
		return nil, nil, err
	}
	hf := healthFactor(collateralValue, debtValue, pos.CollateralRatioBps)
	if hf.Cmp(e.params.LiquidationThreshold) >= 0 {
		return nil, nil, ErrNotLiquidatable
	}

	debtToRepay := new(big.Int).Set(debtAmount)
	if debtToRepay.Cmp(totalDebt) > 0 {
		debtToRepay = new(big.Int).Set(totalDebt)
	}
	repayValue, err := e.valueOf(asset, debtToRepay)
	if err != nil {
		return nil, nil, err
	}
	seizeValue := bonusValue(repayValue, e.params.LiquidationBonusBps)
	collateralToSeize, err := e.amountOf(asset, seizeValue)
	if err != nil {
		return nil, nil, err
	}
	if collateralToSeize.Cmp(pos.CollateralAmount) > 0 {
		collateralToSeize = new(big.Int).Set(pos.CollateralAmount)
	}

	// Liquidator covers the debt, then receives the seized collateral.
	if err := e.transfer(liquidator, e.moduleAddress, asset, debtToRepay); err != nil {
		return nil, nil, err
	}
	if err := e.transfer(e.moduleAddress, liquidator, asset, collateralToSeize); err != nil {
		return nil, nil, err
	}

	interestPaid := new(big.Int).Set(debtToRepay)
	if interestPaid.Cmp(pos.AccruedInterest) > 0 {
		interestPaid = new(big.Int).Set(pos.AccruedInterest)
	}
	principalPaid := new(big.Int).Sub(debtToRepay, interestPaid)
	pos.AccruedInterest = new(big.Int).Sub(pos.AccruedInterest, interestPaid)
	pos.BorrowedAmount = new(big.Int).Sub(pos.BorrowedAmount, principalPaid)
	pos.CollateralAmount = new(big.Int).Sub(pos.CollateralAmount, collateralToSeize)
	reserve.TotalBorrowed = new(big.Int).Sub(reserve.TotalBorrowed, principalPaid)
	reserve.TotalCollateral = new(big.Int).Sub(reserve.TotalCollateral, collateralToSeize)

	if err := e.state.PutPosition(pos); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutReserve(reserve); err != nil {
		return nil, nil, err
	}
	if e.credit != nil {
		if err := e.credit.RecordPayment(e.moduleAddress, borrower, debtToRepay, liquidationPenaltyDaysLate); err != nil {
			e.recordDropped("liquidation_penalty", borrower, err)
		}
	}
	return debtToRepay, collateralToSeize, nil
}

// FundReserve moves lendable liquidity from the funder into the pool and
// credits the funder's cumulative liquidity provision.
func (e *Engine) FundReserve(funder crypto.Address, asset string, amount *big.Int) error {
	if err := e.precheck(funder, asset, amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.supportedReserve(asset); err != nil {
		return err
	}
	if err := e.transfer(funder, e.moduleAddress, asset, amount); err != nil {
		return err
	}
	total, err := e.state.GetFunderTotal(funder)
	if err != nil {
		return err
	}
	total = new(big.Int).Add(total, amount)
	if err := e.state.PutFunderTotal(funder, total); err != nil {
		return err
	}
	if e.credit != nil {
		if err := e.credit.SetLiquidityProvided(e.moduleAddress, funder, total); err != nil {
			e.recordDropped("liquidity", funder, err)
		}
	}
	return nil
}

// TransferFunds moves asset balance between two accounts under the engine
// lock. Sibling modules custody deposits on the same balance ledger through
// this entry point.
func (e *Engine) TransferFunds(from, to crypto.Address, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if NormalizeAsset(asset) == "" {
		return ErrUnsupportedAsset
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transfer(from, to, asset, amount)
}

func (e *Engine) valueOf(asset string, amount *big.Int) (*big.Int, error) {
	if e.oracle == nil {
		return nil, ErrNilOracle
	}
	return e.oracle.ValueOf(asset, amount)
}

func (e *Engine) amountOf(asset string, value *big.Int) (*big.Int, error) {
	if e.oracle == nil {
		return nil, ErrNilOracle
	}
	return e.oracle.AmountOf(asset, value)
}
