package vault

import (
	"errors"
	"log/slog"
	"math/big"
	"sync"

	"creditlend/crypto"
)

var (
	ErrInvalidAmount       = errors.New("vault: amount must be positive")
	ErrInsufficientShares  = errors.New("vault: insufficient shares")
	ErrInsufficientAssets  = errors.New("vault: insufficient assets")
	errScoreSourceRequired = errors.New("vault: score source not configured")
)

// ScoreSource resolves a depositor's credit score for yield boosting.
type ScoreSource interface {
	Score(user crypto.Address) (uint64, error)
}

// FundsMover custodies vault deposits on the shared balance ledger.
type FundsMover interface {
	TransferFunds(from, to crypto.Address, asset string, amount *big.Int) error
}

// SavingsReporter receives the depositor's balance changes for credit
// accounting.
type SavingsReporter interface {
	Initialize(caller, user crypto.Address) error
	UpdateSavings(caller, user crypto.Address, newBalance, depositDelta *big.Int) error
}

const (
	scoreFloor  uint64 = 300
	scoreRange  uint64 = 550
	maxBoostBps uint64 = 2_000
)

// Vault is a tokenized-deposit yield wrapper: deposits mint shares at the
// current exchange rate and accrued yield raises the rate, so
// ConvertToAssets(ConvertToShares(x)) ≈ x at any point in time.
type Vault struct {
	mu          sync.Mutex
	asset       string
	totalAssets *big.Int
	totalShares *big.Int
	shares      map[[20]byte]*big.Int
	scores      ScoreSource
	funds       FundsMover
	treasury    crypto.Address
	reporter    SavingsReporter
	logger      *slog.Logger
}

// New constructs an empty vault for the asset.
func New(asset string) *Vault {
	return &Vault{
		asset:       asset,
		totalAssets: big.NewInt(0),
		totalShares: big.NewInt(0),
		shares:      make(map[[20]byte]*big.Int),
	}
}

// SetScoreSource wires the credit score engine used for boost queries.
func (v *Vault) SetScoreSource(scores ScoreSource) {
	if v == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scores = scores
}

// SetFunds wires the balance ledger and the treasury account that custodies
// deposits. The treasury also serves as the vault's caller identity towards
// the savings reporter.
func (v *Vault) SetFunds(funds FundsMover, treasury crypto.Address) {
	if v == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.funds = funds
	v.treasury = treasury
}

// SetSavingsReporter wires the credit accumulator receiving balance updates.
func (v *Vault) SetSavingsReporter(reporter SavingsReporter) {
	if v == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reporter = reporter
}

// SetLogger wires the logger used for dropped savings reports.
func (v *Vault) SetLogger(logger *slog.Logger) {
	if v == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.logger = logger
}

// Asset returns the underlying asset symbol.
func (v *Vault) Asset() string { return v.asset }

// Treasury returns the account holding the vault's custodied assets.
func (v *Vault) Treasury() crypto.Address { return v.treasury }

func key20(addr crypto.Address) [20]byte {
	var k [20]byte
	copy(k[:], addr.Bytes())
	return k
}

// ConvertToShares maps an asset amount onto shares at the current exchange
// rate. An empty vault converts 1:1.
func (v *Vault) ConvertToShares(assets *big.Int) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.toShares(assets)
}

func (v *Vault) toShares(assets *big.Int) *big.Int {
	if assets == nil || assets.Sign() <= 0 {
		return big.NewInt(0)
	}
	if v.totalShares.Sign() == 0 || v.totalAssets.Sign() == 0 {
		return new(big.Int).Set(assets)
	}
	shares := new(big.Int).Mul(assets, v.totalShares)
	return shares.Quo(shares, v.totalAssets)
}

// ConvertToAssets maps shares back onto the underlying asset amount.
func (v *Vault) ConvertToAssets(shares *big.Int) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.toAssets(shares)
}

func (v *Vault) toAssets(shares *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 {
		return big.NewInt(0)
	}
	if v.totalShares.Sign() == 0 {
		return new(big.Int).Set(shares)
	}
	assets := new(big.Int).Mul(shares, v.totalAssets)
	return assets.Quo(assets, v.totalShares)
}

// Deposit moves the assets from the user into the treasury and mints shares
// at the current exchange rate. The depositor's savings balance is reported
// to the credit accumulator; a rejected report is logged, never unwound.
func (v *Vault) Deposit(user crypto.Address, assets *big.Int) (*big.Int, error) {
	if assets == nil || assets.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	k := key20(user)
	firstTouch := v.shares[k] == nil || v.shares[k].Sign() == 0
	if v.funds != nil {
		if err := v.funds.TransferFunds(user, v.treasury, v.asset, assets); err != nil {
			return nil, err
		}
	}
	minted := v.toShares(assets)
	if minted.Sign() == 0 {
		minted = big.NewInt(1)
	}
	if v.shares[k] == nil {
		v.shares[k] = big.NewInt(0)
	}
	v.shares[k] = new(big.Int).Add(v.shares[k], minted)
	v.totalShares = new(big.Int).Add(v.totalShares, minted)
	v.totalAssets = new(big.Int).Add(v.totalAssets, assets)
	v.reportSavings(user, firstTouch, assets)
	return minted, nil
}

// Withdraw burns the user's shares and releases the underlying assets from
// the treasury back to the user.
func (v *Vault) Withdraw(user crypto.Address, shares *big.Int) (*big.Int, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	k := key20(user)
	held := v.shares[k]
	if held == nil || held.Cmp(shares) < 0 {
		return nil, ErrInsufficientShares
	}
	assets := v.toAssets(shares)
	if assets.Cmp(v.totalAssets) > 0 {
		return nil, ErrInsufficientAssets
	}
	if v.funds != nil {
		if err := v.funds.TransferFunds(v.treasury, user, v.asset, assets); err != nil {
			return nil, err
		}
	}
	v.shares[k] = new(big.Int).Sub(held, shares)
	v.totalShares = new(big.Int).Sub(v.totalShares, shares)
	v.totalAssets = new(big.Int).Sub(v.totalAssets, assets)
	v.reportSavings(user, false, nil)
	return assets, nil
}

// reportSavings sends the user's post-operation balance to the credit
// accumulator. Called with the vault lock held.
func (v *Vault) reportSavings(user crypto.Address, firstTouch bool, depositDelta *big.Int) {
	if v.reporter == nil {
		return
	}
	if firstTouch {
		if err := v.reporter.Initialize(v.treasury, user); err != nil {
			v.reportDropped(user, err)
		}
	}
	if depositDelta == nil {
		depositDelta = big.NewInt(0)
	}
	balance := v.toAssets(v.shares[key20(user)])
	if err := v.reporter.UpdateSavings(v.treasury, user, balance, depositDelta); err != nil {
		v.reportDropped(user, err)
	}
}

func (v *Vault) reportDropped(user crypto.Address, err error) {
	if v.logger == nil {
		return
	}
	v.logger.Warn("savings report dropped", "user", user.String(), "error", err)
}

// SharesOf returns the user's share balance.
func (v *Vault) SharesOf(user crypto.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	held := v.shares[key20(user)]
	if held == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(held)
}

// AccrueYield folds earned yield into the vault, raising the exchange rate
// for all holders.
func (v *Vault) AccrueYield(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.totalAssets = new(big.Int).Add(v.totalAssets, amount)
	return nil
}

// BoostBps derives a yield boost from the user's credit score: the floor
// earns no boost and the ceiling earns the maximum, linearly in between.
func (v *Vault) BoostBps(user crypto.Address) (uint64, error) {
	v.mu.Lock()
	scores := v.scores
	v.mu.Unlock()
	if scores == nil {
		return 0, errScoreSourceRequired
	}
	score, err := scores.Score(user)
	if err != nil {
		return 0, err
	}
	if score <= scoreFloor {
		return 0, nil
	}
	above := score - scoreFloor
	if above > scoreRange {
		above = scoreRange
	}
	return above * maxBoostBps / scoreRange, nil
}
