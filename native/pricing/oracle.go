package pricing

import (
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnknownAsset indicates no feed has ever been registered for the asset.
	ErrUnknownAsset = errors.New("pricing: no feed registered for asset")
	// ErrStaleQuote indicates the most recent quote is older than the
	// configured freshness window. Callers must treat this as a hard failure
	// rather than substituting a default price.
	ErrStaleQuote = errors.New("pricing: quote outside freshness window")
	// ErrInvalidRate marks non-positive rates submitted by a feeder.
	ErrInvalidRate = errors.New("pricing: rate must be positive")
)

// Quote captures the value-per-unit rate for an asset along with the
// timestamp reported by the upstream feed and the feed identifier.
type Quote struct {
	Rate      *big.Rat
	Timestamp time.Time
	Source    string
}

// Clone returns a deep copy of the quote to prevent accidental mutations.
func (q Quote) Clone() Quote {
	clone := Quote{Timestamp: q.Timestamp, Source: q.Source}
	if q.Rate != nil {
		clone.Rate = new(big.Rat).Set(q.Rate)
	}
	return clone
}

// ValuationOracle resolves asset prices and converts between asset amounts
// and value units. Every method fails outright when no fresh quote exists.
type ValuationOracle interface {
	PriceOf(asset string) (Quote, error)
	ValueOf(asset string, amount *big.Int) (*big.Int, error)
	AmountOf(asset string, value *big.Int) (*big.Int, error)
}

// ManualOracle keeps the latest quote per asset, fed by an authorised
// reporter. Reads reject quotes older than the freshness window.
type ManualOracle struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	maxAge time.Duration
	nowFn  func() time.Time
}

// NewManualOracle constructs an oracle that considers quotes older than
// maxAge stale. A zero maxAge disables the staleness check.
func NewManualOracle(maxAge time.Duration) *ManualOracle {
	return &ManualOracle{
		quotes: make(map[string]Quote),
		maxAge: maxAge,
		nowFn:  time.Now,
	}
}

// SetNowFunc overrides the wall clock, primarily for deterministic tests.
func (o *ManualOracle) SetNowFunc(now func() time.Time) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if now == nil {
		o.nowFn = time.Now
		return
	}
	o.nowFn = now
}

// SetPrice records a fresh quote for the asset.
func (o *ManualOracle) SetPrice(asset string, rate *big.Rat, source string) error {
	if o == nil {
		return ErrUnknownAsset
	}
	if rate == nil || rate.Sign() <= 0 {
		return ErrInvalidRate
	}
	normalized := normalizeAsset(asset)
	if normalized == "" {
		return ErrUnknownAsset
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[normalized] = Quote{
		Rate:      new(big.Rat).Set(rate),
		Timestamp: o.nowFn(),
		Source:    strings.TrimSpace(source),
	}
	return nil
}

// PriceOf returns the latest fresh quote for the asset.
func (o *ManualOracle) PriceOf(asset string) (Quote, error) {
	if o == nil {
		return Quote{}, ErrUnknownAsset
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	quote, ok := o.quotes[normalizeAsset(asset)]
	if !ok {
		return Quote{}, ErrUnknownAsset
	}
	if o.maxAge > 0 && o.nowFn().Sub(quote.Timestamp) > o.maxAge {
		return Quote{}, ErrStaleQuote
	}
	return quote.Clone(), nil
}

// ValueOf converts an asset amount into value units at the current rate.
func (o *ManualOracle) ValueOf(asset string, amount *big.Int) (*big.Int, error) {
	quote, err := o.PriceOf(asset)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	scaled := new(big.Rat).Mul(quote.Rate, new(big.Rat).SetInt(amount))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom()), nil
}

// AmountOf converts a value figure back into asset units at the current rate.
func (o *ManualOracle) AmountOf(asset string, value *big.Int) (*big.Int, error) {
	quote, err := o.PriceOf(asset)
	if err != nil {
		return nil, err
	}
	if value == nil || value.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	inverse := new(big.Rat).Inv(quote.Rate)
	scaled := new(big.Rat).Mul(inverse, new(big.Rat).SetInt(value))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom()), nil
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
