package pricing

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestPriceOfUnknownAsset(t *testing.T) {
	oracle := NewManualOracle(time.Minute)
	if _, err := oracle.PriceOf("USDX"); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected unknown asset, got %v", err)
	}
	if _, err := oracle.ValueOf("USDX", big.NewInt(100)); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected unknown asset from ValueOf, got %v", err)
	}
}

func TestStaleQuoteRejected(t *testing.T) {
	oracle := NewManualOracle(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	oracle.SetNowFunc(func() time.Time { return now })

	if err := oracle.SetPrice("USDX", big.NewRat(1, 1), "feed"); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if _, err := oracle.PriceOf("USDX"); err != nil {
		t.Fatalf("fresh quote rejected: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := oracle.PriceOf("USDX"); !errors.Is(err, ErrStaleQuote) {
		t.Fatalf("expected stale quote, got %v", err)
	}

	// Refreshing the feed recovers.
	if err := oracle.SetPrice("USDX", big.NewRat(1, 1), "feed"); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if _, err := oracle.PriceOf("USDX"); err != nil {
		t.Fatalf("refreshed quote rejected: %v", err)
	}
}

func TestZeroMaxAgeDisablesStaleness(t *testing.T) {
	oracle := NewManualOracle(0)
	now := time.Unix(1_700_000_000, 0)
	oracle.SetNowFunc(func() time.Time { return now })
	if err := oracle.SetPrice("USDX", big.NewRat(1, 1), "feed"); err != nil {
		t.Fatalf("set price: %v", err)
	}
	now = now.Add(1000 * time.Hour)
	if _, err := oracle.PriceOf("USDX"); err != nil {
		t.Fatalf("staleness should be disabled, got %v", err)
	}
}

func TestInvalidRateRejected(t *testing.T) {
	oracle := NewManualOracle(time.Minute)
	if err := oracle.SetPrice("USDX", nil, "feed"); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected invalid rate for nil, got %v", err)
	}
	if err := oracle.SetPrice("USDX", big.NewRat(0, 1), "feed"); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected invalid rate for zero, got %v", err)
	}
	if err := oracle.SetPrice("USDX", big.NewRat(-1, 2), "feed"); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected invalid rate for negative, got %v", err)
	}
}

func TestValueAndAmountConversions(t *testing.T) {
	oracle := NewManualOracle(0)
	// 1 unit of WBTC is worth 25000 value units.
	if err := oracle.SetPrice("WBTC", big.NewRat(25_000, 1), "feed"); err != nil {
		t.Fatalf("set price: %v", err)
	}

	value, err := oracle.ValueOf("WBTC", big.NewInt(3))
	if err != nil {
		t.Fatalf("value of: %v", err)
	}
	if value.Cmp(big.NewInt(75_000)) != 0 {
		t.Fatalf("expected 75000, got %s", value)
	}

	amount, err := oracle.AmountOf("WBTC", big.NewInt(75_000))
	if err != nil {
		t.Fatalf("amount of: %v", err)
	}
	if amount.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("expected 3, got %s", amount)
	}

	// Fractional rates floor toward zero.
	if err := oracle.SetPrice("USDX", big.NewRat(1, 3), "feed"); err != nil {
		t.Fatalf("set price: %v", err)
	}
	value, err = oracle.ValueOf("USDX", big.NewInt(10))
	if err != nil {
		t.Fatalf("value of: %v", err)
	}
	if value.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("expected floor(10/3) = 3, got %s", value)
	}
}

func TestAssetSymbolsAreCaseInsensitive(t *testing.T) {
	oracle := NewManualOracle(0)
	if err := oracle.SetPrice("usdx", big.NewRat(1, 1), "feed"); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if _, err := oracle.PriceOf(" USDX "); err != nil {
		t.Fatalf("expected normalized lookup to hit, got %v", err)
	}
}
