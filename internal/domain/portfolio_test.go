package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPortfolio_Buy(t *testing.T) {
	p := NewPortfolio(decimal.NewFromInt(1000), nil)

	// $100 at $50/unit -> 2 units
	qty, err := p.Buy("BTC", decimal.NewFromInt(50), decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if !qty.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected quantity 2, got %v", qty)
	}
	if !p.Balance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Expected balance 900, got %v", p.Balance)
	}

	h := p.Holdings["BTC"]
	if h == nil {
		t.Fatal("Holding should be created on first buy")
	}
	if !h.Total.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected total 2, got %v", h.Total)
	}
	if len(h.History) != 1 || !h.History[0].IsBuy() {
		t.Errorf("Expected one buy trade, got %v", h.History)
	}
	if h.History[0].ID == "" {
		t.Error("Trade should carry an id")
	}
}

func TestPortfolio_BuyRejections(t *testing.T) {
	p := NewPortfolio(decimal.NewFromInt(100), nil)

	t.Run("negative cash", func(t *testing.T) {
		_, err := p.Buy("BTC", decimal.NewFromInt(50), decimal.NewFromInt(-10))
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := p.Buy("BTC", decimal.NewFromInt(50), decimal.NewFromInt(101))
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Errorf("Expected ErrInsufficientFunds, got %v", err)
		}
	})

	// Rejections must leave nothing behind
	if !p.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Balance changed on rejected buy: %v", p.Balance)
	}
	if len(p.Holdings) != 0 {
		t.Errorf("Holdings changed on rejected buy: %v", p.Holdings)
	}
}

func TestPortfolio_Sell(t *testing.T) {
	p := NewPortfolio(decimal.NewFromInt(1000), nil)
	if _, err := p.Buy("ETH", decimal.NewFromInt(10), decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	// Sell 5 of 10 at $12
	proceeds, err := p.Sell("ETH", decimal.NewFromInt(12), decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if !proceeds.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected proceeds 60, got %v", proceeds)
	}
	if !p.Balance.Equal(decimal.NewFromInt(960)) {
		t.Errorf("Expected balance 960, got %v", p.Balance)
	}

	h := p.Holdings["ETH"]
	if !h.Total.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected total 5, got %v", h.Total)
	}
	if len(h.History) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(h.History))
	}
	if h.History[1].IsBuy() {
		t.Error("Second trade should be sell-side")
	}
	if !h.History[1].Quantity.Equal(decimal.NewFromInt(-5)) {
		t.Errorf("Expected sell quantity -5, got %v", h.History[1].Quantity)
	}
}

func TestPortfolio_SellFullLiquidationRemovesHolding(t *testing.T) {
	p := NewPortfolio(decimal.NewFromInt(100), nil)
	if _, err := p.Buy("DOGE", decimal.NewFromInt(2), decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	if _, err := p.Sell("DOGE", decimal.NewFromInt(2), decimal.NewFromInt(50)); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	if _, ok := p.Holdings["DOGE"]; ok {
		t.Error("Holding should be removed on full liquidation")
	}
	if !p.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected balance 100, got %v", p.Balance)
	}
}

func TestPortfolio_SellRejections(t *testing.T) {
	empty := NewPortfolio(decimal.NewFromInt(100), nil)
	if _, err := empty.Sell("BTC", decimal.NewFromInt(50), decimal.NewFromInt(1)); !errors.Is(err, ErrNoHoldings) {
		t.Errorf("Expected ErrNoHoldings, got %v", err)
	}

	p := NewPortfolio(decimal.NewFromInt(1000), nil)
	if _, err := p.Buy("BTC", decimal.NewFromInt(50), decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	t.Run("never bought", func(t *testing.T) {
		_, err := p.Sell("ETH", decimal.NewFromInt(10), decimal.NewFromInt(1))
		if !errors.Is(err, ErrInsufficientHoldings) {
			t.Errorf("Expected ErrInsufficientHoldings, got %v", err)
		}
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := p.Sell("BTC", decimal.NewFromInt(50), decimal.NewFromInt(-1))
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("more than held", func(t *testing.T) {
		_, err := p.Sell("BTC", decimal.NewFromInt(50), decimal.NewFromInt(3))
		if !errors.Is(err, ErrInsufficientHoldings) {
			t.Errorf("Expected ErrInsufficientHoldings, got %v", err)
		}
	})

	if !p.Balance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Balance changed on rejected sell: %v", p.Balance)
	}
	if !p.Holdings["BTC"].Total.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Total changed on rejected sell: %v", p.Holdings["BTC"].Total)
	}
}

func TestHolding_AverageCost(t *testing.T) {
	p := NewPortfolio(decimal.NewFromInt(1000), nil)

	// 2 units for $100 ($50/u), then 3 units for $120 ($40/u)
	if _, err := p.Buy("BTC", decimal.NewFromInt(50), decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if _, err := p.Buy("BTC", decimal.NewFromInt(40), decimal.NewFromInt(120)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	h := p.Holdings["BTC"]
	avg, err := h.AverageCost()
	if err != nil {
		t.Fatalf("AverageCost failed: %v", err)
	}
	if !avg.Equal(decimal.NewFromInt(45)) {
		t.Errorf("Expected average cost 45, got %v", avg)
	}

	// Sells are excluded from the average
	if _, err := p.Sell("BTC", decimal.NewFromInt(60), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	avg, err = h.AverageCost()
	if err != nil {
		t.Fatalf("AverageCost failed: %v", err)
	}
	if !avg.Equal(decimal.NewFromInt(45)) {
		t.Errorf("Sell should not move the average, got %v", avg)
	}
}

func TestHolding_PercentGain(t *testing.T) {
	p := NewPortfolio(decimal.NewFromInt(1000), nil)
	if _, err := p.Buy("BTC", decimal.NewFromInt(50), decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if _, err := p.Buy("BTC", decimal.NewFromInt(40), decimal.NewFromInt(120)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	// avg cost 45, current price 50 -> (50/45 - 1) * 100 = 11.11...
	gain, err := p.Holdings["BTC"].PercentGain(decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("PercentGain failed: %v", err)
	}
	expected := decimal.NewFromFloat(11.11)
	if gain.Sub(expected).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Errorf("Expected gain ~11.11, got %v", gain)
	}
}

func TestHolding_NoCostBasis(t *testing.T) {
	h := &Holding{Total: decimal.NewFromInt(1)}

	if _, err := h.AverageCost(); !errors.Is(err, ErrNoCostBasis) {
		t.Errorf("Expected ErrNoCostBasis, got %v", err)
	}
	if _, err := h.PercentGain(decimal.NewFromInt(50)); !errors.Is(err, ErrNoCostBasis) {
		t.Errorf("Expected ErrNoCostBasis, got %v", err)
	}
}

func TestPortfolio_Symbols_Sorted(t *testing.T) {
	p := NewPortfolio(decimal.NewFromInt(1000), nil)
	for _, s := range []string{"XRP", "BTC", "ETH"} {
		if _, err := p.Buy(s, decimal.NewFromInt(10), decimal.NewFromInt(10)); err != nil {
			t.Fatalf("Buy failed: %v", err)
		}
	}

	got := p.Symbols()
	if len(got) != 3 || got[0] != "BTC" || got[1] != "ETH" || got[2] != "XRP" {
		t.Errorf("Not sorted: %v", got)
	}
}
