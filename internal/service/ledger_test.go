package service

import (
	"errors"
	"sync"
	"testing"

	"coinbot/internal/domain"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory LedgerStore for tests.
type memStore struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	holdings map[string]map[string]*domain.Holding
}

func newMemStore() *memStore {
	return &memStore{
		balances: make(map[string]decimal.Decimal),
		holdings: make(map[string]map[string]*domain.Holding),
	}
}

func (m *memStore) GetBalance(userID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[userID]
	if !ok {
		return decimal.Zero, nil
	}
	return bal, nil
}

func (m *memStore) PutBalance(userID string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = balance
	return nil
}

func (m *memStore) GetHoldings(userID string) (map[string]*domain.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.holdings[userID]
	if !ok {
		return make(map[string]*domain.Holding), nil
	}
	// copy so callers mutate their own view until PutHoldings
	out := make(map[string]*domain.Holding, len(stored))
	for sym, h := range stored {
		cp := *h
		cp.History = append([]domain.Trade(nil), h.History...)
		out[sym] = &cp
	}
	return out, nil
}

func (m *memStore) PutHoldings(userID string, holdings map[string]*domain.Holding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings[userID] = holdings
	return nil
}

func testQuotes() *QuoteBoard {
	board := NewQuoteBoard(nil)
	board.ApplySnapshot([]*domain.Quote{
		{Symbol: "BTC", Name: "Bitcoin", AssetID: 1, Price: decimal.NewFromInt(50)},
		{Symbol: "ETH", Name: "Ethereum", AssetID: 1027, Price: decimal.NewFromInt(10)},
	})
	return board
}

func fundedLedger(t *testing.T, userID string, cash int64) (*Ledger, *memStore) {
	t.Helper()
	store := newMemStore()
	if err := store.PutBalance(userID, decimal.NewFromInt(cash)); err != nil {
		t.Fatalf("PutBalance failed: %v", err)
	}
	return NewLedger(store, testQuotes()), store
}

func TestLedger_Buy(t *testing.T) {
	ledger, store := fundedLedger(t, "u1", 1000)

	receipt, err := ledger.Buy("u1", "btc", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	if !receipt.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected quantity 2, got %v", receipt.Quantity)
	}
	if receipt.Name != "Bitcoin" {
		t.Errorf("Expected name Bitcoin, got %q", receipt.Name)
	}
	if !receipt.NewBalance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Expected balance 900, got %v", receipt.NewBalance)
	}

	// Persisted, not just returned
	bal, _ := store.GetBalance("u1")
	if !bal.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Stored balance = %v, want 900", bal)
	}
	holdings, _ := store.GetHoldings("u1")
	if !holdings["BTC"].Total.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Stored total = %v, want 2", holdings["BTC"].Total)
	}
}

func TestLedger_BuyRejections(t *testing.T) {
	ledger, store := fundedLedger(t, "u1", 100)

	t.Run("negative cash", func(t *testing.T) {
		_, err := ledger.Buy("u1", "BTC", decimal.NewFromInt(-5))
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		_, err := ledger.Buy("u1", "NOPE", decimal.NewFromInt(5))
		if !errors.Is(err, domain.ErrUnknownSymbol) {
			t.Errorf("Expected ErrUnknownSymbol, got %v", err)
		}
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := ledger.Buy("u1", "BTC", decimal.NewFromInt(500))
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Errorf("Expected ErrInsufficientFunds, got %v", err)
		}
	})

	// No partial writes on any rejection
	bal, _ := store.GetBalance("u1")
	if !bal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Balance changed on rejected buy: %v", bal)
	}
	holdings, _ := store.GetHoldings("u1")
	if len(holdings) != 0 {
		t.Errorf("Holdings changed on rejected buy: %v", holdings)
	}
}

func TestLedger_SellLiteralAmount(t *testing.T) {
	ledger, _ := fundedLedger(t, "u1", 1000)
	if _, err := ledger.Buy("u1", "ETH", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	receipt, err := ledger.Sell("u1", "eth", "4")
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	if !receipt.Amount.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected amount 4, got %v", receipt.Amount)
	}
	if !receipt.Proceeds.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected proceeds 40, got %v", receipt.Proceeds)
	}
	if !receipt.NewBalance.Equal(decimal.NewFromInt(940)) {
		t.Errorf("Expected balance 940, got %v", receipt.NewBalance)
	}
}

func TestLedger_SellPercent(t *testing.T) {
	ledger, store := fundedLedger(t, "u1", 1000)
	// $100 of ETH at $10 -> 10 units
	if _, err := ledger.Buy("u1", "ETH", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	receipt, err := ledger.Sell("u1", "ETH", "50%")
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if !receipt.Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Selling 50%% of 10 should sell 5, got %v", receipt.Amount)
	}

	// 100% liquidation removes the holding entirely
	if _, err := ledger.Sell("u1", "ETH", "100%"); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	holdings, _ := store.GetHoldings("u1")
	if _, ok := holdings["ETH"]; ok {
		t.Error("Holding should be removed after selling 100%")
	}
}

func TestLedger_SellRejections(t *testing.T) {
	ledger, store := fundedLedger(t, "u1", 1000)

	t.Run("no holdings at all", func(t *testing.T) {
		_, err := ledger.Sell("u1", "BTC", "1")
		if !errors.Is(err, domain.ErrNoHoldings) {
			t.Errorf("Expected ErrNoHoldings, got %v", err)
		}
	})

	if _, err := ledger.Buy("u1", "BTC", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	t.Run("never bought symbol", func(t *testing.T) {
		_, err := ledger.Sell("u1", "ETH", "1")
		if !errors.Is(err, domain.ErrInsufficientHoldings) {
			t.Errorf("Expected ErrInsufficientHoldings, got %v", err)
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		_, err := ledger.Sell("u1", "NOPE", "1")
		if !errors.Is(err, domain.ErrUnknownSymbol) {
			t.Errorf("Expected ErrUnknownSymbol, got %v", err)
		}
	})

	t.Run("unparsable amount", func(t *testing.T) {
		_, err := ledger.Sell("u1", "BTC", "lots")
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("negative percent", func(t *testing.T) {
		_, err := ledger.Sell("u1", "BTC", "-10%")
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("more than held", func(t *testing.T) {
		_, err := ledger.Sell("u1", "BTC", "3")
		if !errors.Is(err, domain.ErrInsufficientHoldings) {
			t.Errorf("Expected ErrInsufficientHoldings, got %v", err)
		}
	})

	bal, _ := store.GetBalance("u1")
	if !bal.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Balance changed on rejected sell: %v", bal)
	}
	holdings, _ := store.GetHoldings("u1")
	if !holdings["BTC"].Total.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Total changed on rejected sell: %v", holdings["BTC"].Total)
	}
}

func TestLedger_Profile(t *testing.T) {
	ledger, _ := fundedLedger(t, "u1", 1000)

	// BTC: 2 units for $100 ($50/u) then 3 units for $120 ($40/u) -> avg 45
	if _, err := ledger.Buy("u1", "BTC", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	quotes := ledger.quotes.(*QuoteBoard)
	quotes.ApplySnapshot([]*domain.Quote{{Symbol: "BTC", Name: "Bitcoin", AssetID: 1, Price: decimal.NewFromInt(40)}})
	if _, err := ledger.Buy("u1", "BTC", decimal.NewFromInt(120)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	quotes.ApplySnapshot([]*domain.Quote{{Symbol: "BTC", Name: "Bitcoin", AssetID: 1, Price: decimal.NewFromInt(50)}})

	profile, err := ledger.Profile("u1")
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if len(profile.Positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(profile.Positions))
	}

	pos := profile.Positions[0]
	if !pos.AvgCost.Equal(decimal.NewFromInt(45)) {
		t.Errorf("Expected avg cost 45, got %v", pos.AvgCost)
	}
	expectedGain := decimal.NewFromFloat(11.11)
	if pos.PctGain.Sub(expectedGain).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Errorf("Expected gain ~11.11, got %v", pos.PctGain)
	}

	// 5 units at $50 = 250 net value, balance 1000-220=780
	if !profile.NetValue.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected net value 250, got %v", profile.NetValue)
	}
	if !profile.Balance.Equal(decimal.NewFromInt(780)) {
		t.Errorf("Expected balance 780, got %v", profile.Balance)
	}
}

func TestLedger_ProfileEmpty(t *testing.T) {
	ledger, _ := fundedLedger(t, "u1", 1000)

	if _, err := ledger.Profile("u1"); !errors.Is(err, domain.ErrNoHoldings) {
		t.Errorf("Expected ErrNoHoldings, got %v", err)
	}
}

func TestLedger_BalanceOf(t *testing.T) {
	ledger, _ := fundedLedger(t, "u1", 1000)
	if _, err := ledger.Buy("u1", "BTC", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	view, err := ledger.BalanceOf("u1", "BTC")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if !view.Total.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected total 2, got %v", view.Total)
	}
	if !view.PctGain.IsZero() {
		t.Errorf("Bought at current price, gain should be 0, got %v", view.PctGain)
	}
	if view.Quote == nil || view.Quote.Name != "Bitcoin" {
		t.Errorf("Quote missing from view: %+v", view.Quote)
	}

	if _, err := ledger.BalanceOf("u1", "ETH"); !errors.Is(err, domain.ErrInsufficientHoldings) {
		t.Errorf("Expected ErrInsufficientHoldings, got %v", err)
	}
}

func TestLedger_History(t *testing.T) {
	ledger, _ := fundedLedger(t, "u1", 1000)

	if _, err := ledger.Buy("u1", "ETH", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if _, err := ledger.Buy("u1", "BTC", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if _, err := ledger.Sell("u1", "ETH", "4"); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	entries, err := ledger.History("u1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	// Grouped by symbol in lexical order; chronological within a symbol
	if entries[0].Symbol != "BTC" {
		t.Errorf("Expected BTC first, got %s", entries[0].Symbol)
	}
	if entries[1].Symbol != "ETH" || !entries[1].Trade.IsBuy() {
		t.Errorf("Expected ETH buy second, got %+v", entries[1])
	}
	if entries[2].Symbol != "ETH" || entries[2].Trade.IsBuy() {
		t.Errorf("Expected ETH sell last, got %+v", entries[2])
	}
}

func TestLedger_Deposit(t *testing.T) {
	ledger, _ := fundedLedger(t, "u1", 100)

	bal, err := ledger.Deposit("u1", decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if !bal.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected 150, got %v", bal)
	}

	if _, err := ledger.Deposit("u1", decimal.NewFromInt(-5)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
}

func TestLedger_ConcurrentBuysSameAccount(t *testing.T) {
	ledger, store := fundedLedger(t, "u1", 1000)

	const workers = 10
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := ledger.Buy("u1", "BTC", decimal.NewFromInt(10)); err != nil {
				t.Errorf("Buy failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// 10 buys of $10: no lost updates allowed
	bal, _ := store.GetBalance("u1")
	if !bal.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Expected balance 900 after concurrent buys, got %v", bal)
	}
	holdings, _ := store.GetHoldings("u1")
	if !holdings["BTC"].Total.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected total 2, got %v", holdings["BTC"].Total)
	}
	if len(holdings["BTC"].History) != workers {
		t.Errorf("Expected %d trades, got %d", workers, len(holdings["BTC"].History))
	}
}

func TestResolveAmount(t *testing.T) {
	total := decimal.NewFromInt(10)

	tests := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"5", "5", false},
		{"2.5", "2.5", false},
		{"50%", "5", false},
		{"100%", "10", false},
		{"0%", "0", false},
		{"", "", true},
		{"abc", "", true},
		{"%", "", true},
	}

	for _, tt := range tests {
		got, err := ResolveAmount(tt.in, total)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrInvalidAmount) {
				t.Errorf("ResolveAmount(%q): expected ErrInvalidAmount, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveAmount(%q) failed: %v", tt.in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tt.expected)) {
			t.Errorf("ResolveAmount(%q) = %v, want %s", tt.in, got, tt.expected)
		}
	}
}
